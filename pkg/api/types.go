package api

import (
	"time"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	RunID     string    `json:"run_id"`
	Cohort    string    `json:"cohort"`
	Uptime    string    `json:"uptime"`
}

// StatsResponse is returned by GET /stats.
type StatsResponse struct {
	Patients       int     `json:"patients"`
	Rejected       int     `json:"rejected"`
	Nodes          int     `json:"nodes"`
	Edges          int     `json:"edges"`
	TotalWeight    int     `json:"total_weight"`
	ComponentNodes int     `json:"component_nodes"`
	ComponentEdges int     `json:"component_edges"`
	Communities    int     `json:"communities"`
	Modularity     float64 `json:"modularity"`
	Converged      bool    `json:"converged"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
