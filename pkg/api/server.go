// Package api serves one pipeline run's results read-only over HTTP.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opencohort/epigraph/pkg/logging"
	"github.com/opencohort/epigraph/pkg/metrics"
	"github.com/opencohort/epigraph/pkg/pipeline"
)

// Server exposes a finished pipeline run.
type Server struct {
	result    *pipeline.Result
	reg       *metrics.Registry
	logger    logging.Logger
	startTime time.Time
	version   string
	port      int
}

// NewServer creates an API server over a pipeline result.
func NewServer(result *pipeline.Result, reg *metrics.Registry, logger logging.Logger, port int) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Server{
		result:    result,
		reg:       reg,
		logger:    logger.With(logging.Component("api")),
		startTime: time.Now(),
		version:   "1.0.0",
		port:      port,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/nodes", s.handleNodes)
	mux.HandleFunc("/edges", s.handleEdges)
	mux.HandleFunc("/communities", s.handleCommunities)
	mux.HandleFunc("/top", s.handleTop)
	mux.Handle("/metrics", promhttp.HandlerFor(s.reg.Registry(), promhttp.HandlerOpts{}))

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start serves until the listener fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("results server listening", logging.String("addr", addr))

	server := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   s.version,
		RunID:     s.result.RunID,
		Cohort:    s.result.CohortName,
		Uptime:    time.Since(s.startTime).String(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}
	res := s.result
	s.writeJSON(w, http.StatusOK, StatsResponse{
		Patients:       res.Patients,
		Rejected:       res.Rejected,
		Nodes:          res.Graph.NodeCount(),
		Edges:          res.Graph.EdgeCount(),
		TotalWeight:    res.Graph.TotalWeight(),
		ComponentNodes: res.Main.NodeCount(),
		ComponentEdges: res.Main.EdgeCount(),
		Communities:    len(res.Communities.Communities),
		Modularity:     res.Communities.Modularity,
		Converged:      res.Communities.Converged,
	})
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}
	rows := s.result.Report.Nodes
	if limit := queryLimit(r); limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	s.writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleEdges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}
	rows := s.result.Report.Edges
	if limit := queryLimit(r); limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	s.writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleCommunities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}
	s.writeJSON(w, http.StatusOK, s.result.Report.Communities)
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}
	s.writeJSON(w, http.StatusOK, s.result.Report.TopByDegree)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", logging.Error(err))
	}
}

func (s *Server) methodNotAllowed(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
}

func queryLimit(r *http.Request) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0
	}
	limit, err := strconv.Atoi(v)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request served",
			logging.String("method", r.Method),
			logging.Path(r.URL.Path),
			logging.Latency(time.Since(start)))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
