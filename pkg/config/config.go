// Package config loads and validates the pipeline configuration from YAML.
package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full pipeline configuration.
type Config struct {
	Cohort  CohortConfig  `yaml:"cohort" validate:"required"`
	Source  SourceConfig  `yaml:"source" validate:"required"`
	Build   BuildConfig   `yaml:"build"`
	Louvain LouvainConfig `yaml:"louvain"`
	Report  ReportConfig  `yaml:"report"`
	Server  ServerConfig  `yaml:"server"`
}

// CohortConfig names the cohort and sets its age window.
type CohortConfig struct {
	Name   string  `yaml:"name" validate:"required"`
	MinAge float64 `yaml:"min_age" validate:"gte=0,lte=130"`
	MaxAge float64 `yaml:"max_age" validate:"gte=0,lte=130"` // 0 = unbounded
}

// SourceConfig selects where patient records come from.
type SourceConfig struct {
	Kind string `yaml:"kind" validate:"required,oneof=csv postgres"`

	// csv
	PersonPath    string `yaml:"person_path" validate:"required_if=Kind csv"`
	ConditionPath string `yaml:"condition_path" validate:"required_if=Kind csv"`
	ConceptPath   string `yaml:"concept_path" validate:"required_if=Kind csv"`

	// postgres
	DatabaseURL string `yaml:"database_url" validate:"required_if=Kind postgres"`
}

// BuildConfig controls graph construction.
type BuildConfig struct {
	MinEdgeWeight int `yaml:"min_edge_weight" validate:"gte=0"`
	Workers       int `yaml:"workers" validate:"gte=0"` // 0 = GOMAXPROCS
}

// LouvainConfig bounds community detection.
type LouvainConfig struct {
	MaxPasses  int     `yaml:"max_passes" validate:"gte=0"`
	MaxLevels  int     `yaml:"max_levels" validate:"gte=0"`
	Resolution float64 `yaml:"resolution" validate:"gte=0"`
}

// ReportConfig sizes the output tables.
type ReportConfig struct {
	TopNodes               int `yaml:"top_nodes" validate:"gte=0"`
	TopMembersPerCommunity int `yaml:"top_members_per_community" validate:"gte=0"`
}

// ServerConfig configures the results server.
type ServerConfig struct {
	Port int `yaml:"port" validate:"gte=0,lte=65535"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the configuration used when no file is given: the
// elderly 60+ cohort over CSV exports in the working directory.
func Default() *Config {
	return &Config{
		Cohort: CohortConfig{
			Name:   "elderly_60plus",
			MinAge: 60,
		},
		Source: SourceConfig{
			Kind:          "csv",
			PersonPath:    "data/person.csv",
			ConditionPath: "data/condition_occurrence.csv",
			ConceptPath:   "data/concept.csv",
		},
		Build: BuildConfig{
			MinEdgeWeight: 2,
			Workers:       runtime.GOMAXPROCS(0),
		},
		Louvain: LouvainConfig{
			MaxPasses:  100,
			MaxLevels:  32,
			Resolution: 1.0,
		},
		Report: ReportConfig{
			TopNodes:               10,
			TopMembersPerCommunity: 10,
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural constraints plus cross-field rules the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Cohort.MaxAge > 0 && c.Cohort.MaxAge < c.Cohort.MinAge {
		return fmt.Errorf("invalid config: max_age %.1f below min_age %.1f", c.Cohort.MaxAge, c.Cohort.MinAge)
	}
	return nil
}
