// Command epigraph-server runs the pipeline once and serves the results
// and prometheus metrics over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/opencohort/epigraph/pkg/api"
	"github.com/opencohort/epigraph/pkg/cohort"
	"github.com/opencohort/epigraph/pkg/config"
	"github.com/opencohort/epigraph/pkg/logging"
	"github.com/opencohort/epigraph/pkg/metrics"
	"github.com/opencohort/epigraph/pkg/pipeline"
	"github.com/opencohort/epigraph/pkg/snapshot"
)

func main() {
	configPath := flag.String("config", "", "Pipeline config file (YAML)")
	loadPath := flag.String("load", "", "Serve an existing graph snapshot instead of building")
	port := flag.Int("port", 0, "Listen port (overrides config)")
	flag.Parse()

	logger := logging.NewDefaultLogger()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Error("load config", logging.Error(err))
			os.Exit(1)
		}
		cfg = loaded
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	reg := metrics.NewRegistry()
	runner := pipeline.NewRunner(cfg, logger, reg)
	ctx := context.Background()

	var result *pipeline.Result
	var err error
	if *loadPath != "" {
		g, loadErr := snapshot.Load(*loadPath)
		if loadErr != nil {
			logger.Error("load snapshot", logging.Path(*loadPath), logging.Error(loadErr))
			os.Exit(1)
		}
		result, err = runner.Analyze(ctx, g)
	} else {
		src, closeSrc, srcErr := openSource(ctx, cfg, logger)
		if srcErr != nil {
			logger.Error("open cohort source", logging.Error(srcErr))
			os.Exit(1)
		}
		defer closeSrc()
		result, err = runner.Run(ctx, src)
	}
	if err != nil {
		logger.Error("pipeline failed", logging.Error(err))
		os.Exit(1)
	}

	server := api.NewServer(result, reg, logger, cfg.Server.Port)
	if err := server.Start(); err != nil {
		logger.Error("server failed", logging.Error(err))
		os.Exit(1)
	}
}

func openSource(ctx context.Context, cfg *config.Config, logger logging.Logger) (cohort.Source, func(), error) {
	switch cfg.Source.Kind {
	case "csv":
		src := cohort.NewCSVSource(cfg.Source.PersonPath, cfg.Source.ConditionPath, cfg.Source.ConceptPath, logger)
		return src, func() {}, nil
	case "postgres":
		src, err := cohort.NewPostgresSource(ctx, cfg.Source.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return src, func() { src.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}
