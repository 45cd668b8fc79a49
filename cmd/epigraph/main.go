// Command epigraph runs the disease co-occurrence analysis pipeline once
// and prints the ranked summary tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/opencohort/epigraph/pkg/cohort"
	"github.com/opencohort/epigraph/pkg/config"
	"github.com/opencohort/epigraph/pkg/logging"
	"github.com/opencohort/epigraph/pkg/metrics"
	"github.com/opencohort/epigraph/pkg/pipeline"
	"github.com/opencohort/epigraph/pkg/snapshot"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).MarginTop(1)
	cellStyle  = lipgloss.NewStyle().Padding(0, 1)
)

func main() {
	configPath := flag.String("config", "", "Pipeline config file (YAML)")
	loadPath := flag.String("load", "", "Analyze an existing graph snapshot instead of building")
	savePath := flag.String("save", "", "Write the built graph to a snapshot file")
	flag.Parse()

	logger := logging.NewDefaultLogger()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("load config", logging.Error(err))
		os.Exit(1)
	}

	reg := metrics.NewRegistry()
	runner := pipeline.NewRunner(cfg, logger, reg)
	ctx := context.Background()

	var result *pipeline.Result
	if *loadPath != "" {
		g, err := snapshot.Load(*loadPath)
		if err != nil {
			logger.Error("load snapshot", logging.Path(*loadPath), logging.Error(err))
			os.Exit(1)
		}
		result, err = runner.Analyze(ctx, g)
		if err != nil {
			logger.Error("analysis failed", logging.Error(err))
			os.Exit(1)
		}
	} else {
		src, closeSrc, err := openSource(ctx, cfg, logger)
		if err != nil {
			logger.Error("open cohort source", logging.Error(err))
			os.Exit(1)
		}
		defer closeSrc()

		result, err = runner.Run(ctx, src)
		if err != nil {
			logger.Error("pipeline failed", logging.Error(err))
			os.Exit(1)
		}

		if *savePath != "" {
			if err := snapshot.Save(*savePath, result.Graph); err != nil {
				logger.Error("save snapshot", logging.Path(*savePath), logging.Error(err))
				os.Exit(1)
			}
			logger.Info("snapshot saved", logging.Path(*savePath))
		}
	}

	render(result)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
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

func render(result *pipeline.Result) {
	rep := result.Report

	fmt.Println(titleStyle.Render(fmt.Sprintf("Cohort %s — run %s", result.CohortName, result.RunID)))

	summary := newTable("Metric", "Value")
	summary.Row("Patients", strconv.Itoa(rep.Summary.Patients))
	summary.Row("Rejected records", strconv.Itoa(rep.Summary.Rejected))
	summary.Row("Diseases (full graph)", strconv.Itoa(result.Graph.NodeCount()))
	summary.Row("Edges (full graph)", strconv.Itoa(result.Graph.EdgeCount()))
	summary.Row("Main component nodes", strconv.Itoa(rep.Summary.Nodes))
	summary.Row("Main component edges", strconv.Itoa(rep.Summary.Edges))
	summary.Row("Communities", strconv.Itoa(rep.Summary.Communities))
	summary.Row("Modularity", fmt.Sprintf("%.4f", rep.Summary.Modularity))
	summary.Row("Converged", strconv.FormatBool(rep.Summary.Converged))
	fmt.Println(summary)

	fmt.Println(titleStyle.Render("Top hub diseases"))
	hubs := newTable("Disease", "Degree", "Centrality", "Community")
	for _, row := range rep.TopByDegree {
		hubs.Row(truncate(row.Name, 60),
			strconv.Itoa(row.Degree),
			fmt.Sprintf("%.4f", row.Centrality),
			strconv.Itoa(row.Community))
	}
	fmt.Println(hubs)

	fmt.Println(titleStyle.Render("Communities"))
	comms := newTable("ID", "Size", "Internal edges", "Density", "Top members")
	for _, row := range rep.Communities {
		comms.Row(strconv.Itoa(row.ID),
			strconv.Itoa(row.Size),
			strconv.Itoa(row.InternalEdges),
			fmt.Sprintf("%.4f", row.Density),
			truncate(strings.Join(row.TopMembers, "; "), 80))
	}
	fmt.Println(comms)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, col int) lipgloss.Style { return cellStyle }).
		Headers(headers...)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
