package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	geojsonadapter "github.com/floodsight/sar-flood-mapping/internal/adapter/geojson"
	"github.com/floodsight/sar-flood-mapping/internal/adapter/geotiff"
	kafkaadapter "github.com/floodsight/sar-flood-mapping/internal/adapter/kafka"
	"github.com/floodsight/sar-flood-mapping/internal/config"
	"github.com/floodsight/sar-flood-mapping/internal/observability"
	"github.com/floodsight/sar-flood-mapping/internal/pipeline"
)

func main() {
	refPath := flag.String("ref", "", "reference (dry) GeoTIFF scene")
	floodPath := flag.String("flood", "", "flood GeoTIFF scene")
	regionsPath := flag.String("regions", "", "region boundaries GeoJSON")
	urbanPath := flag.String("urban", "", "urban extent GeoJSON (optional)")
	outDir := flag.String("out", "out", "output directory for products")
	flag.Parse()

	if *refPath == "" || *floodPath == "" || *regionsPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	runID := uuid.NewString()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, metrics, runID, inputs{
		ref:     *refPath,
		flood:   *floodPath,
		regions: *regionsPath,
		urban:   *urbanPath,
		outDir:  *outDir,
	}); err != nil {
		logger.Error("run failed", "run_id", runID, "error", err)
		metrics.RunsTotal.WithLabelValues("failure").Inc()
		pushMetrics(cfg, logger, metrics, runID)
		os.Exit(1)
	}

	metrics.RunsTotal.WithLabelValues("success").Inc()
	pushMetrics(cfg, logger, metrics, runID)
}

type inputs struct {
	ref, flood, regions, urban, outDir string
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, runID string, paths inputs) error {
	logger.Info("starting flood mapping run",
		"run_id", runID,
		"ref", paths.ref,
		"flood", paths.flood,
	)

	ref, err := geotiff.Load(paths.ref)
	if err != nil {
		return err
	}
	flood, err := geotiff.Load(paths.flood)
	if err != nil {
		return err
	}
	regions, err := geojsonadapter.LoadRegions(paths.regions)
	if err != nil {
		return err
	}
	in := pipeline.Inputs{Ref: ref, Flood: flood, Regions: regions}
	if paths.urban != "" {
		urban, err := geojsonadapter.LoadUrban(paths.urban)
		if err != nil {
			return err
		}
		in.Urban = urban
	}

	p := pipeline.New(cfg, logger, metrics)
	products, err := p.Run(ctx, runID, in)
	if err != nil {
		return err
	}

	exporter := pipeline.NewExporter(paths.outDir, cfg, logger)
	if err := exporter.Write(products); err != nil {
		return err
	}
	logger.Info("products written", "dir", paths.outDir)

	if cfg.SummaryEnabled() {
		publisher := kafkaadapter.NewPublisher(cfg, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		if err := publisher.PublishSummary(ctx, products.Summary); err != nil {
			return err
		}
	}
	return nil
}

func pushMetrics(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, runID string) {
	if cfg.MetricsPushURL == "" {
		return
	}
	if err := metrics.Push(cfg.MetricsPushURL, runID); err != nil {
		logger.Error("metrics push failed", "error", err)
	}
}
