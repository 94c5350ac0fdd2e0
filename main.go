package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stockflow/config"
	"stockflow/internal/metrics"
	"stockflow/internal/pipeline"
	"stockflow/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultConfigPath, "Path to configuration file")
	job := flag.String("job", pipeline.JobAll, "Job to run: process, analyze or all")
	flag.Parse()

	cfg, err := config.LoadConfig(config.ResolveConfigPath(*configPath))
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		return 1
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		return 1
	}

	log.WithFields(logger.Fields{
		"service": cfg.Stockflow.Name,
		"version": cfg.Stockflow.Version,
		"job":     *job,
		"env":     config.AppEnvironment(),
	}).Info("starting stockflow")

	// SIGINT/SIGTERM cancel in-flight reads and writes.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Pipeline.ReportRuntime || strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	metrics.Init()
	if cfg.Metrics.CloudWatch.Enabled {
		metrics.InitCloudWatch(ctx, cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace)
	}

	engine, err := pipeline.NewEngine(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("failed to create pipeline engine")
		return 1
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.WithError(err).Warn("failed to close pipeline engine")
		}
	}()

	if err := engine.Run(ctx, *job); err != nil {
		log.WithError(err).WithFields(logger.Fields{"run_id": engine.RunID()}).Error("stockflow run failed")
		return 1
	}

	log.WithFields(logger.Fields{"run_id": engine.RunID()}).Info("stockflow run completed")
	return 0
}
