package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vanshika/tunetraits/internal/config"
	"github.com/vanshika/tunetraits/internal/generator"
	"github.com/vanshika/tunetraits/internal/logging"
	"github.com/vanshika/tunetraits/internal/repository"
	"github.com/vanshika/tunetraits/internal/service"
	"github.com/vanshika/tunetraits/internal/store"
)

var errMissingDataset = errors.New("dataset not found")

func main() {
	var (
		datasetDir = flag.String("dataset-dir", "./seed-data", "Directory containing respondents.json or respondents.yaml")
		dataset    = flag.String("dataset", "", "Path to a respondents file (overrides dataset-dir)")
		workers    = flag.Int("workers", 4, "Number of concurrent workers for ingestion")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging).With("component", "ingest")

	path, err := resolveDatasetPath(*datasetDir, *dataset)
	if err != nil {
		logger.Error("dataset resolution failed", "error", err)
		os.Exit(1)
	}

	ds, err := generator.ReadDataset(path)
	if err != nil {
		logger.Error("failed to load respondents", "error", err, "path", path)
		os.Exit(1)
	}
	if len(ds.Respondents) == 0 {
		logger.Error("respondents dataset empty", "path", path)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := buildStore(ctx, logger, cfg)
	if err != nil {
		logger.Error("failed to open record store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(context.Background()); err != nil {
			logger.Warn("closing record store failed", "error", err)
		}
	}()

	collector := service.NewCollector(repository.New(client, logger), logger)
	ingestor := service.NewBulkIngestor(collector, *workers)

	start := time.Now()
	logger.Info("ingesting respondents", "count", len(ds.Respondents), "workers", *workers)
	if err := ingestor.IngestRespondents(ctx, ds.Respondents); err != nil {
		logger.Error("respondent ingestion failed", "error", err)
		os.Exit(1)
	}

	logger.Info("ingestion complete", "duration", time.Since(start).String(), "respondents", len(ds.Respondents))
}

func resolveDatasetPath(baseDir, explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("stat %s: %w", explicit, err)
		}
		return explicit, nil
	}
	for _, name := range []string{"respondents.json", "respondents.yaml", "respondents.yml"} {
		path := filepath.Join(baseDir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s", errMissingDataset, baseDir)
}

func buildStore(ctx context.Context, logger *slog.Logger, cfg config.Config) (store.Client, error) {
	if cfg.Store.Backend == store.BackendMemory {
		logger.Warn("ingesting into the in-memory store; data is dropped on exit")
	}
	client, err := store.Open(ctx, cfg.Store.Options())
	if err != nil {
		return nil, err
	}
	if err := client.VerifyConnectivity(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	logger.Info("connected to record store", "backend", cfg.Store.Backend, "database", cfg.Store.Database)
	return store.WithRetry(client, cfg.Retry.Policy(), logger), nil
}
