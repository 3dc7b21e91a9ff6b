package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/vanshika/tunetraits/internal/config"
	"github.com/vanshika/tunetraits/internal/domain"
	"github.com/vanshika/tunetraits/internal/logging"
	"github.com/vanshika/tunetraits/internal/repository"
	"github.com/vanshika/tunetraits/internal/server"
	"github.com/vanshika/tunetraits/internal/service"
	"github.com/vanshika/tunetraits/internal/spotify"
	"github.com/vanshika/tunetraits/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := buildStore(ctx, logger, cfg)
	if err != nil {
		logger.Error("failed to open record store", "error", err, "backend", cfg.Store.Backend)
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(context.Background()); err != nil {
			logger.Warn("closing record store failed", "error", err)
		}
	}()

	location, err := spotify.LoadLocation(cfg.Spotify.LocalTimeZone)
	if err != nil {
		logger.Error("invalid local time zone", "error", err)
		os.Exit(1)
	}

	repo := repository.New(client, logger)
	collector := service.NewCollector(repo, logger).
		WithConcurrency(cfg.Spotify.FetchConcurrency).
		WithProviderFactory(func(ctx context.Context, cred domain.StreamingCredential) (service.StreamingProvider, error) {
			client, err := spotify.New(ctx, cred, spotify.Options{
				Limit:    cfg.Spotify.FetchLimit,
				Location: location,
				Logger:   logger,
			})
			if err != nil {
				return nil, err
			}
			return client, nil
		})
	sessions := service.NewSessions(cfg.Session.TTL, cfg.Session.Resumable)
	go sweepSessions(ctx, logger, sessions, cfg.Session.TTL)

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           server.StoreHealthService{Client: client},
		API:              server.NewAPIHandlers(logger, collector, sessions, repo),
		AllowedOrigins:   parseAllowedOrigins(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, router)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped unexpectedly", "error", err)
		os.Exit(1)
	}
}

func buildStore(ctx context.Context, logger *slog.Logger, cfg config.Config) (store.Client, error) {
	client, err := store.Open(ctx, cfg.Store.Options())
	if err != nil {
		return nil, err
	}
	logger.Info("connected to record store", "backend", cfg.Store.Backend, "database", cfg.Store.Database)
	return store.WithRetry(client, cfg.Retry.Policy(), logger.With("component", "store")), nil
}

func sweepSessions(ctx context.Context, logger *slog.Logger, sessions *service.Sessions, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(); n > 0 {
				logger.Debug("expired sessions dropped", "count", n)
			}
		}
	}
}

func parseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	var origins []string
	for _, part := range strings.Split(csv, ",") {
		if origin := strings.TrimSpace(part); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
