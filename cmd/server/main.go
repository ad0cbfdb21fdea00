package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livestream-orchestrator/internal/livestream"
	"livestream-orchestrator/internal/platform/config"
	"livestream-orchestrator/internal/platform/logger"
	"livestream-orchestrator/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	cfg := config.FromEnv(livestream.DefaultHiddenRoutes)
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	dir, closeDir, err := newDirectory(cfg)
	if err != nil {
		log.Error("directory setup failed", "error", err)
		os.Exit(1)
	}
	defer closeDir()

	met := metrics.New()
	hub := livestream.NewHub(log, met)
	coord := livestream.NewCoordinator(dir, livestream.CoordinatorOptions{
		Logger:  log,
		Metrics: met,
		Routes:  livestream.NewRoutePolicy(cfg.LivePagePrefix, cfg.HiddenRoutes),
	})
	svc := livestream.NewService(coord, livestream.ServiceOptions{
		Logger:            log,
		Metrics:           met,
		Publisher:         hub,
		CountdownInterval: cfg.CountdownInterval,
		FailoverGrace:     cfg.FailoverGrace,
	})
	h := livestream.NewHandler(svc, hub, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Handle("/metrics", met.Handler(nil))
	h.Mount(r)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		discoverCtx, cancel := context.WithTimeout(gctx, cfg.DirectoryTimeout)
		defer cancel()
		coord.Start(discoverCtx)
		return nil
	})

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, draining connections")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		hub.Close()
		svc.Close()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info("server starting",
		"port", cfg.Port,
		"directory", cfg.DirectoryType,
		"failover_grace", cfg.FailoverGrace.String(),
		"log_level", cfg.LogLevel,
	)

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// newDirectory builds the stream directory selected by cfg.DirectoryType and
// a cleanup function for it.
func newDirectory(cfg config.Settings) (livestream.Directory, func(), error) {
	noop := func() {}
	switch cfg.DirectoryType {
	case "http":
		return livestream.NewHTTPDirectory(cfg.DirectoryURL, cfg.DirectoryTimeout), noop, nil
	case "file":
		return livestream.NewFileDirectory(cfg.DirectoryFile), noop, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		dir := livestream.NewRedisDirectory(client, cfg.RedisKey)
		return dir, func() {
			if err := dir.Close(); err != nil {
				slog.Default().Warn("closing redis client", "error", err)
			}
		}, nil
	case "static", "none":
		return livestream.NewStaticDirectory(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported directory type: %s", cfg.DirectoryType)
	}
}
