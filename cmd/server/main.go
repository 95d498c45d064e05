package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"rolegate/internal/platform/config"
	"rolegate/internal/platform/httpserver"
	"rolegate/internal/platform/logger"
	"rolegate/internal/platform/tracing"
)

// main loads configuration, wires the application and serves until SIGINT or
// SIGTERM. Business logic lives in the internal packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("rolegate stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	shutdownTracing, err := tracing.Init(ctx, log, cfg.Tracing, cfg.Env)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.bootstrap(ctx); err != nil {
		return err
	}

	srv := httpserver.New(cfg.Server.Addr, a.router())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout, log)
	})
	if a.auditWorker != nil {
		g.Go(func() error {
			return a.auditWorker.Run(gctx)
		})
	}
	log.Info("starting rolegate",
		"addr", cfg.Server.Addr,
		"env", cfg.Env,
		"rbac_enabled", cfg.RBAC.Enabled,
		"store", a.storeKind,
		"identity_cache", cfg.Cache.Backend,
	)
	return g.Wait()
}
