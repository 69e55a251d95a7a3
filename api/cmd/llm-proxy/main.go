package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"

	"img2tex/api/internal/app"
	"img2tex/api/internal/config"
	"img2tex/api/internal/httpserver"
	"img2tex/api/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, true, cfg.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, log, "http")
	if err != nil {
		log.Error("failed to build app", slog.Any("err", err))
		os.Exit(1)
	}

	h := a.Handler()
	router := httpserver.NewRouter(log, httpserver.Routes{
		Extract: h,
		Health:  h.Health(a.HealthChecks()),
		Metrics: a.Metrics.Handler(),
	})

	addr := net.JoinHostPort("", cfg.Port)
	srv, err := httpserver.New(addr, router)
	if err != nil {
		log.Error("failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		log.Info("img2tex listening", slog.String("addr", addr))
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down gracefully")
		if err := multierr.Combine(srv.Shutdown(context.Background()), a.Close()); err != nil {
			log.Error("error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		_ = a.Close()
		if err != nil {
			log.Error("server failed", slog.Any("err", err))
			os.Exit(1)
		}
	}
}
