package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/multierr"

	"img2tex/api/internal/app"
	"img2tex/api/internal/config"
	"img2tex/api/internal/httpserver"
	"img2tex/api/internal/logger"
	"img2tex/api/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, true, cfg.Environment)
	if cfg.TelegramBotToken == "" {
		log.Error("TELEGRAM_BOT_TOKEN is empty")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, log, "bot")
	if err != nil {
		log.Error("failed to build app", slog.Any("err", err))
		os.Exit(1)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Error("telegram login failed", slog.Any("err", err))
		os.Exit(1)
	}
	bot.Debug = false
	log.Info("telegram bot authorised", slog.String("username", bot.Self.UserName))

	r := &telegram.Router{
		Bot:        bot,
		Service:    a.Service,
		Credential: cfg.TelegramAPIKey,
		HTTP:       &http.Client{Timeout: 60 * time.Second},
		Log:        log,
		Timeout:    cfg.UpstreamTimeout + 30*time.Second,
	}

	h := a.Handler()
	routes := httpserver.Routes{
		Extract: h,
		Health:  h.Health(a.HealthChecks()),
		Metrics: a.Metrics.Handler(),
	}

	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL != "" {
		path := telegram.WebhookPath(bot.Token)
		wh, err := tgbotapi.NewWebhook(strings.TrimRight(webhookURL, "/") + path)
		if err != nil {
			log.Error("bad webhook url", slog.Any("err", err))
			os.Exit(1)
		}
		wh.DropPendingUpdates = true
		if _, err := bot.Request(wh); err != nil {
			log.Error("set webhook failed", slog.Any("err", err))
			os.Exit(1)
		}
		routes.Webhook = r.WebhookHandler(bot.HandleUpdate)
		routes.WebhookPath = path
		log.Info("webhook mode", slog.String("path", path))
	} else {
		if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			log.Warn("delete webhook failed", slog.Any("err", err))
		}
		go telegram.RunPolling(ctx, bot, log, func(upd tgbotapi.Update) {
			r.HandleUpdate(ctx, upd)
		})
		log.Info("polling mode")
	}

	addr := net.JoinHostPort("", cfg.Port)
	srv, err := httpserver.New(addr, httpserver.NewRouter(log, routes))
	if err != nil {
		log.Error("failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down gracefully")
		shutdownErr := srv.Shutdown(context.Background())
		waitCtx, cancel := context.WithTimeout(context.Background(), r.Timeout+10*time.Second)
		waitErr := r.Wait(waitCtx)
		cancel()
		if err := multierr.Combine(shutdownErr, waitErr, a.Close()); err != nil {
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
