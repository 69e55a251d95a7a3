package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"img2tex/api/internal/app"
	"img2tex/api/internal/config"
	"img2tex/api/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, false, cfg.Environment)

	a, err := app.New(context.Background(), cfg, log, "lambda")
	if err != nil {
		log.Error("failed to build app", slog.Any("err", err))
		os.Exit(1)
	}
	defer a.Close()

	lambda.Start(a.Handler().HandleAPIGateway)
}
