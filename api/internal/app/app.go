package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"go.uber.org/multierr"

	"img2tex/api/internal/config"
	"img2tex/api/internal/extract"
	"img2tex/api/internal/handle"
	"img2tex/api/internal/metrics"
	"img2tex/api/internal/ocr"
	"img2tex/api/internal/ocr/gemini"
	"img2tex/api/internal/ocr/openrouter"
	"img2tex/api/internal/prompt"
	"img2tex/api/internal/store"
)

// App holds everything an entry point needs to serve extractions.
type App struct {
	Config  *config.Config
	Log     *slog.Logger
	Profile prompt.Profile
	Service *extract.Service
	Metrics *metrics.Collector
	// Repo is nil when DATABASE_URL is not set.
	Repo *store.ExtractionRepo

	db *sql.DB
}

func BuildEngines(cfg *config.Config) *ocr.Engines {
	engs := &ocr.Engines{}
	if cfg.OpenRouterAPIKey != "" {
		engs.OpenRouter = openrouter.New(cfg.OpenRouterAPIKey, openrouter.Options{
			URL:     cfg.OpenRouterURL,
			Referer: cfg.AppReferer,
			Title:   cfg.AppTitle,
			Timeout: cfg.UpstreamTimeout,
		})
	}
	if cfg.GeminiAPIKey != "" {
		engs.Gemini = gemini.New(cfg.GeminiAPIKey)
	}
	return engs
}

func ResolveProfile(cfg *config.Config) (prompt.Profile, error) {
	catalog, err := prompt.Builtin()
	if err != nil {
		return prompt.Profile{}, err
	}
	return catalog.Resolve(cfg.Profile, prompt.Overrides{
		GuestModel:     cfg.GuestModel,
		StandardModel:  cfg.StandardModel,
		TemperatureSet: cfg.TemperatureSet,
		Temperature:    cfg.Temperature,
	})
}

// New wires the configured engine, profile, metrics and optional audit log.
// surface tags audit rows and metrics with the entry point name.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, surface string) (*App, error) {
	profile, err := ResolveProfile(cfg)
	if err != nil {
		return nil, fmt.Errorf("prompt profile: %w", err)
	}

	eng, err := BuildEngines(cfg).GetEngine(cfg.Provider)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Log:     log,
		Profile: profile,
		Metrics: metrics.New(),
	}

	var recorder extract.Recorder
	if cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.Repo = store.NewExtractionRepo(db)
		if err := a.Repo.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		recorder = a.Repo
		log.Info("audit log enabled", slog.String("db", store.SafeDSNSummary(cfg.DatabaseURL)))
	}

	a.Service = extract.New(extract.Options{
		Profile:         profile,
		Engine:          eng,
		GuestCredential: cfg.GuestCredential,
		Surface:         surface,
		Recorder:        recorder,
		Observer:        a.Metrics,
		Logger:          log,
		Timeout:         cfg.UpstreamTimeout,
	})

	log.Info("extraction service ready",
		slog.String("provider", eng.Name()),
		slog.String("profile", profile.Name),
		slog.String("guest_model", profile.GuestModel),
		slog.String("standard_model", profile.StandardModel),
		slog.Bool("guest_key_set", cfg.GuestCredential != ""),
	)
	return a, nil
}

func (a *App) Handler() *handle.Handle {
	return handle.New(a.Service, a.Log)
}

func (a *App) HealthChecks() map[string]handle.HealthCheck {
	checks := map[string]handle.HealthCheck{}
	if a.Repo != nil {
		checks["database"] = a.Repo.Ping
	}
	return checks
}

func (a *App) Close() error {
	var err error
	if a.db != nil {
		err = multierr.Append(err, a.db.Close())
	}
	return err
}
