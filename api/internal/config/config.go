package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const DefaultOpenRouterURL = "https://openrouter.ai/api/v1/chat/completions"

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	Provider         string
	OpenRouterAPIKey string
	OpenRouterURL    string
	GeminiAPIKey     string
	UpstreamTimeout  time.Duration
	AppReferer       string
	AppTitle         string

	Profile         string
	GuestCredential string
	GuestModel      string
	StandardModel   string
	// TemperatureSet reports whether TEMPERATURE overrides the profile value.
	TemperatureSet bool
	Temperature    float64

	DatabaseURL string

	TelegramBotToken string
	TelegramAPIKey   string
	WebhookURL       string
}

// envKeys maps viper keys to the environment variable names the deployment
// already uses (OPENROUTER_API_KEY and GUEST_AWS_KEY come from the Lambda setup).
var envKeys = map[string]string{
	"port":                 "PORT",
	"environment":          "ENVIRONMENT",
	"log_level":            "LOG_LEVEL",
	"provider":             "PROVIDER",
	"openrouter.api_key":   "OPENROUTER_API_KEY",
	"openrouter.url":       "OPENROUTER_URL",
	"gemini.api_key":       "GEMINI_API_KEY",
	"upstream.timeout":     "UPSTREAM_TIMEOUT",
	"upstream.referer":     "APP_REFERER",
	"upstream.title":       "APP_TITLE",
	"prompt.profile":       "PROMPT_PROFILE",
	"prompt.temperature":   "TEMPERATURE",
	"guest.credential":     "GUEST_AWS_KEY",
	"guest.model":          "GUEST_MODEL",
	"standard.model":       "STANDARD_MODEL",
	"database.url":         "DATABASE_URL",
	"telegram.bot_token":   "TELEGRAM_BOT_TOKEN",
	"telegram.api_key":     "TELEGRAM_API_KEY",
	"telegram.webhook_url": "WEBHOOK_URL",
}

// Load reads configuration from .env (if present), config.yaml (if present)
// and the process environment, in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env file", slog.String("error", err.Error()))
	}

	v := viper.New()
	v.SetDefault("port", "8000")
	v.SetDefault("environment", EnvDev)
	v.SetDefault("log_level", LogLevelInfo)
	v.SetDefault("provider", ProviderOpenRouter)
	v.SetDefault("openrouter.url", DefaultOpenRouterURL)
	v.SetDefault("upstream.timeout", "30s")
	v.SetDefault("upstream.referer", "https://github.com/kiwiii2409")
	v.SetDefault("upstream.title", "img2tex")
	v.SetDefault("prompt.profile", "default")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	for key, env := range envKeys {
		_ = v.BindEnv(key, env)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	temperatureSet := v.IsSet("prompt.temperature")
	var temperature float64
	if temperatureSet {
		raw := strings.TrimSpace(v.GetString("prompt.temperature"))
		t, err := cast.ToFloat64E(raw)
		if err != nil {
			err = fmt.Errorf("temperature: %q is not a number", raw)
			slog.Error("invalid configuration", slog.String("error", err.Error()))
			return nil, err
		}
		temperature = t
	}

	cfg := &Config{
		Port:        strings.TrimSpace(v.GetString("port")),
		Environment: strings.ToLower(strings.TrimSpace(v.GetString("environment"))),
		LogLevel:    strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),

		Provider:         strings.ToLower(strings.TrimSpace(v.GetString("provider"))),
		OpenRouterAPIKey: strings.TrimSpace(v.GetString("openrouter.api_key")),
		OpenRouterURL:    strings.TrimSpace(v.GetString("openrouter.url")),
		GeminiAPIKey:     strings.TrimSpace(v.GetString("gemini.api_key")),
		UpstreamTimeout:  v.GetDuration("upstream.timeout"),
		AppReferer:       v.GetString("upstream.referer"),
		AppTitle:         v.GetString("upstream.title"),

		Profile:         strings.TrimSpace(v.GetString("prompt.profile")),
		GuestCredential: strings.TrimSpace(v.GetString("guest.credential")),
		GuestModel:      strings.TrimSpace(v.GetString("guest.model")),
		StandardModel:   strings.TrimSpace(v.GetString("standard.model")),
		TemperatureSet:  temperatureSet,
		Temperature:     temperature,

		DatabaseURL: strings.TrimSpace(v.GetString("database.url")),

		TelegramBotToken: strings.TrimSpace(v.GetString("telegram.bot_token")),
		TelegramAPIKey:   strings.TrimSpace(v.GetString("telegram.api_key")),
		WebhookURL:       strings.TrimSpace(v.GetString("telegram.webhook_url")),
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, is.Port),
		validation.Field(&c.Environment, validation.Required, validation.In(EnvDev, EnvStaging, EnvProd)),
		validation.Field(&c.LogLevel, validation.Required,
			validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError)),
		validation.Field(&c.Provider, validation.Required, validation.In(ProviderOpenRouter, ProviderGemini)),
		validation.Field(&c.OpenRouterAPIKey, validation.When(c.Provider == ProviderOpenRouter, validation.Required)),
		validation.Field(&c.OpenRouterURL,
			validation.When(c.Provider == ProviderOpenRouter, validation.Required, validation.By(validateUpstreamURL))),
		validation.Field(&c.GeminiAPIKey, validation.When(c.Provider == ProviderGemini, validation.Required)),
		validation.Field(&c.UpstreamTimeout, validation.By(validatePositiveDuration)),
		validation.Field(&c.Profile, validation.Required),
		validation.Field(&c.Temperature, validation.When(c.TemperatureSet, validation.Min(0.0), validation.Max(2.0))),
		validation.Field(&c.DatabaseURL, validation.When(c.DatabaseURL != "", validation.By(validateDSN))),
	)
}

func validateUpstreamURL(value interface{}) error {
	raw, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}
	if u.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}
	return nil
}

func validatePositiveDuration(value interface{}) error {
	d, ok := value.(time.Duration)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a duration")
	}
	if d <= 0 {
		return validation.NewError("validation_invalid_duration", "must be a positive duration (e.g., 30s, 1m)")
	}
	return nil
}

func validateDSN(value interface{}) error {
	raw, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return validation.NewError("validation_invalid_dsn", "must be a postgres:// URL")
	}
	return nil
}
