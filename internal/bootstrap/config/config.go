package config

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"hygienefix/internal/bootstrap/logging"
	"hygienefix/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Registry RegistryConfig `mapstructure:"registry"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Server   ServerConfig   `mapstructure:"server"`
	Nats     NatsConfig     `mapstructure:"nats"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// RegistryConfig points at the FHRS public API.
type RegistryConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	PageSize       int    `mapstructure:"page_size"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type PipelineConfig struct {
	MaxPages         int `mapstructure:"max_pages"`
	UpsertBatchSize  int `mapstructure:"upsert_batch_size"`
	PageDelayMS      int `mapstructure:"page_delay_ms"`
	DefaultMaxRating int `mapstructure:"default_max_rating"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// CronSecret guards the pipeline trigger endpoint. Empty means the
	// trigger refuses to run.
	CronSecret string `mapstructure:"cron_secret"`
}

// NatsConfig is optional; an empty URL disables change publishing.
type NatsConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if cfg.Database.DSN == "" {
		return Config{}, errors.New("database.dsn is required")
	}
	if cfg.Registry.BaseURL == "" {
		return Config{}, errors.New("registry.base_url is required")
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("registry_base_url", cfg.Registry.BaseURL),
	)

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "hygienefix")
	v.SetDefault("app.env", "local")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/hygienefix.sqlite")

	v.SetDefault("registry.base_url", "https://api.ratings.food.gov.uk")
	// 200 rows per page is reliable upstream without timeouts.
	v.SetDefault("registry.page_size", 200)
	v.SetDefault("registry.timeout_seconds", 30)

	v.SetDefault("pipeline.max_pages", 500)
	v.SetDefault("pipeline.upsert_batch_size", 100)
	v.SetDefault("pipeline.page_delay_ms", 300)
	v.SetDefault("pipeline.default_max_rating", 2)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cron_secret", "")

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "hygienefix.rating-changes")
}
