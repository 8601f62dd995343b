package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"hygienefix/internal/bootstrap/config"
	"hygienefix/internal/bootstrap/database"
	"hygienefix/internal/bootstrap/logging"
	cacheinfra "hygienefix/internal/infrastructure/cache"
	"hygienefix/internal/infrastructure/events"
	sqliterepo "hygienefix/internal/infrastructure/persistence/sqlite/repository"
	"hygienefix/internal/infrastructure/registry"
	"hygienefix/internal/ports"
	"hygienefix/internal/usecase/directory"
	"hygienefix/internal/usecase/pipeline"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewRatingsRepository,
			fx.As(new(ports.RatingsRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(provideRegistry),
	fx.Provide(provideChangePublisher),
	fx.Provide(providePipelineService),
	fx.Provide(directory.NewService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideRegistry(cfg config.Config) ports.Registry {
	return registry.NewClient(cfg.Registry)
}

// provideChangePublisher returns the NATS publisher when a broker is
// configured, otherwise a no-op. Change publishing is best-effort, so a
// missing broker is a configuration choice, not an error.
func provideChangePublisher(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (ports.ChangePublisher, error) {
	if cfg.Nats.URL == "" {
		return events.NoopPublisher{}, nil
	}

	publisher, err := events.NewNatsPublisher(cfg.Nats.URL, cfg.Nats.Subject)
	if err != nil {
		return nil, err
	}

	logging.Info(logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx")),
		"nats change publisher connected",
		slog.String("subject", cfg.Nats.Subject))

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			publisher.Close()
			return nil
		},
	})

	return publisher, nil
}

func providePipelineService(repo ports.RatingsRepository, reg ports.Registry, publisher ports.ChangePublisher, cfg config.Config) *pipeline.Service {
	return pipeline.NewService(repo, reg, publisher, cfg.Pipeline)
}
