package bootstrap

import (
	"context"
	"log/slog"
	"os"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"gissues/internal/bootstrap/config"
	"gissues/internal/bootstrap/database"
	"gissues/internal/bootstrap/logging"
	cacheinfra "gissues/internal/infrastructure/cache"
	githubinfra "gissues/internal/infrastructure/github"
	"gissues/internal/infrastructure/notify"
	sqliterepo "gissues/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "gissues/internal/infrastructure/persistence/sqlite/uow"
	"gissues/internal/infrastructure/queue"
	"gissues/internal/ports"
	"gissues/internal/usecase/mirror"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideLogger),
	fx.Provide(provideDatabase),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewMirrorRepository,
			fx.As(new(ports.MirrorRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(provideRemoteClient),
	fx.Provide(provideQueue),
	fx.Provide(
		func(q queue.Queue) ports.TaskQueue { return q },
		func(q queue.Queue) ports.TaskConsumer { return q },
	),
	fx.Provide(provideNotifier),
	fx.Provide(provideTemplates),
	fx.Provide(provideMirrorService),
	fx.Provide(provideApp),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	return config.Load(logging.WithComponent(p.Ctx, "bootstrap.fx"), p.ConfigFile)
}

// provideLogger builds the configured logger; the rotating file, if any, closes on stop.
func provideLogger(lc fx.Lifecycle, cfg config.Config) (*slog.Logger, error) {
	logger, closer, err := logging.New(cfg.Log.LoggingOptions(), os.Stderr)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return closer.Close()
		},
	})
	return logger, nil
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config, logger *slog.Logger) (*gorm.DB, error) {
	logCtx := logging.WithComponent(logging.WithLogger(ctx, logger), "bootstrap.fx")

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

func provideRemoteClient(cfg config.Config) (ports.RemoteClient, error) {
	client, err := githubinfra.NewClient(cfg.GitHub, nil)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func provideQueue(lc fx.Lifecycle, cfg config.Config) (queue.Queue, error) {
	q, err := queue.New(cfg.Queue)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return q.Close()
		},
	})
	return q, nil
}

func provideNotifier(cfg config.Config) (ports.Notifier, error) {
	return notify.New(cfg.Notify)
}

func provideTemplates(cfg config.Config) (*mirror.Templates, error) {
	return mirror.LoadTemplates(cfg.Notify.TemplatesFile)
}

type mirrorParams struct {
	fx.In

	Repo      ports.MirrorRepository
	UoW       ports.UnitOfWork
	Remote    ports.RemoteClient
	Queue     ports.TaskQueue
	Notifier  ports.Notifier
	Cache     ports.Cache
	Templates *mirror.Templates
}

func provideMirrorService(p mirrorParams) *mirror.Service {
	return mirror.NewService(mirror.Deps{
		Repo:      p.Repo,
		UoW:       p.UoW,
		Remote:    p.Remote,
		Queue:     p.Queue,
		Notifier:  p.Notifier,
		Cache:     p.Cache,
		Templates: p.Templates,
	})
}

type appParams struct {
	fx.In

	Config   config.Config
	DB       *gorm.DB
	Logger   *slog.Logger
	Mirror   *mirror.Service
	Queue    ports.TaskQueue
	Consumer ports.TaskConsumer
}

func provideApp(p appParams) *App {
	return &App{
		Config:   p.Config,
		DB:       p.DB,
		Logger:   p.Logger,
		Mirror:   p.Mirror,
		Queue:    p.Queue,
		Consumer: p.Consumer,
	}
}
