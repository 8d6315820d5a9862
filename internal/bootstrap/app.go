package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"gissues/internal/bootstrap/config"
	"gissues/internal/bootstrap/logging"
	"gissues/internal/errs"
	"gissues/internal/infrastructure/persistence/sqlite/model"
	"gissues/internal/ports"
	"gissues/internal/usecase/mirror"
)

// App is what commands get after the fx graph started.
type App struct {
	Config   config.Config
	DB       *gorm.DB
	Logger   *slog.Logger
	Mirror   *mirror.Service
	Queue    ports.TaskQueue
	Consumer ports.TaskConsumer
}

func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithComponent(ctx, "bootstrap.app")
	logging.Info(logCtx, "start schema migration")

	if err := a.DB.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}

	logging.Info(logCtx, "schema migration completed")
	return nil
}

// RunWorkers starts the consumer with the mirror dispatch table; workers stop with ctx.
func (a *App) RunWorkers(ctx context.Context) error {
	if a.Consumer == nil || a.Mirror == nil {
		return errors.New("task consumer and mirror service are required")
	}
	return a.Consumer.Consume(ctx, a.Mirror.HandleTask)
}
