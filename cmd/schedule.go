package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gissues/internal/bootstrap"
	"gissues/internal/bootstrap/config"
	"gissues/internal/bootstrap/logging"
	"gissues/internal/errs"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Enqueue a sync for every followed repository, once or on an interval",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		once, _ := cmd.Flags().GetBool("once")

		if once {
			ctx := cmd.Context()
			if err := app.RunWorkers(ctx); err != nil {
				return errs.Wrap(err, "start workers")
			}
			result, err := app.Mirror.ScheduleFollowedRepositories(ctx)
			if err != nil {
				return errs.Wrap(err, "schedule followed repositories")
			}
			if err := app.Consumer.WaitIdle(ctx); err != nil {
				return errs.Wrap(err, "wait for scheduled tasks")
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "scheduled enqueued=%d failed=%d\n", result.Enqueued, result.Failed); err != nil {
				return errs.Wrap(err, "write schedule output")
			}
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		// A local queue has no other consumer than this process.
		if usesLocalQueue(app.Config) {
			if err := app.RunWorkers(ctx); err != nil {
				return errs.Wrap(err, "start workers")
			}
		}
		return runScheduleLoop(ctx, app)
	}),
}

// runScheduleLoop fires one scheduling pass immediately and then every
// schedule.interval; edits to the config file reset the interval.
func runScheduleLoop(ctx context.Context, app *bootstrap.App) error {
	ctx = logging.WithComponent(ctx, "cmd.schedule")

	interval := app.Config.Schedule.Interval
	if interval <= 0 {
		return errors.New("schedule.interval must be positive")
	}

	intervals := make(chan time.Duration, 1)
	if err := config.Watch(ctx, cfgFile, func(cfg config.Config) {
		if cfg.Schedule.Interval <= 0 {
			return
		}
		select {
		case intervals <- cfg.Schedule.Interval:
		default:
		}
	}); err != nil {
		logging.Warn(ctx, "config watch disabled", errs.Attr(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logging.Info(ctx, "scheduler started", slog.Duration("interval", interval))
	schedulePass(ctx, app)
	for {
		select {
		case <-ctx.Done():
			logging.Info(ctx, "scheduler stopped")
			return nil
		case next := <-intervals:
			if next != interval {
				interval = next
				ticker.Reset(interval)
				logging.Info(ctx, "schedule interval changed", slog.Duration("interval", interval))
			}
		case <-ticker.C:
			schedulePass(ctx, app)
		}
	}
}

func schedulePass(ctx context.Context, app *bootstrap.App) {
	if _, err := app.Mirror.ScheduleFollowedRepositories(ctx); err != nil {
		logging.Error(ctx, "scheduling pass failed", errs.Attr(err))
	}
}

func usesLocalQueue(cfg config.Config) bool {
	driver := strings.ToLower(strings.TrimSpace(cfg.Queue.Driver))
	return driver == "" || driver == "local"
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().Bool("once", false, "Run one scheduling pass, wait for it to drain, and exit")
}
