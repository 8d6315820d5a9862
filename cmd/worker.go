package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gissues/internal/bootstrap"
	"gissues/internal/bootstrap/logging"
	"gissues/internal/errs"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume sync and notification tasks until interrupted",
	Long:  "worker runs the task handlers against the configured queue. With the nats driver several workers share the load through the queue group.",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithComponent(ctx, "cmd.worker")

		if err := app.RunWorkers(ctx); err != nil {
			return errs.Wrap(err, "start workers")
		}
		logging.Info(ctx, "worker started")

		<-ctx.Done()
		logging.Info(ctx, "worker stopping")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
