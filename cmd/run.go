package cmd

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"gissues/internal/bootstrap"
	"gissues/internal/bootstrap/logging"
	"gissues/internal/errs"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler, the task workers and the HTTP server in one process",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithComponent(ctx, "cmd.run")

		addr, _ := cmd.Flags().GetString("addr")
		if strings.TrimSpace(addr) == "" {
			addr = app.Config.HTTP.Addr
		}
		noHTTP, _ := cmd.Flags().GetBool("no-http")

		if err := app.RunWorkers(ctx); err != nil {
			return errs.Wrap(err, "start workers")
		}

		group, groupCtx := errgroup.WithContext(ctx)
		group.Go(func() error {
			return runScheduleLoop(groupCtx, app)
		})
		if !noHTTP {
			group.Go(func() error {
				return serveHTTP(groupCtx, addr, newMirrorHTTPHandler(groupCtx, app.Mirror))
			})
		}

		if err := group.Wait(); err != nil {
			return errs.Wrap(err, "run services")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("addr", "", "HTTP listen address (defaults to http.addr)")
	runCmd.Flags().Bool("no-http", false, "Run without the read-through HTTP server")
}
