package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"gissues/internal/bootstrap/logging"
	"gissues/internal/errs"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "gissues",
	Short:        "Mirror GitHub repositories, issues and comments into a local store",
	Long:         "gissues keeps a local copy of GitHub repositories, issues and comments, syncing lazily on read and periodically for followed repositories.",
	SilenceUsage: true,
}

// Execute runs the root command. Commands that boot the app replace the console logger
// with the configured one.
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	logger := slog.New(slog.NewTextHandler(rootCmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	ctx = logging.WithLogger(ctx, logger)
	ctx = logging.WithAttrs(ctx, slog.String("app", "gissues"))

	rootCmd.SetContext(ctx)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error(ctx, "command execution failed", errs.Attr(err))
		return errs.Wrap(err, "execute root command")
	}

	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path (default: config.yaml in ./configs or .)")
}
