package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"gissues/internal/bootstrap"
	"gissues/internal/bootstrap/logging"
	domainmirror "gissues/internal/domain/mirror"
	"gissues/internal/errs"
	"gissues/internal/usecase/mirror"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass in the foreground",
}

var syncRepoCmd = &cobra.Command{
	Use:   "repo owner/name",
	Short: "Sync a repository and its issues, then drain the follow-up tasks",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := cmd.Context()

		owner, name, err := domainmirror.ParseRepositoryRef(cmd.Flags().Arg(0))
		if err != nil {
			return err
		}
		followSince, _ := cmd.Flags().GetString("follow-since")
		email, _ := cmd.Flags().GetString("email")

		return runDrained(cmd, app, func() (mirror.SyncResult, error) {
			return app.Mirror.SyncRepository(ctx, mirror.SyncRepositoryInput{
				Owner:           owner,
				Name:            name,
				FollowCreatedAt: followSince,
				RecipientEmail:  email,
			})
		}, domainmirror.FormatRepositoryRef(owner, name))
	}),
}

var syncCommentsCmd = &cobra.Command{
	Use:   "comments owner/name number",
	Short: "Sync the comments of one issue",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := cmd.Context()

		owner, name, err := domainmirror.ParseRepositoryRef(cmd.Flags().Arg(0))
		if err != nil {
			return err
		}
		number, err := domainmirror.ParseIssueNumber(cmd.Flags().Arg(1))
		if err != nil {
			return err
		}

		return runDrained(cmd, app, func() (mirror.SyncResult, error) {
			return app.Mirror.SyncComments(ctx, owner, name, number)
		}, domainmirror.FormatIssueRef(owner, name, number))
	}),
}

var syncUserReposCmd = &cobra.Command{
	Use:   "user-repos username",
	Short: "Mirror the repository records of every repository a user owns",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		username := cmd.Flags().Arg(0)
		return runDrained(cmd, app, func() (mirror.SyncResult, error) {
			return app.Mirror.SyncUserRepositories(cmd.Context(), username)
		}, username)
	}),
}

// runDrained starts the workers, runs pass, and waits until every task it queued is done.
func runDrained(cmd *cobra.Command, app *bootstrap.App, pass func() (mirror.SyncResult, error), target string) error {
	ctx := logging.WithAttrs(cmd.Context(), slog.String("target", target))

	if err := app.RunWorkers(ctx); err != nil {
		return errs.Wrap(err, "start workers")
	}

	result, err := pass()
	if err != nil {
		logging.Error(ctx, "sync pass failed", errs.Attr(err))
		return errs.Wrapf(err, "sync %s", target)
	}
	if err := app.Consumer.WaitIdle(ctx); err != nil {
		return errs.Wrap(err, "wait for follow-up tasks")
	}

	return writeSyncResult(cmd.OutOrStdout(), target, result)
}

func writeSyncResult(w io.Writer, target string, result mirror.SyncResult) error {
	_, err := fmt.Fprintf(
		w,
		"synced %s repository=%s created=%d updated=%d unchanged=%d comment_tasks=%d notification_tasks=%d\n",
		target,
		result.RepositoryDecision,
		result.Created,
		result.Updated,
		result.Unchanged,
		result.CommentTasks,
		result.NotificationTasks,
	)
	if err != nil {
		return errs.Wrap(err, "write sync output")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncRepoCmd, syncCommentsCmd, syncUserReposCmd)

	syncRepoCmd.Flags().String("follow-since", "", "Notify only for issues created or updated after this timestamp")
	syncRepoCmd.Flags().String("email", "", "Notification recipient (empty disables notifications)")
}
