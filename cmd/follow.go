package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"gissues/internal/bootstrap"
	"gissues/internal/bootstrap/logging"
	domainmirror "gissues/internal/domain/mirror"
	"gissues/internal/errs"
	"gissues/internal/usecase/mirror"
)

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Manage followed repositories",
}

var followAddCmd = &cobra.Command{
	Use:   "add owner/name",
	Short: "Follow a repository, mirroring it first when it is not stored yet",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := cmd.Context()

		owner, name, err := domainmirror.ParseRepositoryRef(cmd.Flags().Arg(0))
		if err != nil {
			return err
		}
		username, _ := cmd.Flags().GetString("user")
		email, _ := cmd.Flags().GetString("email")

		out, err := app.Mirror.FollowRepository(ctx, mirror.FollowInput{
			Username: username,
			Email:    email,
			Owner:    owner,
			Name:     name,
		})
		if err != nil {
			logging.Error(ctx, "follow repository failed", slog.String("repository", cmd.Flags().Arg(0)), errs.Attr(err))
			return errs.Wrap(err, "follow repository")
		}

		verb := "following"
		if !out.Created {
			verb = "already following"
		}
		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"%s %s since=%s user=%s\n",
			verb,
			domainmirror.FormatRepositoryRef(out.Repository.OwnerName, out.Repository.Name),
			out.Follow.CreatedAt,
			username,
		); err != nil {
			return errs.Wrap(err, "write follow output")
		}
		return nil
	}),
}

var followRemoveCmd = &cobra.Command{
	Use:   "remove owner/name",
	Short: "Stop following a repository",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := cmd.Context()

		owner, name, err := domainmirror.ParseRepositoryRef(cmd.Flags().Arg(0))
		if err != nil {
			return err
		}
		username, _ := cmd.Flags().GetString("user")

		removed, err := app.Mirror.UnfollowRepository(ctx, username, owner, name)
		if err != nil {
			return errs.Wrap(err, "unfollow repository")
		}

		msg := "unfollowed"
		if !removed {
			msg = "not following"
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s user=%s\n", msg, domainmirror.FormatRepositoryRef(owner, name), username); err != nil {
			return errs.Wrap(err, "write unfollow output")
		}
		return nil
	}),
}

var followListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every (repository, follower) pair",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		follows, err := app.Mirror.ListFollows(cmd.Context())
		if err != nil {
			return errs.Wrap(err, "list follows")
		}

		out := cmd.OutOrStdout()
		if len(follows) == 0 {
			_, err := fmt.Fprintln(out, "no followed repositories")
			return err
		}
		for _, follow := range follows {
			if _, err := fmt.Fprintf(
				out,
				"%s\t%s <%s>\tsince=%s\n",
				domainmirror.FormatRepositoryRef(follow.OwnerName, follow.Name),
				follow.Username,
				follow.FollowerEmail,
				follow.FollowCreatedAt,
			); err != nil {
				return errs.Wrap(err, "write follow list")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(followCmd)
	followCmd.AddCommand(followAddCmd, followRemoveCmd, followListCmd)

	followAddCmd.Flags().String("user", "", "Follower username")
	followAddCmd.Flags().String("email", "", "Notification address of the follower")
	_ = followAddCmd.MarkFlagRequired("user")
	_ = followAddCmd.MarkFlagRequired("email")

	followRemoveCmd.Flags().String("user", "", "Follower username")
	_ = followRemoveCmd.MarkFlagRequired("user")
}
