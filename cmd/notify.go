package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"gissues/internal/bootstrap"
	"gissues/internal/errs"
	"gissues/internal/usecase/mirror"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification delivery commands",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send one notification through the configured notifier",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		to, _ := cmd.Flags().GetString("to")
		subject, _ := cmd.Flags().GetString("subject")
		body, _ := cmd.Flags().GetString("body")

		if !cmd.Flags().Changed("body") {
			var err error
			subject, body, err = renderSampleNotification(app, subject, cmd.Flags().Changed("subject"))
			if err != nil {
				return err
			}
		}

		if err := app.Mirror.SendNotification(cmd.Context(), to, subject, body); err != nil {
			return errs.Wrap(err, "send test notification")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "notification sent to %s via %s\n", to, app.Config.Notify.Driver); err != nil {
			return errs.Wrap(err, "write notify output")
		}
		return nil
	}),
}

// renderSampleNotification fills the configured templates with a placeholder issue.
func renderSampleNotification(app *bootstrap.App, subject string, keepSubject bool) (string, string, error) {
	templates, err := mirror.LoadTemplates(app.Config.Notify.TemplatesFile)
	if err != nil {
		return "", "", err
	}
	renderedSubject, body, err := templates.Render(mirror.NotificationData{
		Owner:      "octo",
		Name:       "hello",
		Repository: "octo/hello",
		Title:      "Sample issue",
		Number:     1,
	})
	if err != nil {
		return "", "", err
	}
	if keepSubject {
		return subject, body, nil
	}
	return renderedSubject, body, nil
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)

	notifyTestCmd.Flags().String("to", "", "Recipient address")
	notifyTestCmd.Flags().String("subject", "gissues test notification", "Subject line")
	notifyTestCmd.Flags().String("body", "", "Body text (defaults to the rendered notification template)")
	_ = notifyTestCmd.MarkFlagRequired("to")
}
