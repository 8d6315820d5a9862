package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gissues/internal/bootstrap"
	domainmirror "gissues/internal/domain/mirror"
	"gissues/internal/errs"
	"gissues/internal/ports"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded create/update snapshots, newest first",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		kind, _ := cmd.Flags().GetString("kind")
		entityID, _ := cmd.Flags().GetUint64("id")
		limit, _ := cmd.Flags().GetInt("limit")
		showSnapshot, _ := cmd.Flags().GetBool("snapshot")

		filter := ports.HistoryFilter{
			EntityKind: domainmirror.EntityKind(strings.TrimSpace(kind)),
			EntityID:   entityID,
			Limit:      limit,
		}
		switch filter.EntityKind {
		case "", domainmirror.KindRepository, domainmirror.KindIssue, domainmirror.KindComment:
		default:
			return domainmirror.Validationf("unknown entity kind %q", kind)
		}

		records, err := app.Mirror.ListHistory(cmd.Context(), filter)
		if err != nil {
			return errs.Wrap(err, "list history")
		}

		out := cmd.OutOrStdout()
		for _, record := range records {
			if _, err := fmt.Fprintf(
				out,
				"%d\t%s\t%s\t%s#%d\t%s\n",
				record.HistoryID,
				record.RecordedAt,
				record.ChangeType,
				record.EntityKind,
				record.EntityID,
				record.NaturalKey,
			); err != nil {
				return errs.Wrap(err, "write history output")
			}
			if showSnapshot {
				if _, err := fmt.Fprintf(out, "\t%s\n", record.SnapshotJSON); err != nil {
					return errs.Wrap(err, "write history snapshot")
				}
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().String("kind", "", "Filter by entity kind (repository, issue, comment)")
	historyCmd.Flags().Uint64("id", 0, "Filter by local entity id")
	historyCmd.Flags().Int("limit", 50, "Maximum records to show")
	historyCmd.Flags().Bool("snapshot", false, "Print the stored JSON snapshot under each record")
}
