package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"gissues/internal/bootstrap"
	domainmirror "gissues/internal/domain/mirror"
	"gissues/internal/errs"
	"gissues/internal/usecase/mirror"
)

var (
	statusHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	statusCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	statusErrorStyle  = statusCellStyle.Foreground(lipgloss.Color("9"))
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mirrored repositories with counts and last sync pass",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		rows, err := app.Mirror.Status(cmd.Context())
		if err != nil {
			return errs.Wrap(err, "load status")
		}
		if len(rows) == 0 {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "no repositories mirrored yet")
			return err
		}

		if _, err := fmt.Fprintln(cmd.OutOrStdout(), renderStatusTable(rows)); err != nil {
			return errs.Wrap(err, "write status output")
		}
		return nil
	}),
}

const statusErrorColumn = 7

func renderStatusTable(rows []mirror.RepositoryStatus) string {
	cells := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells = append(cells, []string{
			domainmirror.FormatRepositoryRef(row.OwnerName, row.Name),
			strconv.FormatInt(row.IssueCount, 10),
			strconv.FormatInt(row.OpenIssueCount, 10),
			strconv.FormatInt(row.CommentCount, 10),
			strconv.FormatInt(row.FollowerCount, 10),
			orDash(row.UpdatedAt),
			orDash(row.LastPass),
			orDash(row.LastError),
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("REPOSITORY", "ISSUES", "OPEN", "COMMENTS", "FOLLOWERS", "UPDATED", "LAST PASS", "LAST ERROR").
		Rows(cells...).
		StyleFunc(func(row int, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return statusHeaderStyle
			}
			if col == statusErrorColumn && row >= 0 && row < len(cells) && cells[row][col] != "-" {
				return statusErrorStyle
			}
			return statusCellStyle
		}).
		String()
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
