// Package history implements the history command for inspecting past
// ingestion runs.
package history

import (
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/merchantcrawl/cmd/common"
	"github.com/jonesrussell/merchantcrawl/internal/domain"
)

const defaultLimit = 10

// Command returns the history command.
func Command(deps func() (*common.Deps, error)) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [source]",
		Short: "Show recent ingestion runs",
		Long:  `Show the most recent ingestion runs, newest first, optionally filtered to one source.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deps()
			if err != nil {
				return err
			}

			stores, err := d.NewStores(cmd.Context())
			if err != nil {
				return err
			}

			var sourceID string
			if len(args) > 0 {
				sourceID = args[0]
			}

			runs, err := stores.History.RecentRuns(cmd.Context(), sourceID, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				d.Logger.Info("No runs recorded yet")
				return nil
			}

			renderRuns(runs)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", defaultLimit, "maximum number of runs to show")
	return cmd
}

func renderRuns(runs []*domain.RunResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{
		"Run ID", "Source", "Status", "Started", "Duration",
		"Merchants", "New", "Updated", "Geocoded", "Errors",
	})
	for _, run := range runs {
		t.AppendRow(table.Row{
			run.RunID,
			run.SourceID,
			string(run.Status),
			run.StartedAt.Format(time.RFC3339),
			(time.Duration(run.DurationSeconds * float64(time.Second))).Round(time.Second),
			run.TotalMerchants,
			run.NewMerchants,
			run.UpdatedCount,
			run.GeocodedCount,
			strings.Join(run.Errors, "; "),
		})
	}

	t.Render()
}
