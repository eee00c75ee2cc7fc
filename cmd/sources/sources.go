// Package sources implements the sources command for inspecting the
// configured crawl sources.
package sources

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/merchantcrawl/cmd/common"
	internalsources "github.com/jonesrussell/merchantcrawl/internal/sources"
)

// Command returns the sources command with its subcommands.
func Command(deps func() (*common.Deps, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage crawl sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(listCommand(deps))
	return cmd
}

func listCommand(deps func() (*common.Deps, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deps()
			if err != nil {
				return err
			}

			all, err := d.LoadSources()
			if err != nil {
				return err
			}
			if len(all) == 0 {
				d.Logger.Info("No sources configured")
				return nil
			}

			renderTable(all)
			return nil
		},
	}
}

func renderTable(all []internalsources.Source) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"ID", "Name", "Base URL", "Pages", "Schedule", "Enabled"})
	for i := range all {
		src := &all[i]
		pages := "auto"
		if !src.AutoDetect() {
			pages = pageRange(src)
		}
		t.AppendRow(table.Row{src.ID, src.Name, src.BaseURL, pages, src.Schedule, src.Enabled})
	}

	t.Render()
}

func pageRange(src *internalsources.Source) string {
	return fmt.Sprintf("%d-%d", src.StartPage, src.EndPage)
}
