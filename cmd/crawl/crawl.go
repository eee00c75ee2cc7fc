// Package crawl implements the crawl command: one full ingestion run
// for a single source, or for every enabled source with --all.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/merchantcrawl/cmd/common"
	"github.com/jonesrussell/merchantcrawl/internal/domain"
	"github.com/jonesrussell/merchantcrawl/internal/sources"
)

// Command returns the crawl command.
func Command(deps func() (*common.Deps, error)) *cobra.Command {
	var (
		all   bool
		fresh bool
	)

	cmd := &cobra.Command{
		Use:   "crawl [source]",
		Short: "Run an ingestion crawl for a source",
		Long: `Crawl a source's listing pages, extract merchant records, enrich them
with coordinates, and persist them. Progress is checkpointed per page, so an
interrupted crawl resumes where it left off.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("specify a source id or use --all")
			}

			d, err := deps()
			if err != nil {
				return err
			}
			if err = d.Config.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx := cmd.Context()
			stores, err := d.NewStores(ctx)
			if err != nil {
				return err
			}

			allSources, err := d.LoadSources()
			if err != nil {
				return err
			}

			targets, err := selectSources(allSources, args, all)
			if err != nil {
				return err
			}

			if fresh {
				for i := range targets {
					if clearErr := stores.Checkpoints.Clear(ctx, targets[i].ID); clearErr != nil {
						return clearErr
					}
				}
			}

			return runAll(ctx, d, stores, targets)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "crawl every enabled source")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "discard any existing checkpoint and start from the first page")

	return cmd
}

// selectSources resolves the command arguments to concrete sources.
func selectSources(allSources []sources.Source, args []string, all bool) ([]sources.Source, error) {
	if !all {
		src, err := sources.Find(allSources, args[0])
		if err != nil {
			return nil, err
		}
		return []sources.Source{*src}, nil
	}

	enabled := sources.Enabled(allSources)
	if len(enabled) == 0 {
		return nil, sources.ErrNoSources
	}
	return enabled, nil
}

// runAll runs one ingestion job per source concurrently. Sources are
// independent sites, so each keeps its own pacing.
func runAll(ctx context.Context, d *common.Deps, stores *common.Stores, targets []sources.Source) error {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		runErrs []error
	)

	for i := range targets {
		src := targets[i]

		ingestion, err := d.NewIngestionJob(&src, stores)
		if err != nil {
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			run, runErr := ingestion.Run(ctx)
			printRunSummary(run)
			if runErr != nil {
				mu.Lock()
				runErrs = append(runErrs, fmt.Errorf("source %s: %w", src.ID, runErr))
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return errors.Join(runErrs...)
}

func printRunSummary(run *domain.RunResult) {
	if run == nil {
		return
	}
	fmt.Printf("%s: %s  merchants=%d new=%d updated=%d geocoded=%d duration=%.1fs\n",
		run.SourceID, run.Status,
		run.TotalMerchants, run.NewMerchants, run.UpdatedCount,
		run.GeocodedCount, run.DurationSeconds,
	)
}
