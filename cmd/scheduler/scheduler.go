// Package scheduler implements the scheduler daemon: a long-running
// process that triggers ingestion runs on each source's cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/merchantcrawl/cmd/common"
	"github.com/jonesrussell/merchantcrawl/internal/sources"
)

// Command returns the scheduler command.
func Command(deps func() (*common.Deps, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run crawls on each source's cron schedule",
		Long: `Start a long-running daemon that triggers an ingestion run for every
enabled source carrying a cron schedule. The daemon stops on interrupt; an
in-flight run checkpoints its progress and resumes on the next trigger.`,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			all, err := d.LoadSources()
			if err != nil {
				return err
			}

			return run(ctx, d, stores, sources.Enabled(all))
		},
	}
}

func run(ctx context.Context, d *common.Deps, stores *common.Stores, enabled []sources.Source) error {
	c := cron.New()

	// Overlapping runs of the same source would fight over its
	// checkpoint, so each source runs at most once at a time.
	running := make(map[string]*sync.Mutex)

	scheduled := 0
	for i := range enabled {
		src := enabled[i]
		if src.Schedule == "" {
			continue
		}
		running[src.ID] = &sync.Mutex{}

		mu := running[src.ID]
		_, err := c.AddFunc(src.Schedule, func() {
			if !mu.TryLock() {
				d.Logger.Warn("Skipping trigger, previous run still active", "source_id", src.ID)
				return
			}
			defer mu.Unlock()

			ingestion, jobErr := d.NewIngestionJob(&src, stores)
			if jobErr != nil {
				d.Logger.Error("Failed to build ingestion job", "source_id", src.ID, "error", jobErr)
				return
			}
			if _, runErr := ingestion.Run(ctx); runErr != nil {
				d.Logger.Error("Scheduled run failed", "source_id", src.ID, "error", runErr)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid schedule %q for source %s: %w", src.Schedule, src.ID, err)
		}

		d.Logger.Info("Source scheduled", "source_id", src.ID, "schedule", src.Schedule)
		scheduled++
	}

	if scheduled == 0 {
		return fmt.Errorf("%w: no enabled source has a schedule", sources.ErrNoSources)
	}

	c.Start()
	d.Logger.Info("Scheduler started", "sources", scheduled)

	<-ctx.Done()

	d.Logger.Info("Scheduler stopping")
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}
