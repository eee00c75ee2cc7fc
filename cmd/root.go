// Package cmd implements the command-line interface for merchantcrawl.
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/merchantcrawl/cmd/common"
	"github.com/jonesrussell/merchantcrawl/cmd/crawl"
	cmdhistory "github.com/jonesrussell/merchantcrawl/cmd/history"
	"github.com/jonesrussell/merchantcrawl/cmd/httpd"
	cmdscheduler "github.com/jonesrussell/merchantcrawl/cmd/scheduler"
	cmdsources "github.com/jonesrussell/merchantcrawl/cmd/sources"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "merchantcrawl",
		Short: "A resumable merchant-listing crawler",
		Long: `merchantcrawl harvests merchant listings from paginated sources,
geocodes them, and ingests them into Elasticsearch in batches. Crawls are
rate limited and checkpointed, so an interrupted run resumes where it
stopped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command. It installs signal handling so every
// subcommand sees a context canceled on interrupt.
func Execute() error {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

// deps builds the shared dependencies lazily, after flag parsing.
func deps() (*common.Deps, error) {
	return common.NewDeps(cfgFile, debug)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("merchantcrawl version %s\n", "1.0.0")
		},
	})

	rootCmd.AddCommand(crawl.Command(deps))
	rootCmd.AddCommand(cmdsources.Command(deps))
	rootCmd.AddCommand(cmdhistory.Command(deps))
	rootCmd.AddCommand(cmdscheduler.Command(deps))
	rootCmd.AddCommand(httpd.Command(deps))
}
