// Package httpd implements the httpd command: the HTTP API server for
// inspecting runs, checkpoints, and sources.
package httpd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/merchantcrawl/cmd/common"
	"github.com/jonesrussell/merchantcrawl/internal/api"
)

const shutdownTimeout = 10 * time.Second

// Command returns the httpd command.
func Command(deps func() (*common.Deps, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deps()
			if err != nil {
				return err
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

			router := api.NewRouter(api.Params{
				Runs:        stores.History,
				Checkpoints: stores.Checkpoints,
				Sources:     allSources,
				Logger:      d.Logger,
			})

			server := &http.Server{
				Addr:         d.Config.Server.Address,
				Handler:      router,
				ReadTimeout:  d.Config.Server.ReadTimeout,
				WriteTimeout: d.Config.Server.WriteTimeout,
			}

			errChan := make(chan error, 1)
			go func() {
				d.Logger.Info("HTTP server starting", "address", server.Addr)
				if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
					errChan <- serveErr
				}
			}()

			select {
			case serveErr := <-errChan:
				return fmt.Errorf("server error: %w", serveErr)
			case <-ctx.Done():
				d.Logger.Info("Shutdown signal received")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
					return fmt.Errorf("failed to stop server: %w", shutdownErr)
				}
				d.Logger.Info("Server stopped")
				return nil
			}
		},
	}
}
