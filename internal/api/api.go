// Package api implements the HTTP API for inspecting crawl state: run
// history, per-source checkpoints, and the configured sources.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/merchantcrawl/internal/domain"
	"github.com/jonesrussell/merchantcrawl/internal/logger"
	"github.com/jonesrussell/merchantcrawl/internal/sources"
)

// RunStore reads run history.
type RunStore interface {
	GetRun(ctx context.Context, runID string) (*domain.RunResult, error)
	RecentRuns(ctx context.Context, sourceID string, limit int) ([]*domain.RunResult, error)
}

// CheckpointStore reads and clears crawl checkpoints.
type CheckpointStore interface {
	Get(ctx context.Context, sourceID string) (*domain.Checkpoint, error)
	List(ctx context.Context) ([]*domain.Checkpoint, error)
	Clear(ctx context.Context, sourceID string) error
}

// Params holds the API's dependencies.
type Params struct {
	Runs        RunStore
	Checkpoints CheckpointStore
	Sources     []sources.Source
	Logger      logger.Interface
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(p Params) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	h := &handlers{
		runs:        p.Runs,
		checkpoints: p.Checkpoints,
		sources:     p.Sources,
		logger:      p.Logger.WithComponent("api"),
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		v1.GET("/runs", h.listRuns)
		v1.GET("/runs/:id", h.getRun)
		v1.GET("/checkpoints", h.listCheckpoints)
		v1.GET("/checkpoints/:source", h.getCheckpoint)
		v1.DELETE("/checkpoints/:source", h.clearCheckpoint)
		v1.GET("/sources", h.listSources)
	}

	return router
}
