package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/merchantcrawl/internal/database"
	"github.com/jonesrussell/merchantcrawl/internal/logger"
	"github.com/jonesrussell/merchantcrawl/internal/sources"
	"github.com/jonesrussell/merchantcrawl/internal/storage"
)

const defaultRunLimit = 10

type handlers struct {
	runs        RunStore
	checkpoints CheckpointStore
	sources     []sources.Source
	logger      logger.Interface
}

// listRuns returns recent runs, optionally filtered by ?source=.
func (h *handlers) listRuns(c *gin.Context) {
	limit := parseLimit(c, defaultRunLimit)
	sourceID := c.Query("source")

	runs, err := h.runs.RecentRuns(c.Request.Context(), sourceID, limit)
	if err != nil {
		h.logger.Error("Failed to list runs", "error", err)
		respondInternalError(c, "failed to list runs")
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func (h *handlers) getRun(c *gin.Context) {
	run, err := h.runs.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			respondNotFound(c, "run")
			return
		}
		h.logger.Error("Failed to get run", "run_id", c.Param("id"), "error", err)
		respondInternalError(c, "failed to get run")
		return
	}

	c.JSON(http.StatusOK, run)
}

func (h *handlers) listCheckpoints(c *gin.Context) {
	checkpoints, err := h.checkpoints.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list checkpoints", "error", err)
		respondInternalError(c, "failed to list checkpoints")
		return
	}

	c.JSON(http.StatusOK, gin.H{"checkpoints": checkpoints, "count": len(checkpoints)})
}

func (h *handlers) getCheckpoint(c *gin.Context) {
	cp, err := h.checkpoints.Get(c.Request.Context(), c.Param("source"))
	if err != nil {
		if errors.Is(err, database.ErrCheckpointNotFound) {
			respondNotFound(c, "checkpoint")
			return
		}
		h.logger.Error("Failed to get checkpoint", "source_id", c.Param("source"), "error", err)
		respondInternalError(c, "failed to get checkpoint")
		return
	}

	c.JSON(http.StatusOK, cp)
}

// clearCheckpoint discards a source's saved progress so its next run
// starts from the first page.
func (h *handlers) clearCheckpoint(c *gin.Context) {
	sourceID := c.Param("source")
	if err := h.checkpoints.Clear(c.Request.Context(), sourceID); err != nil {
		h.logger.Error("Failed to clear checkpoint", "source_id", sourceID, "error", err)
		respondInternalError(c, "failed to clear checkpoint")
		return
	}

	h.logger.Info("Checkpoint cleared", "source_id", sourceID)
	c.JSON(http.StatusOK, gin.H{"cleared": sourceID})
}

func (h *handlers) listSources(c *gin.Context) {
	type sourceView struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		BaseURL  string `json:"base_url"`
		Schedule string `json:"schedule,omitempty"`
		Enabled  bool   `json:"enabled"`
	}

	views := make([]sourceView, 0, len(h.sources))
	for i := range h.sources {
		src := &h.sources[i]
		views = append(views, sourceView{
			ID:       src.ID,
			Name:     src.Name,
			BaseURL:  src.BaseURL,
			Schedule: src.Schedule,
			Enabled:  src.Enabled,
		})
	}

	c.JSON(http.StatusOK, gin.H{"sources": views, "count": len(views)})
}

// parseLimit parses the limit query param with a default.
func parseLimit(c *gin.Context, defaultLimit int) int {
	limitStr := c.DefaultQuery("limit", strconv.Itoa(defaultLimit))
	limit, _ := strconv.Atoi(limitStr)
	if limit <= 0 {
		limit = defaultLimit
	}
	return limit
}

// respondError sends a JSON error response.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func respondNotFound(c *gin.Context, resource string) {
	respondError(c, http.StatusNotFound, resource+" not found")
}

func respondInternalError(c *gin.Context, message string) {
	respondError(c, http.StatusInternalServerError, message)
}
