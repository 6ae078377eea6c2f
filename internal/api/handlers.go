// Package api serves the derived DORA metrics and repository activity over HTTP.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/reillywatson/dorastats/internal/dora"
	"github.com/reillywatson/dorastats/internal/feed"
	"github.com/reillywatson/dorastats/internal/observability"
	"github.com/reillywatson/dorastats/internal/snapshot"
	"github.com/reillywatson/dorastats/internal/source"
)

// SnapshotProvider returns the current snapshot or an error wrapping
// source.ErrUnavailable
type SnapshotProvider interface {
	Store() (*snapshot.Store, error)
}

// Handlers serves the API. Now defaults to time.Now.
type Handlers struct {
	Snapshots SnapshotProvider
	Feeds     feed.Fetcher
	Now       func() time.Time
	Log       *slog.Logger
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

func (h *Handlers) logger(c *gin.Context) *slog.Logger {
	log := h.Log
	if log == nil {
		log = slog.Default()
	}
	return log.With("request_id", c.GetString(requestIDKey), "path", c.FullPath())
}

const requestIDKey = "request_id"

// RequestID propagates X-Request-ID, generating one when absent
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// Health handles GET /health
func (h *Handlers) Health(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Snapshot: "loaded"}
	if _, err := h.Snapshots.Store(); err != nil {
		resp.Snapshot = "unavailable"
	}
	c.JSON(http.StatusOK, resp)
}

// view resolves the window parameter and filters the current snapshot. It
// writes the error response itself and returns ok=false on failure.
func (h *Handlers) view(c *gin.Context) (v dora.View, store *snapshot.Store, now time.Time, ok bool) {
	w, err := dora.ParseWindow(c.Query("window"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_WINDOW"})
		return v, nil, now, false
	}
	store, err = h.Snapshots.Store()
	if err != nil {
		h.logger(c).Warn("snapshot unavailable", "error", err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: source.ErrUnavailable.Error(), Code: "DATA_UNAVAILABLE"})
		return v, nil, now, false
	}
	now = h.now()
	return dora.Filter(store, w, now), store, now, true
}

func (h *Handlers) derive(v dora.View, store *snapshot.Store, now time.Time) dora.Snapshot {
	start := time.Now()
	s := dora.Derive(v, store, now)
	observability.ObserveDerive(v.Window.String(), time.Since(start))
	return s
}

// Dashboard handles GET /api/v1/dashboard
func (h *Handlers) Dashboard(c *gin.Context) {
	v, store, now, ok := h.view(c)
	if !ok {
		return
	}
	actors := dora.ActorPerformance(v.Deployments)
	dora.SortByDeployments(actors)

	c.JSON(http.StatusOK, DashboardResponse{
		Window:          v.Window.String(),
		Metrics:         h.derive(v, store, now),
		StatusBreakdown: dora.StatusBreakdown(v.Deployments),
		Actors:          actors,
		Authors:         dora.AuthorCounts(v.PullRequests),
	})
}

// Metrics handles GET /api/v1/metrics
func (h *Handlers) Metrics(c *gin.Context) {
	v, store, now, ok := h.view(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.derive(v, store, now))
}

// Rollups handles GET /api/v1/rollups
func (h *Handlers) Rollups(c *gin.Context) {
	v, _, _, ok := h.view(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, RollupsResponse{Window: v.Window.String(), Points: dora.RollupSeries(v)})
}

// Repos handles GET /api/v1/repos. A failed fetch returns 502 and no rows;
// nothing from an earlier fetch is served in its place.
func (h *Handlers) Repos(c *gin.Context) {
	period, err := feed.ParsePeriod(c.Query("period"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_PERIOD"})
		return
	}
	if h.Feeds == nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: feed.ErrFeedUnavailable.Error(), Code: "FEED_UNAVAILABLE"})
		return
	}

	res, err := h.Feeds.Fetch(c.Request.Context(), period)
	if err != nil {
		h.logger(c).Error("repository summary fetch failed", "period", period, "error", err)
		msg := err.Error()
		if !errors.Is(err, feed.ErrFeedUnavailable) {
			msg = feed.ErrFeedUnavailable.Error() + ": " + msg
		}
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: msg, Code: "FEED_UNAVAILABLE"})
		return
	}
	c.JSON(http.StatusOK, res)
}
