package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/classbook-backend/internal/metrics"
	"github.com/stemsi/classbook-backend/internal/middleware"
	"github.com/stemsi/classbook-backend/internal/response"
	"github.com/stemsi/classbook-backend/internal/service"
)

const maxSeriesMonths = 36

// DashboardHandler serves monthly aggregates and the owner's dashboard.
type DashboardHandler struct {
	statsService *service.StatsService
	metrics      *metrics.Metrics
	log          zerolog.Logger
}

// NewDashboardHandler creates a new DashboardHandler. m may be nil.
func NewDashboardHandler(statsService *service.StatsService, m *metrics.Metrics, log zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		statsService: statsService,
		metrics:      m,
		log:          log.With().Str("component", "dashboard_handler").Logger(),
	}
}

// GetDashboard godoc
// GET /api/v1/dashboard
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	dash, err := h.statsService.Dashboard(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		failService(c, h.log, err, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"dashboard": dash})
}

// StreamDashboard godoc
// GET /api/v1/dashboard/stream
// Pushes a fresh dashboard over SSE whenever the caller's classes or
// completions change.
func (h *DashboardHandler) StreamDashboard(c *gin.Context) {
	sub, err := h.statsService.WatchDashboard(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		failService(c, h.log, err, response.ErrNotFound)
		return
	}
	streamSnapshots(c, sub, "dashboard", h.metrics, h.log)
}

// Series godoc
// GET /api/v1/stats/series?months=
// Returns completion counts for the last N months, oldest first, including
// months with no completions.
func (h *DashboardHandler) Series(c *gin.Context) {
	months, ok := intQuery(c, "months", maxSeriesMonths)
	if !ok {
		return
	}

	series, err := h.statsService.RecentSeries(c.Request.Context(), middleware.UserID(c), months)
	if err != nil {
		failService(c, h.log, err, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"series": series})
}
