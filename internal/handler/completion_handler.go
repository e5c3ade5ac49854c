package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/classbook-backend/internal/calendar"
	"github.com/stemsi/classbook-backend/internal/middleware"
	"github.com/stemsi/classbook-backend/internal/model"
	"github.com/stemsi/classbook-backend/internal/response"
	"github.com/stemsi/classbook-backend/internal/service"
	"github.com/stemsi/classbook-backend/internal/validator"
)

// CompletionHandler records and reads the completion ledger.
type CompletionHandler struct {
	completionService *service.CompletionService
	statsService      *service.StatsService
	cal               *calendar.Calendar
	log               zerolog.Logger
}

// NewCompletionHandler creates a new CompletionHandler.
func NewCompletionHandler(
	completionService *service.CompletionService,
	statsService *service.StatsService,
	cal *calendar.Calendar,
	log zerolog.Logger,
) *CompletionHandler {
	return &CompletionHandler{
		completionService: completionService,
		statsService:      statsService,
		cal:               cal,
		log:               log.With().Str("component", "completion_handler").Logger(),
	}
}

// MarkCompleted godoc
// POST /api/v1/classes/:id/completions
// Marks the class's session on the given date (default today) as held.
// Marking twice is a no-op.
func (h *CompletionHandler) MarkCompleted(c *gin.Context) {
	id, ok := classIDParam(c)
	if !ok {
		return
	}

	var req model.MarkCompletedRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	var date calendar.Date
	if req.Date != "" {
		d, err := calendar.ParseDate(req.Date)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidDate)
			return
		}
		date = d
	}

	record, err := h.completionService.MarkCompleted(c.Request.Context(), id, middleware.UserID(c), date)
	if err != nil {
		failService(c, h.log, err, response.ErrClassNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"completion": record})
}

// ClassHistory godoc
// GET /api/v1/classes/:id/completions
// Returns the class's completions, oldest first, and their per-month counts.
func (h *CompletionHandler) ClassHistory(c *gin.Context) {
	id, ok := classIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	ownerID := middleware.UserID(c)

	records, err := h.completionService.History(ctx, id, ownerID)
	if err != nil {
		failService(c, h.log, err, response.ErrClassNotFound)
		return
	}
	byMonth, err := h.statsService.CountsByMonthForClass(ctx, id, ownerID)
	if err != nil {
		failService(c, h.log, err, response.ErrClassNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"completions": records,
		"by_month":    byMonth,
	})
}

// CompletedOn godoc
// GET /api/v1/completions?date=
// Returns the ids of the caller's classes completed on date (default today).
func (h *CompletionHandler) CompletedOn(c *gin.Context) {
	date, ok := dateQuery(c, "date")
	if !ok {
		return
	}
	if date.IsZero() {
		date = h.cal.Today()
	}

	set, err := h.completionService.CompletedOn(c.Request.Context(), date, middleware.UserID(c))
	if err != nil {
		failService(c, h.log, err, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"date":      date,
		"class_ids": set,
	})
}
