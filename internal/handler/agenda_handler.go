package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/classbook-backend/internal/middleware"
	"github.com/stemsi/classbook-backend/internal/response"
	"github.com/stemsi/classbook-backend/internal/schedule"
	"github.com/stemsi/classbook-backend/internal/service"
)

const maxAgendaDays = 31

// AgendaHandler projects the caller's weekly schedules onto dates.
type AgendaHandler struct {
	statsService      *service.StatsService
	completionService *service.CompletionService
	log               zerolog.Logger
}

// NewAgendaHandler creates a new AgendaHandler.
func NewAgendaHandler(statsService *service.StatsService, completionService *service.CompletionService, log zerolog.Logger) *AgendaHandler {
	return &AgendaHandler{
		statsService:      statsService,
		completionService: completionService,
		log:               log.With().Str("component", "agenda_handler").Logger(),
	}
}

// todaySession is a session annotated with its ledger state.
type todaySession struct {
	schedule.Session
	Completed bool `json:"completed"`
}

// Today godoc
// GET /api/v1/agenda/today
// Lists today's sessions in schedule order with their completion state.
func (h *AgendaHandler) Today(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID := middleware.UserID(c)

	date, sessions, err := h.statsService.Today(ctx, ownerID)
	if err != nil {
		failService(c, h.log, err, response.ErrNotFound)
		return
	}
	done, err := h.completionService.CompletedOn(ctx, date, ownerID)
	if err != nil {
		failService(c, h.log, err, response.ErrNotFound)
		return
	}

	out := make([]todaySession, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, todaySession{Session: s, Completed: done.Has(s.Class.ID)})
	}
	response.Success(c, http.StatusOK, gin.H{
		"date":     date,
		"weekday":  date.Weekday(),
		"sessions": out,
	})
}

// Upcoming godoc
// GET /api/v1/agenda/upcoming?days=
// Lists the sessions of the days after today, skipping empty days.
func (h *AgendaHandler) Upcoming(c *gin.Context) {
	days, ok := intQuery(c, "days", maxAgendaDays)
	if !ok {
		return
	}

	agenda, err := h.statsService.Upcoming(c.Request.Context(), middleware.UserID(c), days)
	if err != nil {
		failService(c, h.log, err, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"days": agenda})
}
