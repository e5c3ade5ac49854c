package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/classbook-backend/internal/calendar"
	"github.com/stemsi/classbook-backend/internal/live"
	"github.com/stemsi/classbook-backend/internal/metrics"
	"github.com/stemsi/classbook-backend/internal/middleware"
	"github.com/stemsi/classbook-backend/internal/model"
	"github.com/stemsi/classbook-backend/internal/response"
	"github.com/stemsi/classbook-backend/internal/service"
	ws "github.com/stemsi/classbook-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams today's completion state and accepts marks over a
// WebSocket.
type WSHandler struct {
	completionService *service.CompletionService
	cal               *calendar.Calendar
	metrics           *metrics.Metrics
	log               zerolog.Logger
	upgrader          websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. m may be nil.
func NewWSHandler(
	completionService *service.CompletionService,
	cal *calendar.Calendar,
	m *metrics.Metrics,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		completionService: completionService,
		cal:               cal,
		metrics:           m,
		log:               log.With().Str("component", "ws_handler").Logger(),
		upgrader:          buildUpgrader(allowedOrigins),
	}
}

// TodayStream godoc
// WS /ws/v1/today?token=
// Pushes the ids of the caller's classes completed today on connect and on
// every change, and accepts {"action":"mark"} messages.
func (h *WSHandler) TodayStream(c *gin.Context) {
	ownerID := middleware.UserID(c)
	if ownerID == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw)
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.LiveSubscribers.Inc()
		defer h.metrics.LiveSubscribers.Dec()
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The stream stays on the date the client connected; clients reconnect
	// after midnight to follow the new day.
	today := h.cal.Today()
	sub, err := h.completionService.WatchCompletedOn(ctx, today, ownerID)
	if err != nil {
		h.log.Error().Err(err).Msg("Watch completions failed")
		conn.WriteError("subscription failed", nil)
		return
	}
	defer sub.Cancel()

	wsLog := h.log.With().Str("owner_id", ownerID).Logger()
	wsLog.Info().Msg("Client connected")

	go h.pushSnapshots(conn, sub.Snapshots(), today, wsLog)

	for {
		var msg ws.RequestEnvelope
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionMark:
			h.handleMark(ctx, conn, wsLog, ownerID, &msg)
		case ws.ActionPing:
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			conn.WriteError("unknown action: "+string(msg.Action), nil)
		}
	}
}

func (h *WSHandler) pushSnapshots(conn *ws.Conn, snapshots <-chan live.Snapshot[model.ClassIDSet], date calendar.Date, wsLog zerolog.Logger) {
	for snap := range snapshots {
		if snap.Err != nil {
			wsLog.Error().Err(snap.Err).Msg("Completion query failed")
			conn.WriteError("refresh failed", nil)
			continue
		}
		err := conn.WriteTyped(ws.SnapshotResponse{
			Event:    ws.EventSnapshot,
			Seq:      snap.Seq,
			Date:     date.String(),
			ClassIDs: snap.Items,
		})
		if err != nil {
			wsLog.Debug().Err(err).Msg("Snapshot write failed")
			return
		}
	}
}

func (h *WSHandler) handleMark(ctx context.Context, conn *ws.Conn, wsLog zerolog.Logger, ownerID string, msg *ws.RequestEnvelope) {
	if msg.ClassID == "" {
		conn.WriteError("class_id is required", map[string]string{"class_id": "class_id is required"})
		return
	}

	var date calendar.Date
	if msg.Date != "" {
		d, err := calendar.ParseDate(msg.Date)
		if err != nil {
			conn.WriteError(response.GetMessage(response.ErrInvalidDate), map[string]string{"date": "must be YYYY-MM-DD"})
			return
		}
		date = d
	}

	record, err := h.completionService.MarkCompleted(ctx, msg.ClassID, ownerID, date)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			conn.WriteError(response.GetMessage(response.ErrValidation), verr.Fields)
		case errors.Is(err, service.ErrUnauthorized):
			conn.WriteError(response.GetMessage(response.ErrNotClassOwner), nil)
		case errors.Is(err, service.ErrNotFound):
			conn.WriteError(response.GetMessage(response.ErrClassNotFound), nil)
		default:
			wsLog.Error().Err(err).Str("class_id", msg.ClassID).Msg("Mark failed")
			conn.WriteError(response.GetMessage(response.ErrInternal), nil)
		}
		return
	}

	conn.WriteTyped(ws.MarkedResponse{Event: ws.EventMarked, Completion: record})
}
