package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/classbook-backend/internal/live"
	"github.com/stemsi/classbook-backend/internal/metrics"
)

// keepAliveInterval keeps idle SSE connections open through proxies.
const keepAliveInterval = 25 * time.Second

// streamSnapshots writes each snapshot of sub as an SSE event until the
// client disconnects or the subscription ends. Failed queries are sent as
// "error" events; the stream stays open for the next change.
func streamSnapshots[T any](c *gin.Context, sub *live.Subscription[T], event string, m *metrics.Metrics, log zerolog.Logger) {
	defer sub.Cancel()

	if m != nil {
		m.LiveSubscribers.Inc()
		defer m.LiveSubscribers.Dec()
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	reqCtx := c.Request.Context()
	log.Debug().Str("event", event).Msg("Stream connected")

	for {
		select {
		case <-reqCtx.Done():
			log.Debug().Str("event", event).Msg("Stream disconnected")
			return
		case <-ticker.C:
			if _, err := c.Writer.Write([]byte(": keep-alive\n\n")); err != nil {
				return
			}
			c.Writer.Flush()
		case snap, ok := <-sub.Snapshots():
			if !ok {
				return
			}
			if snap.Err != nil {
				log.Error().Err(snap.Err).Str("event", event).Msg("Stream query failed")
				c.SSEvent("error", gin.H{"seq": snap.Seq, "message": "refresh failed"})
			} else {
				c.SSEvent(event, gin.H{"seq": snap.Seq, "data": snap.Items})
			}
			c.Writer.Flush()
		}
	}
}
