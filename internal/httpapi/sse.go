package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oakline/upkeep/internal/notify"
)

// sseConn adapts one event-stream subscriber to the push registry. Send is
// called from dispatcher goroutines; the handler goroutine drains the
// buffer onto the wire.
type sseConn struct {
	ch chan []byte
}

func newSSEConn() *sseConn {
	return &sseConn{ch: make(chan []byte, 16)}
}

// Send queues a payload without blocking the dispatcher. A subscriber that
// stops reading fills its buffer and starts failing sends; the dispatcher
// logs and moves on.
func (c *sseConn) Send(payload []byte) error {
	select {
	case c.ch <- payload:
		return nil
	default:
		return fmt.Errorf("sse: subscriber buffer full")
	}
}

// handleEvents upgrades the request to an SSE stream and registers it for
// push delivery. The connection is unregistered when the client goes away.
func handleEvents(registry *notify.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.Query("identity")
		role := c.Query("role")
		orgID := c.Query("org")
		if identity == "" && role == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "identity or role is required"})
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		conn := newSSEConn()
		unregister := registry.Register(conn, identity, role, orgID)
		defer unregister()

		fmt.Fprintf(c.Writer, "event: connected\ndata: {}\n\n")
		c.Writer.Flush()

		ctx := c.Request.Context()
		heartbeat := time.NewTicker(15 * time.Second)
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				fmt.Fprintf(c.Writer, "event: heartbeat\ndata: {\"timestamp\":%q}\n\n",
					time.Now().UTC().Format(time.RFC3339))
				c.Writer.Flush()
			case payload := <-conn.ch:
				fmt.Fprintf(c.Writer, "event: notification\ndata: %s\n\n", payload)
				c.Writer.Flush()
			}
		}
	}
}
