package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bizconsole/console-backend/internal/auth"
)

const keepAliveInterval = 15 * time.Second

// streamEvents streams incremental project and conversation updates for the
// caller using Server-Sent Events (SSE).
func (h *Handler) streamEvents(c *gin.Context) {
	ownerUID := auth.UserFirebaseUID(c)
	ctx := c.Request.Context()

	projects, err := h.svc.List(ctx, ownerUID)
	if err != nil {
		writeError(c, "stream_events", err)
		return
	}
	events, stop, err := h.svc.Subscribe(ctx, ownerUID)
	if err != nil {
		writeError(c, "stream_events", err)
		return
	}
	defer stop()

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // nginx: disable buffering

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "streaming unsupported"})
		return
	}

	initialData, _ := json.Marshal(gin.H{"projects": projects})
	fmt.Fprintf(c.Writer, "event: initial\ndata: %s\n\n", string(initialData))
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			flusher.Flush()

		case ev, ok := <-events:
			if !ok {
				return
			}
			eventData, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Type, string(eventData))
			flusher.Flush()
		}
	}
}
