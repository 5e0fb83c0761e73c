package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const keepAliveInterval = 15 * time.Second

// streamEvents streams the session's file, sync, preview, editor and AI
// updates using Server-Sent Events (SSE).
func (h *Handler) streamEvents(c *gin.Context) {
	s := h.session(c)
	ctx := c.Request.Context()

	editor, err := s.Bridge.State(ctx)
	if err != nil {
		writeError(c, "stream_events", err)
		return
	}
	events, stop := s.Events.Subscribe()
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

	initialData, _ := json.Marshal(gin.H{
		"workspace": viewOf(s, nil),
		"sync":      s.Sync.State(),
		"preview":   s.Preview.State(),
		"editor":    editor,
		"ai":        s.AI.Status(),
	})
	fmt.Fprintf(c.Writer, "event: initial\ndata: %s\n\n", string(initialData))
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			s.Touch()
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
