package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bizconsole/console-backend/internal/logging"
	"github.com/bizconsole/console-backend/internal/workspace/preview"
	"github.com/bizconsole/console-backend/internal/workspace/session"
)

const (
	bridgeWriteWait    = 10 * time.Second
	bridgePongWait     = 60 * time.Second
	bridgePingInterval = 50 * time.Second
	bridgeMaxMessage   = 1 << 20
)

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.origins) == 0 {
		return true
	}
	for _, o := range h.origins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// bridge relays sandbox protocol envelopes between the host page and the
// session's bridge actor over a websocket.
func (h *Handler) bridge(c *gin.Context) {
	logger := logging.NewLogger(c.Request.Context()).Named("bridge")
	s := h.session(c)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.LogWarnf("upgrade", "%v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go readBridge(ctx, cancel, conn, s)

	ping := time.NewTicker(bridgePingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(bridgeWriteWait))
			return
		case env := <-s.Bridge.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(bridgeWriteWait))
			if err := conn.WriteJSON(env); err != nil {
				logger.LogWarnf("write", "type=%s error=%v", env.Type, err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(bridgeWriteWait)); err != nil {
				return
			}
		}
	}
}

func readBridge(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, s *session.Session) {
	defer cancel()
	logger := logging.NewLogger(ctx).Named("bridge")

	conn.SetReadLimit(bridgeMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(bridgePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(bridgePongWait))
	})

	for {
		var env preview.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.LogWarnf("read", "%v", err)
			}
			return
		}
		s.Touch()
		if err := s.Bridge.Deliver(env); err != nil {
			logger.LogWarnf("deliver", "type=%s error=%v", env.Type, err)
			return
		}
	}
}
