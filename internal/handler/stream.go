package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"coachdesk/internal/stream"
)

// StreamHandler pushes settlement summaries to websocket subscribers (audit
// sinks, live dashboard widgets).
type StreamHandler struct {
	Hub    *stream.Hub
	Logger *zap.Logger
}

func (h *StreamHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/stream/settlements", h.settlements)
}

func (h *StreamHandler) settlements(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // origin checks are the gateway's job
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("websocket accept failed", zap.Error(err))
		}
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := c.Request.Context()
	events := h.Hub.Subscribe(32)
	defer h.Hub.Unsubscribe(events)

	// Reader goroutine notices the client going away.
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		for {
			if _, _, err := conn.Read(readCtx); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case <-readCtx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := wsjson.Write(readCtx, conn, event); err != nil {
				return
			}
		}
	}
}
