package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/ashureev/lanne/internal/domain"
	"github.com/ashureev/lanne/internal/identity"
	"github.com/ashureev/lanne/internal/middleware"
	"github.com/ashureev/lanne/internal/orchestrator"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// HandleWebSocket handles GET /ws/orchestrate. Each text message from the
// client is a query; its events are sent back one JSON message each. Queries
// on one connection run sequentially and each one counts against the
// caller's rate limit.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{OriginPatterns: h.origins}
	if len(h.origins) == 0 {
		opts.InsecureSkipVerify = true
	}
	ws, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.logger.Warn("Failed to accept WebSocket", "error", err, "origin", r.Header.Get("Origin"))
		return
	}
	ws.SetReadLimit(h.maxBodySize)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	connID := chiMiddleware.GetReqID(r.Context())
	ctx := r.Context()
	for n := 1; ; n++ {
		var q domain.Query
		if err := wsjson.Read(ctx, ws, &q); err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				h.logger.Debug("WebSocket closed by client", "connection_id", connID)
			} else {
				h.logger.Warn("WebSocket read error", "connection_id", connID, "error", err)
			}
			return
		}
		if h.limiter != nil && !h.limiter.Allow(identity.CallerKey(r)) {
			if err := wsjson.Write(ctx, ws, domain.ErrorEvent(middleware.MsgRateLimited)); err != nil {
				return
			}
			continue
		}
		q = withIdentity(r, q)
		if err := q.Validate(); err != nil {
			if err := wsjson.Write(ctx, ws, domain.ErrorEvent(err.Error())); err != nil {
				return
			}
			continue
		}

		runCtx := ctx
		if connID != "" {
			runCtx = orchestrator.WithRequestID(ctx, connID+"-"+strconv.Itoa(n))
		}
		if !h.streamTo(runCtx, ws, q) {
			return
		}
	}
}

// streamTo forwards one pipeline run and reports whether the connection is
// still writable.
func (h *Handler) streamTo(ctx context.Context, ws *websocket.Conn, q domain.Query) bool {
	for ev := range h.pipeline.Stream(ctx, q) {
		if err := wsjson.Write(ctx, ws, ev); err != nil {
			h.logger.Debug("WebSocket write failed", "type", ev.Type, "error", err)
			return false
		}
	}
	return ctx.Err() == nil
}
