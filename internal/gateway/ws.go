package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/echomate/echomate/internal/turn"
)

// handleTurnSocket serves GET /ws/turn. Each binary message is one
// utterance; each reply is one JSON text message. The connection is closed
// normally after a turn that ends the session.
func (g *Gateway) handleTurnSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.turns == nil {
			writeError(w, http.StatusServiceUnavailable, "pipeline not ready", "unavailable")
			return
		}
		id, err := sessionID(r.URL.Query().Get("session_id"), r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "bad_request")
			return
		}
		key := clientKey(r)

		// The server's read and write timeouts are meant for single requests.
		rc := http.NewResponseController(w)
		_ = rc.SetReadDeadline(time.Time{})
		_ = rc.SetWriteDeadline(time.Time{})

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: g.config.WebSocket.OriginPatterns,
		})
		if err != nil {
			g.logger.Debug("websocket accept failed", "error", err)
			return
		}
		defer func() { _ = c.CloseNow() }()
		c.SetReadLimit(g.config.MaxUploadBytes)

		logger := g.logger.With("session_id", id, "transport", "websocket")
		logger.Debug("turn socket opened")

		ctx := r.Context()
		for {
			typ, data, err := c.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					logger.Debug("turn socket closed by client")
				default:
					if !errors.Is(err, ctx.Err()) {
						logger.Debug("turn socket read failed", "error", err)
					}
				}
				return
			}

			var reply any
			var res turn.Result
			switch {
			case typ != websocket.MessageBinary:
				reply = errorResponse{Error: "expected a binary audio message", Kind: "bad_request"}
			case g.limiter.Allow(key) != nil:
				reply = errorResponse{Error: "too many requests", Kind: "rate_limited"}
			default:
				res, err = g.turns.HandleTurn(ctx, turn.Request{SessionID: id, Audio: data, ReceivedAt: time.Now()})
				if err != nil {
					_, reply = newTurnError(err)
				} else {
					reply = newTurnResponse(res)
				}
			}

			if err := wsjson.Write(ctx, c, reply); err != nil {
				logger.Debug("turn socket write failed", "error", err)
				return
			}
			if res.SessionEnded {
				_ = c.Close(websocket.StatusNormalClosure, "session ended")
				return
			}
		}
	}
}
