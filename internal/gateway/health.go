package gateway

import (
	"net/http"
	"time"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status   string            `json:"status"` // "ok" or "unavailable"
	Sessions int               `json:"sessions"`
	Engines  map[string]string `json:"engines,omitempty"`
	Uptime   int64             `json:"uptime_seconds"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 once the turn pipeline is wired, 503 before.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			Engines: g.engines,
		}
		if !g.startedAt.IsZero() {
			resp.Uptime = int64(time.Since(g.startedAt).Seconds())
		}
		if g.sessions != nil {
			resp.Sessions = g.sessions.Len()
		}

		code := http.StatusOK
		if g.turns == nil {
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}
