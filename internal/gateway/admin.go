package gateway

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/echomate/echomate/internal/config"
	"github.com/echomate/echomate/internal/core"
	"github.com/echomate/echomate/internal/security"
	"github.com/echomate/echomate/internal/session"
)

// sessionJSON is a serializable session snapshot.
type sessionJSON struct {
	ID           string `json:"id"`
	CreatedAt    string `json:"created_at"`
	LastActiveAt string `json:"last_active_at"`
	Pairs        int    `json:"pairs"`
	Restored     bool   `json:"restored"`
}

// handleListSessions returns all live sessions, most recently active first.
func (g *Gateway) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		sessions := []sessionJSON{}
		if g.sessions != nil {
			g.sessions.Range(func(s session.Session) bool {
				sessions = append(sessions, sessionJSON{
					ID:           s.ID,
					CreatedAt:    s.CreatedAt.UTC().Format(time.RFC3339),
					LastActiveAt: s.LastActiveAt.UTC().Format(time.RFC3339),
					Pairs:        s.Pairs,
					Restored:     s.Restored,
				})
				return true
			})
		}
		slices.SortFunc(sessions, func(a, b sessionJSON) int {
			return strings.Compare(b.LastActiveAt, a.LastActiveAt)
		})
		writeJSON(w, http.StatusOK, sessions)
	}
}

// handleDeleteSession forgets a session, including its persisted history.
// It waits for a turn in flight on the same session to finish first.
func (g *Gateway) handleDeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if g.sessions == nil {
			writeError(w, http.StatusNotFound, "session not found", "not_found")
			return
		}
		if g.lanes != nil {
			if err := g.lanes.Acquire(r.Context(), id); err != nil {
				writeError(w, http.StatusServiceUnavailable, "session busy", "unavailable")
				return
			}
			defer g.lanes.Release(id)
		}
		if !g.sessions.Delete(r.Context(), id) {
			writeError(w, http.StatusNotFound, "session not found", "not_found")
			return
		}
		g.audit.Log(security.AuditEvent{Type: security.EventSessionDelete, SessionID: id, Client: remoteIP(r)})
		g.logger.Info("session deleted via admin API", "session_id", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime   int64             `json:"uptime_seconds"`
	Sessions int               `json:"sessions"`
	Clients  int               `json:"rate_limited_clients"`
	Engines  map[string]string `json:"engines,omitempty"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:  int64(time.Since(g.startedAt).Seconds()),
			Clients: g.limiter.Len(),
			Engines: g.engines,
		}
		if g.sessions != nil {
			resp.Sessions = g.sessions.Len()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// moduleJSON is a serializable module info snapshot.
type moduleJSON struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// handleGetAllModules lists all compiled modules (for /api/modules).
func (g *Gateway) handleGetAllModules() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		mods := core.GetModules()
		out := make([]moduleJSON, 0, len(mods))
		for _, m := range mods {
			out = append(out, moduleJSON{
				ID:        string(m.ID),
				Namespace: m.ID.Namespace(),
				Name:      m.ID.Name(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// handleGetConfig returns the config file as loaded, secrets redacted.
func (g *Gateway) handleGetConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.configPath == "" {
			writeError(w, http.StatusServiceUnavailable, "config path not set", "unavailable")
			return
		}

		cfg, err := config.Load(g.configPath)
		if err != nil {
			g.logger.Error("loading config for admin API failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load config", "internal")
			return
		}

		generic, err := configMap(cfg)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to serialize config", "internal")
			return
		}
		g.redactor.RedactMap(generic)
		writeJSON(w, http.StatusOK, generic)
	}
}

// configMap renders cfg as a generic map, decoding each module's YAML node
// so its settings can be redacted and shown.
func configMap(cfg *config.Config) (map[string]any, error) {
	modules := make(map[string]any, len(cfg.Modules))
	for id, node := range cfg.Modules {
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		modules[id] = v
	}
	cp := *cfg
	cp.Modules = nil

	raw, err := json.Marshal(cp)
	if err != nil {
		return nil, err
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	generic["Modules"] = modules
	return generic, nil
}
