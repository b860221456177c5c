package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/echomate/echomate/internal/provider"
	"github.com/echomate/echomate/internal/security"
	"github.com/echomate/echomate/internal/security/securitytest"
	"github.com/echomate/echomate/internal/session"
)

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

func newAdminGateway(t *testing.T) (*Gateway, http.Handler) {
	t.Helper()
	g := newTestGateway(t, &fakeTurns{}, func(c *Config) {
		c.Auth = AuthConfig{BearerToken: "admin-token", BasicUser: "ops", BasicPass: "pw"}
	})
	return g, g.buildRouter()
}

func TestAdmin_RequiresAuth(t *testing.T) {
	t.Parallel()

	audit, events := securitytest.NewTestAuditLogger()
	g := newTestGateway(t, &fakeTurns{}, func(c *Config) { c.Auth.BearerToken = "admin-token" })
	g.audit = audit
	h := g.buildRouter()

	if rr := serve(h, http.MethodGet, "/api/sessions", nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("no auth = %d, want 401", rr.Code)
	}
	if rr := serve(h, http.MethodGet, "/api/sessions", bearer("wrong")); rr.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", rr.Code)
	}
	if rr := serve(h, http.MethodGet, "/api/sessions", bearer("admin-token")); rr.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", rr.Code)
	}

	ev := events()
	if len(ev) != 3 || ev[0].Type != security.EventAuthFailure || ev[2].Type != security.EventAuthSuccess {
		t.Errorf("audit events = %+v", ev)
	}
}

func TestAdmin_BasicAuth(t *testing.T) {
	t.Parallel()

	_, h := newAdminGateway(t)
	creds := base64.StdEncoding.EncodeToString([]byte("ops:pw"))
	rr := serve(h, http.MethodGet, "/status", http.Header{"Authorization": {"Basic " + creds}})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp StatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestAdmin_AuthAttemptsAreLimited(t *testing.T) {
	t.Parallel()

	_, h := newAdminGateway(t)
	var last int
	for range 11 {
		last = serve(h, http.MethodGet, "/status", bearer("guess")).Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("11th attempt = %d, want 429", last)
	}
}

func TestAdmin_ListAndDeleteSessions(t *testing.T) {
	t.Parallel()

	g, h := newAdminGateway(t)
	store := g.sessions.(*session.Store)
	ctx := t.Context()
	store.GetOrCreate(ctx, "desk-1")
	store.GetOrCreate(ctx, "desk-2")
	if err := store.AppendPair(ctx, "desk-1", provider.UserMessage("你好"), provider.AssistantMessage("你好呀")); err != nil {
		t.Fatalf("AppendPair: %v", err)
	}

	rr := serve(h, http.MethodGet, "/api/sessions", bearer("admin-token"))
	var sessions []sessionJSON
	if err := json.NewDecoder(rr.Body).Decode(&sessions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}
	pairs := map[string]int{}
	for _, s := range sessions {
		pairs[s.ID] = s.Pairs
	}
	if pairs["desk-1"] != 1 || pairs["desk-2"] != 0 {
		t.Errorf("pairs = %v", pairs)
	}

	if rr := serve(h, http.MethodDelete, "/api/sessions/desk-1", bearer("admin-token")); rr.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", rr.Code)
	}
	if rr := serve(h, http.MethodDelete, "/api/sessions/desk-1", bearer("admin-token")); rr.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", rr.Code)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestAdmin_DeleteWaitsForTurnInFlight(t *testing.T) {
	t.Parallel()

	g, h := newAdminGateway(t)
	lanes := session.NewLaneLock()
	g.lanes = lanes
	store := g.sessions.(*session.Store)
	ctx := t.Context()
	store.GetOrCreate(ctx, "desk-1")

	// A turn on desk-1 is synthesizing and holds the lane.
	if err := lanes.Acquire(ctx, "desk-1"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	done := make(chan int, 1)
	go func() {
		done <- serve(h, http.MethodDelete, "/api/sessions/desk-1", bearer("admin-token")).Code
	}()

	select {
	case code := <-done:
		t.Fatalf("delete returned %d while the turn held the lane", code)
	case <-time.After(50 * time.Millisecond):
	}

	if err := store.AppendPair(ctx, "desk-1", provider.UserMessage("你好"), provider.AssistantMessage("你好呀")); err != nil {
		t.Fatalf("turn commit after concurrent delete: %v", err)
	}
	lanes.Release("desk-1")

	select {
	case code := <-done:
		if code != http.StatusNoContent {
			t.Errorf("delete = %d, want 204", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("delete never acquired the lane")
	}
	if _, ok := store.Get("desk-1"); ok {
		t.Error("session survived delete")
	}
	if lanes.Busy("desk-1") {
		t.Error("delete did not release the lane")
	}
}

func TestAdmin_DeleteGivesUpWhenClientLeaves(t *testing.T) {
	t.Parallel()

	g, h := newAdminGateway(t)
	lanes := session.NewLaneLock()
	g.lanes = lanes
	store := g.sessions.(*session.Store)
	store.GetOrCreate(t.Context(), "desk-1")

	if err := lanes.Acquire(t.Context(), "desk-1"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lanes.Release("desk-1")

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	req := httptest.NewRequestWithContext(ctx, http.MethodDelete, "/api/sessions/desk-1", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
	if _, ok := store.Get("desk-1"); !ok {
		t.Error("session deleted without holding the lane")
	}
}

func TestAdmin_Modules(t *testing.T) {
	t.Parallel()

	_, h := newAdminGateway(t)
	rr := serve(h, http.MethodGet, "/api/modules", bearer("admin-token"))

	var mods []moduleJSON
	if err := json.NewDecoder(rr.Body).Decode(&mods); err != nil {
		t.Fatalf("decode: %v", err)
	}
	found := false
	for _, m := range mods {
		if m.ID == "gateway.http" && m.Namespace == "gateway" && m.Name == "http" {
			found = true
		}
	}
	if !found {
		t.Errorf("gateway.http not listed: %+v", mods)
	}
}

func TestAdmin_ConfigIsRedacted(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "echomate.yaml")
	raw := `version: "1"
modules:
  gateway.http:
    auth:
      bearer_token: "admin-token"
  provider.openai_compatible:
    base_url: "http://localhost:11434/v1"
    api_key: "sk-local"
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	g, h := newAdminGateway(t)
	g.configPath = path

	rr := serve(h, http.MethodGet, "/api/config", bearer("admin-token"))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	body := rr.Body.String()
	if strings.Contains(body, "admin-token") || strings.Contains(body, "sk-local") {
		t.Errorf("secret leaked: %s", body)
	}
	if !strings.Contains(body, "localhost:11434") {
		t.Errorf("non-secret missing: %s", body)
	}
}
