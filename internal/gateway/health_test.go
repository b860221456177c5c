package gateway

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

func TestHealth_Ready(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, &fakeTurns{}, nil)
	g.engines = map[string]string{"tts": "tts.command"}
	g.startedAt = time.Now().Add(-time.Minute)

	rr := serve(g.buildRouter(), http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Engines["tts"] != "tts.command" || resp.Uptime < 59 {
		t.Errorf("response = %+v", resp)
	}
}

func TestHealth_NoPipeline(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, nil, nil)
	rr := serve(g.buildRouter(), http.MethodGet, "/health", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}
