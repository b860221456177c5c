package gateway

import (
	"bytes"
	"context"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/echomate/echomate/internal/security"
	"github.com/echomate/echomate/internal/session"
	"github.com/echomate/echomate/internal/turn"
)

// fakeTurns records requests and answers with fn.
type fakeTurns struct {
	mu   sync.Mutex
	reqs []turn.Request
	fn   func(turn.Request) (turn.Result, error)
}

func (f *fakeTurns) HandleTurn(_ context.Context, req turn.Request) (turn.Result, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.fn == nil {
		return turn.Assemble("你好呀", "reply-1.wav", false), nil
	}
	return f.fn(req)
}

func (f *fakeTurns) requests() []turn.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]turn.Request(nil), f.reqs...)
}

// newTestGateway returns a provisioned gateway without a listener.
func newTestGateway(t *testing.T, turns TurnHandler, mutate func(*Config)) *Gateway {
	t.Helper()

	g := &Gateway{}
	if mutate != nil {
		mutate(&g.config)
	}
	g.config.defaults()
	g.logger = slog.New(slog.DiscardHandler)
	g.limiter = security.NewClientLimiter(g.config.RateLimit)
	g.authLimiter = security.NewClientLimiter(security.RateLimitConfig{TurnsPerMinute: 30, Burst: 10})
	g.redactor = security.NewRedactor()
	g.sessions = session.NewStore(20)
	if turns != nil {
		g.turns = turns
	}
	return g
}

// multipartBody builds a /chat upload. An empty field name omits the file.
func multipartBody(t *testing.T, field string, audio []byte, values map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range values {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if field != "" {
		fw, err := mw.CreateFormFile(field, "input.wav")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := fw.Write(audio); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func newChatRequest(t *testing.T, field string, audio []byte, values map[string]string) *http.Request {
	t.Helper()
	body, ct := multipartBody(t, field, audio, values)
	req := httptest.NewRequest(http.MethodPost, "/chat", body)
	req.Header.Set("Content-Type", ct)
	return req
}

func mustYAMLNode(t *testing.T, s string) *yaml.Node {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(s), &node); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	// Unwrap the document node.
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		return node.Content[0]
	}
	return &node
}

func serve(h http.Handler, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
