package security

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	r := &Redactor{}
	r.AddLiteral("topsecret-key")
	return slog.New(NewRedactingHandler(slog.NewTextHandler(buf, nil), r))
}

func TestRedactingHandler_MessageAndAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.Info("calling with topsecret-key",
		"header", "Bearer topsecret-key",
		"error", errors.New("upstream echoed topsecret-key"),
		slog.Group("engine", slog.String("key", "topsecret-key")),
	)

	out := buf.String()
	if strings.Contains(out, "topsecret-key") {
		t.Fatalf("secret leaked: %s", out)
	}
	if c := strings.Count(out, RedactPlaceholder); c != 4 {
		t.Fatalf("expected 4 redactions, got %d: %s", c, out)
	}
}

func TestRedactingHandler_WithAttrsAndGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newTestLogger(&buf).With("module", "tts.command", "key", "topsecret-key").WithGroup("req")

	logger.Info("synthesized", "voice", "zh-CN-XiaoxiaoNeural")

	out := buf.String()
	if strings.Contains(out, "topsecret-key") {
		t.Fatalf("secret leaked: %s", out)
	}
	if !strings.Contains(out, "module=tts.command") || !strings.Contains(out, "req.voice=zh-CN-XiaoxiaoNeural") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestRedactingHandler_Enabled(t *testing.T) {
	t.Parallel()

	inner := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})
	h := NewRedactingHandler(inner, &Redactor{})
	if h.Enabled(t.Context(), slog.LevelInfo) {
		t.Fatal("info should be disabled")
	}
	if !h.Enabled(t.Context(), slog.LevelError) {
		t.Fatal("error should be enabled")
	}
}
