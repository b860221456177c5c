// Package openaistt transcribes speech with any server implementing the
// OpenAI /audio/transcriptions API (OpenAI, Groq, faster-whisper-server,
// whisper.cpp server, LocalAI).
package openaistt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/echomate/echomate/internal/core"
	"github.com/echomate/echomate/internal/endpoint"
	"github.com/echomate/echomate/internal/security"
	"github.com/echomate/echomate/internal/stt"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Transcriber{})
}

// Transcriber is the stt.openai_compatible module.
type Transcriber struct {
	config Config
	client *endpoint.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (t *Transcriber) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  moduleID,
		New: func() core.Module { return &Transcriber{} },
	}
}

// Configure implements core.Configurable.
func (t *Transcriber) Configure(node *yaml.Node) error {
	if err := node.Decode(&t.config); err != nil {
		return err
	}
	t.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (t *Transcriber) Provision(ctx *core.AppContext) error {
	t.config.defaults()
	t.logger = ctx.Logger
	t.client = endpoint.New(t.config.Config)

	if store, ok := core.Service[*security.CredentialStore](ctx, "security.credentials"); ok {
		t.client.RegisterCredential(store, moduleID)
	}
	return nil
}

// Validate implements core.Validator.
func (t *Transcriber) Validate() error {
	return t.config.validate()
}

type transcription struct {
	Text string `json:"text"`
}

// Transcribe implements stt.Transcriber.
func (t *Transcriber) Transcribe(ctx context.Context, wav []byte, opts stt.Options) (string, error) {
	body, contentType, err := t.form(wav, opts)
	if err != nil {
		return "", err
	}

	resp, err := t.client.Do(ctx, http.MethodPost, "/audio/transcriptions", contentType, body)
	if err != nil {
		return "", err
	}
	defer endpoint.Drain(resp)

	if err := endpoint.CheckResponse(resp); err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}

	var out transcription
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}

	text := strings.TrimSpace(out.Text)
	t.logger.Debug("transcription received", "model", t.config.Model, "chars", len(text))
	return text, nil
}

func (t *Transcriber) form(wav []byte, opts stt.Options) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", "speech.wav")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}

	fields := [][2]string{
		{"model", t.config.Model},
		{"response_format", "json"},
		{"language", opts.Language},
		{"prompt", opts.Prompt},
	}
	if t.config.Temperature != nil {
		fields = append(fields, [2]string{"temperature", strconv.FormatFloat(*t.config.Temperature, 'f', -1, 64)})
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// Compile-time interface assertions.
var (
	_ core.Module       = (*Transcriber)(nil)
	_ core.Configurable = (*Transcriber)(nil)
	_ core.Provisioner  = (*Transcriber)(nil)
	_ core.Validator    = (*Transcriber)(nil)
	_ stt.Transcriber   = (*Transcriber)(nil)
)
