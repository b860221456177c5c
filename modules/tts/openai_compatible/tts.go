// Package openaitts synthesizes speech with any server implementing the
// OpenAI /audio/speech API (OpenAI, LocalAI, openedai-speech, Kokoro).
package openaitts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/echomate/echomate/internal/core"
	"github.com/echomate/echomate/internal/endpoint"
	"github.com/echomate/echomate/internal/security"
	"github.com/echomate/echomate/internal/tts"
	"gopkg.in/yaml.v3"
)

// maxAudioBytes bounds a synthesized reply.
const maxAudioBytes = 32 << 20

func init() {
	core.RegisterModule(&Synthesizer{})
}

// Synthesizer is the tts.openai_compatible module.
type Synthesizer struct {
	config Config
	client *endpoint.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (s *Synthesizer) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  moduleID,
		New: func() core.Module { return &Synthesizer{} },
	}
}

// Configure implements core.Configurable.
func (s *Synthesizer) Configure(node *yaml.Node) error {
	if err := node.Decode(&s.config); err != nil {
		return err
	}
	s.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (s *Synthesizer) Provision(ctx *core.AppContext) error {
	s.config.defaults()
	s.logger = ctx.Logger
	s.client = endpoint.New(s.config.Config)

	if store, ok := core.Service[*security.CredentialStore](ctx, "security.credentials"); ok {
		s.client.RegisterCredential(store, moduleID)
	}
	return nil
}

// Validate implements core.Validator.
func (s *Synthesizer) Validate() error {
	return s.config.validate()
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed,omitempty"`
}

// Synthesize implements tts.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.Options) (tts.Audio, error) {
	if strings.TrimSpace(text) == "" {
		return tts.Audio{}, tts.ErrEmptyText
	}

	voice := s.config.Voice
	if voice == "" {
		voice = opts.Voice
	}
	payload, err := json.Marshal(speechRequest{
		Model:          s.config.Model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: s.config.Format,
		Speed:          s.config.Speed,
	})
	if err != nil {
		return tts.Audio{}, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := s.client.Do(ctx, http.MethodPost, "/audio/speech", "application/json", bytes.NewReader(payload))
	if err != nil {
		return tts.Audio{}, err
	}
	defer endpoint.Drain(resp)

	if err := endpoint.CheckResponse(resp); err != nil {
		return tts.Audio{}, fmt.Errorf("speech: %w", err)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes+1))
	if err != nil {
		return tts.Audio{}, fmt.Errorf("read speech: %w", err)
	}
	if len(data) > maxAudioBytes {
		return tts.Audio{}, fmt.Errorf("speech exceeds %d bytes", maxAudioBytes)
	}
	if len(data) == 0 {
		return tts.Audio{}, fmt.Errorf("speech: empty body")
	}

	s.logger.Debug("speech received", "voice", voice, "bytes", len(data))
	return tts.Audio{Data: data, Container: s.config.Format}, nil
}

// Compile-time interface assertions.
var (
	_ core.Module       = (*Synthesizer)(nil)
	_ core.Configurable = (*Synthesizer)(nil)
	_ core.Provisioner  = (*Synthesizer)(nil)
	_ core.Validator    = (*Synthesizer)(nil)
	_ tts.Synthesizer   = (*Synthesizer)(nil)
)
