// Package command synthesizes speech by running an external program,
// edge-tts by default. The text is passed as a single argument, never
// through a shell.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/echomate/echomate/internal/core"
	"github.com/echomate/echomate/internal/security"
	"github.com/echomate/echomate/internal/tts"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Synthesizer{})
}

// Synthesizer is the tts.command module.
type Synthesizer struct {
	config   Config
	logger   *slog.Logger
	creds    *security.CredentialStore
	redactor *security.Redactor
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
	s.creds, _ = core.Service[*security.CredentialStore](ctx, "security.credentials")
	s.redactor, _ = core.Service[*security.Redactor](ctx, "security.redactor")
	return nil
}

// Validate implements core.Validator.
func (s *Synthesizer) Validate() error {
	return s.config.validate()
}

// Start implements core.Starter. It fails early when the program is not
// installed rather than on the first reply.
func (s *Synthesizer) Start() error {
	path, err := exec.LookPath(s.config.Command)
	if err != nil {
		return fmt.Errorf("%s: %w", moduleID, err)
	}
	s.logger.Info("speech command ready", "path", path, "voice", s.config.Voice)
	return nil
}

// Synthesize implements tts.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.Options) (tts.Audio, error) {
	if strings.TrimSpace(text) == "" {
		return tts.Audio{}, tts.ErrEmptyText
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	var output string
	if s.config.writesFile() {
		dir, err := os.MkdirTemp(s.config.TempDir, "echomate-tts-*")
		if err != nil {
			return tts.Audio{}, fmt.Errorf("create temp dir: %w", err)
		}
		defer func() { _ = os.RemoveAll(dir) }()
		output = filepath.Join(dir, "speech."+s.config.Container)
	}

	voice := opts.Voice
	if voice == "" {
		voice = s.config.Voice
	}
	args := expandArgs(s.config.Args, map[string]string{
		"{voice}":  voice,
		"{rate}":   opts.Rate,
		"{pitch}":  opts.Pitch,
		"{volume}": opts.Volume,
		"{text}":   text,
		"{output}": output,
	})

	stdout, err := security.RunCommand(ctx, security.Command{
		Path:        s.config.Command,
		Args:        args,
		Credentials: s.creds,
		Redactor:    s.redactor,
	})
	if err != nil {
		return tts.Audio{}, err
	}

	data := stdout
	if output != "" {
		data, err = os.ReadFile(output)
		if err != nil {
			return tts.Audio{}, fmt.Errorf("read speech: %w", err)
		}
	}
	if len(data) == 0 {
		return tts.Audio{}, fmt.Errorf("%s: command produced no audio", moduleID)
	}

	s.logger.Debug("speech synthesized", "voice", voice, "bytes", len(data))
	return tts.Audio{Data: data, Container: s.config.Container}, nil
}

// expandArgs substitutes placeholders in one pass, so text that happens
// to contain "{output}" is passed through verbatim. An argument that held
// a placeholder with an empty value is dropped entirely.
func expandArgs(tmpl []string, values map[string]string) []string {
	pairs := make([]string, 0, 2*len(values))
	for k, v := range values {
		pairs = append(pairs, k, v)
	}
	r := strings.NewReplacer(pairs...)

	out := make([]string, 0, len(tmpl))
	for _, a := range tmpl {
		if hasEmptyPlaceholder(a, values) {
			continue
		}
		out = append(out, r.Replace(a))
	}
	return out
}

func hasEmptyPlaceholder(arg string, values map[string]string) bool {
	for k, v := range values {
		if v == "" && strings.Contains(arg, k) {
			return true
		}
	}
	return false
}

// Compile-time interface assertions.
var (
	_ core.Module       = (*Synthesizer)(nil)
	_ core.Configurable = (*Synthesizer)(nil)
	_ core.Provisioner  = (*Synthesizer)(nil)
	_ core.Validator    = (*Synthesizer)(nil)
	_ core.Starter      = (*Synthesizer)(nil)
	_ tts.Synthesizer   = (*Synthesizer)(nil)
)
