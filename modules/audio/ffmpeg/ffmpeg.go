// Package ffmpeg normalizes audio by piping it through the ffmpeg binary,
// which handles every container and codec the native decoder does not
// (Ogg/Opus, AAC, WebM).
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/echomate/echomate/internal/audio"
	"github.com/echomate/echomate/internal/core"
	"github.com/echomate/echomate/internal/security"
	"gopkg.in/yaml.v3"
)

const moduleID = "audio.ffmpeg"

func init() {
	core.RegisterModule(&Normalizer{})
}

// Config holds the ffmpeg normalizer configuration.
type Config struct {
	// Binary is the ffmpeg executable. Defaults to "ffmpeg" on PATH.
	Binary string `yaml:"binary"`

	// Timeout bounds one conversion. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout"`

	// TempInput writes the input to a scoped temp file instead of piping
	// it, for containers that need seeking (MP4/M4A).
	TempInput bool `yaml:"temp_input"`

	// TempDir holds those files. Defaults to the OS temp dir.
	TempDir string `yaml:"temp_dir"`

	// MaxOutputBytes bounds the decoded PCM. Defaults to 64 MiB.
	MaxOutputBytes int64 `yaml:"max_output_bytes"`
}

func (c *Config) defaults() {
	if c.Binary == "" {
		c.Binary = "ffmpeg"
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxOutputBytes == 0 {
		c.MaxOutputBytes = security.DefaultMaxOutput
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%s: timeout must not be negative", moduleID))
	}
	if c.MaxOutputBytes < 0 {
		errs = append(errs, fmt.Errorf("%s: max_output_bytes must not be negative", moduleID))
	}
	return errors.Join(errs...)
}

// Normalizer is the audio.ffmpeg module.
type Normalizer struct {
	config   Config
	logger   *slog.Logger
	creds    *security.CredentialStore
	redactor *security.Redactor
}

// ModuleInfo implements core.Module.
func (n *Normalizer) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  moduleID,
		New: func() core.Module { return &Normalizer{} },
	}
}

// Configure implements core.Configurable.
func (n *Normalizer) Configure(node *yaml.Node) error {
	if err := node.Decode(&n.config); err != nil {
		return err
	}
	n.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (n *Normalizer) Provision(ctx *core.AppContext) error {
	n.config.defaults()
	n.logger = ctx.Logger
	n.creds, _ = core.Service[*security.CredentialStore](ctx, "security.credentials")
	n.redactor, _ = core.Service[*security.Redactor](ctx, "security.redactor")
	return nil
}

// Validate implements core.Validator.
func (n *Normalizer) Validate() error {
	return n.config.validate()
}

// Start implements core.Starter.
func (n *Normalizer) Start() error {
	path, err := exec.LookPath(n.config.Binary)
	if err != nil {
		return fmt.Errorf("%s: %w", moduleID, err)
	}
	n.logger.Info("ffmpeg ready", "path", path, "temp_input", n.config.TempInput)
	return nil
}

// Normalize implements audio.Normalizer.
func (n *Normalizer) Normalize(ctx context.Context, data []byte, target audio.Format) ([]byte, error) {
	if len(data) == 0 {
		return nil, audio.ErrEmptyInput
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if audio.IsCanonicalWAV(data, target) {
		return data, nil
	}

	ctx, cancel := context.WithTimeout(ctx, n.config.Timeout)
	defer cancel()

	input, stdin := "pipe:0", data
	if n.config.TempInput {
		dir, err := os.MkdirTemp(n.config.TempDir, "echomate-ffmpeg-*")
		if err != nil {
			return nil, fmt.Errorf("create temp dir: %w", err)
		}
		defer func() { _ = os.RemoveAll(dir) }()

		input = filepath.Join(dir, "input")
		if err := os.WriteFile(input, data, 0o600); err != nil {
			return nil, fmt.Errorf("write temp input: %w", err)
		}
		stdin = nil
	}

	raw, err := security.RunCommand(ctx, security.Command{
		Path:        n.config.Binary,
		Args:        buildArgs(input, target),
		Stdin:       stdin,
		Credentials: n.creds,
		Redactor:    n.redactor,
		MaxOutput:   n.config.MaxOutputBytes,
	})
	if err != nil {
		var ce *security.CommandError
		if errors.As(err, &ce) {
			return nil, fmt.Errorf("%w: %w", audio.ErrUnsupportedFormat, err)
		}
		return nil, err
	}
	if len(raw) == 0 {
		return nil, audio.ErrEmptyInput
	}

	return audio.WrapPCM(raw[:len(raw)-len(raw)%(2*target.Channels)], target), nil
}

// buildArgs decodes input to raw 16-bit PCM on stdout. The WAV header is
// added in Go, since ffmpeg cannot seek back to patch sizes on a pipe.
func buildArgs(input string, target audio.Format) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", input,
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(target.SampleRate),
		"-ac", strconv.Itoa(target.Channels),
		"pipe:1",
	}
}

// Compile-time interface assertions.
var (
	_ core.Module       = (*Normalizer)(nil)
	_ core.Configurable = (*Normalizer)(nil)
	_ core.Provisioner  = (*Normalizer)(nil)
	_ core.Validator    = (*Normalizer)(nil)
	_ core.Starter      = (*Normalizer)(nil)
	_ audio.Normalizer  = (*Normalizer)(nil)
)
