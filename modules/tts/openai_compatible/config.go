package openaitts

import (
	"fmt"
	"time"

	"github.com/echomate/echomate/internal/endpoint"
)

const moduleID = "tts.openai_compatible"

// Config holds the configuration of an /audio/speech server.
type Config struct {
	endpoint.Config `yaml:",inline"`

	// Model defaults to "tts-1".
	Model string `yaml:"model"`

	// Voice overrides the pipeline voice for this engine. Engines rarely
	// share voice names, so set it whenever the pipeline voice is an
	// edge-tts name.
	Voice string `yaml:"voice"`

	// Format is the requested container, "wav" (default) or "mp3".
	Format string `yaml:"format"`

	// Speed is passed through when non-zero (0.25 to 4.0).
	Speed float64 `yaml:"speed"`
}

func (c *Config) defaults() {
	c.Config.Defaults(60 * time.Second)
	if c.Model == "" {
		c.Model = "tts-1"
	}
	if c.Format == "" {
		c.Format = "wav"
	}
}

func (c *Config) validate() error {
	if err := c.Config.Validate(moduleID); err != nil {
		return err
	}
	if c.Format != "wav" && c.Format != "mp3" {
		return fmt.Errorf("%s: format must be wav or mp3, got %q", moduleID, c.Format)
	}
	if c.Speed != 0 && (c.Speed < 0.25 || c.Speed > 4) {
		return fmt.Errorf("%s: speed must be within [0.25, 4], got %g", moduleID, c.Speed)
	}
	return nil
}
