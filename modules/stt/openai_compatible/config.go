package openaistt

import (
	"fmt"
	"time"

	"github.com/echomate/echomate/internal/endpoint"
)

const moduleID = "stt.openai_compatible"

// Config holds the configuration of a whisper-style transcription server.
type Config struct {
	endpoint.Config `yaml:",inline"`

	// Model defaults to "whisper-1".
	Model string `yaml:"model"`

	// Temperature is passed through when set.
	Temperature *float64 `yaml:"temperature"`
}

func (c *Config) defaults() {
	c.Config.Defaults(60 * time.Second)
	if c.Model == "" {
		c.Model = "whisper-1"
	}
}

func (c *Config) validate() error {
	if err := c.Config.Validate(moduleID); err != nil {
		return err
	}
	if t := c.Temperature; t != nil && (*t < 0 || *t > 1) {
		return fmt.Errorf("%s: temperature must be within [0, 1], got %g", moduleID, *t)
	}
	return nil
}
