package openaicompat

import (
	"fmt"
	"time"

	"github.com/echomate/echomate/internal/endpoint"
)

const moduleID = "provider.openai_compatible"

// Config holds the configuration for an OpenAI-compatible chat provider.
type Config struct {
	endpoint.Config `yaml:",inline"`

	Model       string   `yaml:"model"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
}

// defaults sets default values for unset fields.
func (c *Config) defaults() {
	c.Config.Defaults(30 * time.Second)
}

// validate returns an error if required fields are missing.
func (c *Config) validate() error {
	if err := c.Config.Validate(moduleID); err != nil {
		return err
	}
	if c.Model == "" {
		return fmt.Errorf("%s: model is required", moduleID)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("%s: max_tokens must not be negative", moduleID)
	}
	if t := c.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("%s: temperature must be within [0, 2], got %g", moduleID, *t)
	}
	return nil
}
