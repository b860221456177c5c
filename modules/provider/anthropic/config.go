package anthropic

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"
)

const moduleID = "provider.anthropic"

// defaultModel is pinned to a dated release for reproducibility.
const defaultModel = "claude-sonnet-4-5-20250929"

// defaultMaxTokens suits short spoken replies.
const defaultMaxTokens = 1024

const defaultTimeout = 30 * time.Second

// Config holds the YAML-decoded configuration for the Anthropic provider.
type Config struct {
	APIKey string `yaml:"api_key"`

	// APIKeyEnv names the variable holding the key when APIKey is empty.
	// Defaults to ANTHROPIC_API_KEY.
	APIKeyEnv string `yaml:"api_key_env"`

	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature *float64      `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "ANTHROPIC_API_KEY"
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv(c.APIKeyEnv)
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s: api_key is empty and %s is not set", moduleID, c.APIKeyEnv))
	}
	if c.BaseURL != "" {
		if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("%s: base_url must be an http(s) URL", moduleID))
		}
	}
	if c.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("%s: max_tokens must not be negative", moduleID))
	}
	if t := c.Temperature; t != nil && (*t < 0 || *t > 1) {
		errs = append(errs, fmt.Errorf("%s: temperature must be within [0, 1], got %g", moduleID, *t))
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New(moduleID+": timeout must not be negative"))
	}
	return errors.Join(errs...)
}
