package gateway

import (
	"time"

	"github.com/echomate/echomate/internal/security"
)

// Config holds HTTP gateway configuration.
type Config struct {
	// Bind defaults to ":5000", the port the embedded client is built for.
	Bind string     `yaml:"bind"`
	Auth AuthConfig `yaml:"auth"`

	// MaxUploadBytes caps one uploaded clip or WebSocket frame.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	RateLimit security.RateLimitConfig `yaml:"rate_limit"`
	WebSocket WebSocketConfig          `yaml:"websocket"`

	// AuditLog appends admin and rate-limit events to <data_dir>/audit.jsonl.
	AuditLog bool `yaml:"audit_log"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// WebSocketConfig configures the /ws/turn endpoint.
type WebSocketConfig struct {
	// OriginPatterns lists extra browser origins allowed to connect, in
	// path.Match syntax. Non-browser clients send no Origin and are always
	// accepted.
	OriginPatterns []string `yaml:"origin_patterns"`
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = ":5000"
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = security.DefaultMaxUploadBytes
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	// A turn chains four engine calls; leave room for all of them.
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 3 * time.Minute
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// AuthConfig configures authentication for admin endpoints.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// IsConfigured returns true if any auth method is configured.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}
