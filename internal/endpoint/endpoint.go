// Package endpoint holds the HTTP plumbing shared by the engine modules
// that talk to OpenAI-style servers: base URL, bearer auth, extra headers
// and status mapping.
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/echomate/echomate/internal/security"
)

// maxErrorBodySize caps how much of an error response body is kept.
const maxErrorBodySize = 4096

// ErrUnavailable indicates the server could not be reached.
var ErrUnavailable = errors.New("endpoint unavailable")

// Config is the connection block every HTTP engine module embeds.
type Config struct {
	BaseURL   string            `yaml:"base_url"`
	APIKey    string            `yaml:"api_key"`
	APIKeyEnv string            `yaml:"api_key_env"`
	Headers   map[string]string `yaml:"headers"`
	Timeout   time.Duration     `yaml:"timeout"`
}

// Defaults trims the base URL, loads the key from APIKeyEnv when no key
// is inline, and applies timeout when none is set.
func (c *Config) Defaults(timeout time.Duration) {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.APIKey == "" && c.APIKeyEnv != "" {
		c.APIKey = os.Getenv(c.APIKeyEnv)
	}
	if c.Timeout == 0 {
		c.Timeout = timeout
	}
}

// Validate checks the block. module prefixes the messages.
func (c *Config) Validate(module string) error {
	if c.BaseURL == "" {
		return fmt.Errorf("%s: base_url is required", module)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("%s: base_url is not a valid URL: %w", module, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: base_url scheme must be http or https, got %q", module, u.Scheme)
	}
	if c.APIKeyEnv != "" && c.APIKey == "" {
		return fmt.Errorf("%s: environment variable %s is empty", module, c.APIKeyEnv)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%s: timeout must not be negative", module)
	}
	return nil
}

// Client sends authenticated requests below a base URL.
type Client struct {
	cfg  Config
	http *http.Client
}

// New builds a client. The timeout bounds waiting for response headers;
// the caller's context bounds the whole exchange.
func New(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: cfg.Timeout,
			},
		},
	}
}

// NewWithHTTPClient builds a client around hc, for tests.
func NewWithHTTPClient(cfg Config, hc *http.Client) *Client {
	return &Client{cfg: cfg, http: hc}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// RegisterCredential records the API key under name so it is redacted from
// logs and stripped from child process environments.
func (c *Client) RegisterCredential(store *security.CredentialStore, name string) {
	if store != nil {
		store.Set(name, c.cfg.APIKey)
	}
}

// Do sends a request to BaseURL+path. Transport failures wrap
// ErrUnavailable unless the caller's context ended first, in which case
// the context error is returned as is.
func (c *Client) Do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return resp, nil
}

// StatusError is a non-2xx answer.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Temporary reports whether retrying later may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// CheckResponse returns a *StatusError for a non-2xx response, reading at
// most a few KiB of its body. The caller still closes the body.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// Drain discards the rest of the body and closes it so the connection can
// be reused.
func Drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	_ = resp.Body.Close()
}
