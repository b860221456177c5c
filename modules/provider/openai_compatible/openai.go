// Package openaicompat provides a completion engine for any server that
// implements the OpenAI chat completions API (DeepSeek, Qwen via
// DashScope, Groq, vLLM, Ollama, LiteLLM) through a configurable base_url.
package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/echomate/echomate/internal/core"
	"github.com/echomate/echomate/internal/endpoint"
	"github.com/echomate/echomate/internal/provider"
	"github.com/echomate/echomate/internal/security"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Provider{})
}

// Provider is an OpenAI-compatible completion engine.
type Provider struct {
	config Config
	client *endpoint.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  moduleID,
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return err
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.config.defaults()
	p.logger = ctx.Logger
	p.client = endpoint.New(p.config.Config)

	if store, ok := core.Service[*security.CredentialStore](ctx, "security.credentials"); ok {
		p.client.RegisterCredential(store, moduleID)
	}
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	return p.config.validate()
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	resp, err := p.doRequest(ctx, buildRequest(p.config, req))
	if err != nil {
		return provider.CompletionResponse{}, err
	}
	defer endpoint.Drain(resp)

	if err := endpoint.CheckResponse(resp); err != nil {
		return provider.CompletionResponse{}, classifyError(err)
	}

	var oaiResp oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return provider.CompletionResponse{}, fmt.Errorf("decode response: %w", err)
	}

	out := parseResponse(oaiResp)
	p.logger.Debug("completion received",
		"model", p.config.Model,
		"finish_reason", out.FinishReason,
		"prompt_tokens", out.Usage.PromptTokens,
		"completion_tokens", out.Usage.CompletionTokens,
	)
	return out, nil
}

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string {
	return p.config.Model
}

// HealthCheck implements provider.HealthChecker by probing /models.
func (p *Provider) HealthCheck(ctx context.Context) error {
	resp, err := p.client.Do(ctx, http.MethodGet, "/models", "", nil)
	if err != nil {
		return fmt.Errorf("%w: health check: %w", provider.ErrProviderDown, err)
	}
	defer endpoint.Drain(resp)

	if err := endpoint.CheckResponse(resp); err != nil {
		return fmt.Errorf("%w: health check: %w", provider.ErrProviderDown, err)
	}
	return nil
}

// Compile-time interface assertions.
var (
	_ core.Module            = (*Provider)(nil)
	_ core.Configurable      = (*Provider)(nil)
	_ core.Provisioner       = (*Provider)(nil)
	_ core.Validator         = (*Provider)(nil)
	_ provider.Provider      = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
)
