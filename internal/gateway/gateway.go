// Package gateway serves turns to embedded clients over HTTP and WebSocket,
// hands out the spoken replies, and exposes health, metrics and an
// authenticated admin API.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/echomate/echomate/internal/core"
	"github.com/echomate/echomate/internal/security"
	"github.com/echomate/echomate/internal/session"
	"github.com/echomate/echomate/internal/telemetry"
	"github.com/echomate/echomate/internal/turn"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// TurnHandler runs one conversational turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req turn.Request) (turn.Result, error)
}

// AudioStore resolves audio references to stored clips.
type AudioStore interface {
	Open(name string) (*os.File, fs.FileInfo, error)
}

// SessionStore is the subset of the session store the admin API uses.
type SessionStore interface {
	Len() int
	Range(fn func(session.Session) bool)
	Delete(ctx context.Context, id string) bool
}

// SessionLanes serializes work on one session. Admin changes take the same
// lane as turns so they never land in the middle of one.
type SessionLanes interface {
	Acquire(ctx context.Context, id string) error
	Release(id string)
}

// Gateway is the HTTP gateway module. It is a leaf module: nothing imports
// it, and everything it serves is resolved from the service registry.
type Gateway struct {
	config      Config
	appCtx      *core.AppContext
	logger      *slog.Logger
	server      *http.Server
	limiter     *security.ClientLimiter
	authLimiter *security.ClientLimiter
	audit       *security.AuditLogger
	auditFile   io.Closer
	redactor    *security.Redactor
	startedAt   time.Time

	// Resolved lazily at Start() via service registry.
	turns      TurnHandler
	audio      AudioStore
	sessions   SessionStore
	lanes      SessionLanes
	metrics    *telemetry.Metrics
	engines    map[string]string
	configPath string
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.limiter = security.NewClientLimiter(g.config.RateLimit)
	g.authLimiter = security.NewClientLimiter(security.RateLimitConfig{TurnsPerMinute: 30, Burst: 10})
	g.redactor = security.NewRedactor()

	ctx.RegisterService("gateway.limiter", g.limiter)
	ctx.RegisterService("gateway.auth_limiter", g.authLimiter)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	if g.config.RateLimit.TurnsPerMinute < 0 || g.config.RateLimit.Burst < 0 {
		return errors.New("gateway: rate_limit values must not be negative")
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the service
// registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	g.resolveServices()
	if g.turns == nil {
		g.logger.Warn("no turn orchestrator registered, /chat will answer 503")
	}

	if g.config.AuditLog {
		if err := g.openAuditLog(); err != nil {
			return err
		}
	}

	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	err := g.server.Shutdown(shutdownCtx)
	if g.auditFile != nil {
		err = errors.Join(err, g.auditFile.Close())
	}
	return err
}

func (g *Gateway) resolveServices() {
	if h, ok := core.Service[TurnHandler](g.appCtx, "turn.orchestrator"); ok {
		g.turns = h
	}
	if s, ok := core.Service[AudioStore](g.appCtx, "artifact.store"); ok {
		g.audio = s
	}
	if s, ok := core.Service[SessionStore](g.appCtx, "session.store"); ok {
		g.sessions = s
	}
	if l, ok := core.Service[SessionLanes](g.appCtx, "session.lanes"); ok {
		g.lanes = l
	}
	if m, ok := core.Service[*telemetry.Metrics](g.appCtx, "telemetry.metrics"); ok {
		g.metrics = m
	}
	if e, ok := core.Service[map[string]string](g.appCtx, "turn.engines"); ok {
		g.engines = e
	}
	if p, ok := core.Service[string](g.appCtx, "config.path"); ok {
		g.configPath = p
	}
	if c, ok := core.Service[*security.CredentialStore](g.appCtx, "security.credentials"); ok {
		g.redactor.SyncCredentials(c)
	}
}

func (g *Gateway) openAuditLog() error {
	path := filepath.Join(g.appCtx.DataDir, "audit.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("gateway: opening audit log: %w", err)
	}
	g.auditFile = f
	g.audit = security.NewAuditLogger(security.AuditLoggerConfig{Writer: f, Redactor: g.redactor})
	return nil
}
