// Package app provides the shared entry point of the echomate binary: it
// loads configuration, builds the module graph and wires the turn pipeline.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/echomate/echomate/internal/config"
	"github.com/echomate/echomate/internal/core"
	"github.com/echomate/echomate/internal/cron"
	"github.com/echomate/echomate/internal/security"
	"github.com/echomate/echomate/internal/telemetry"
)

// tracingFlushTimeout bounds the final span export on shutdown.
const tracingFlushTimeout = 5 * time.Second

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level

	// LogFormat is "text" (default) or "json".
	LogFormat string

	// LogOutput receives log records. Defaults to os.Stderr.
	LogOutput io.Writer
}

// Instance is a fully wired but not yet started application.
type Instance struct {
	App        *core.App
	Context    *core.AppContext
	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger
	Scheduler  *cron.Scheduler
	Engines    map[string]string

	credentials *security.CredentialStore
	redactor    *security.Redactor
	tracing     *telemetry.Tracing
}

// Build loads and validates configuration, loads every configured module
// and wires the turn pipeline between them. Nothing is started.
func Build(ctx context.Context, params RunParams) (*Instance, error) {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	credStore := security.NewCredentialStore()
	redactor := security.NewRedactor()
	logger := newLogger(params, redactor)

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	appCtx := core.NewAppContext(logger, dataDir)
	appCtx = appCtx.WithModuleConfigs(cfg.Modules)

	// Services modules may look up during Provision.
	scheduler := cron.NewScheduler(logger.With("component", "cron"))
	appCtx.RegisterService("security.credentials", credStore)
	appCtx.RegisterService("security.redactor", redactor)
	appCtx.RegisterService("config.path", cfgPath)
	appCtx.RegisterService(schedulerService, scheduler)

	application := core.NewApp(appCtx)
	ids := config.Resolve(cfg)
	if err := application.LoadModules(ids); err != nil {
		return nil, err
	}

	inst := &Instance{
		App:         application,
		Context:     appCtx,
		Config:      cfg,
		ConfigPath:  cfgPath,
		Logger:      logger,
		Scheduler:   scheduler,
		credentials: credStore,
		redactor:    redactor,
	}

	// Wire the pipeline between LoadModules and Start: discover engines,
	// build the orchestrator and register it for the gateway to find.
	if err := wirePipeline(ctx, inst, ids, params.Version); err != nil {
		application.Discard()
		return nil, err
	}
	return inst, nil
}

// Start starts every module and syncs the log redactor with the
// credentials modules registered.
func (i *Instance) Start() error {
	if err := i.App.Start(); err != nil {
		return err
	}
	i.redactor.SyncCredentials(i.credentials)
	return nil
}

// Stop stops every module in reverse order and flushes pending spans.
func (i *Instance) Stop() {
	i.App.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), tracingFlushTimeout)
	defer cancel()
	if err := i.tracing.Shutdown(ctx); err != nil {
		i.Logger.Warn("flushing traces failed", "error", err)
	}
}

// Run builds and starts the application, and blocks until SIGINT or
// SIGTERM is received.
func Run(params RunParams) error {
	inst, err := Build(context.Background(), params)
	if err != nil {
		return err
	}
	if err := inst.Start(); err != nil {
		return err
	}
	inst.Logger.Info("echomate started",
		"version", params.Version,
		"config", inst.ConfigPath,
		"engines", inst.Engines,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	inst.Logger.Info("shutdown signal received", "signal", sig.String())
	inst.Stop()
	inst.Logger.Info("shutdown complete")
	return nil
}

func newLogger(params RunParams, redactor *security.Redactor) *slog.Logger {
	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: params.LogLevel}

	var inner slog.Handler
	if params.LogFormat == "json" {
		inner = slog.NewJSONHandler(out, opts)
	} else {
		inner = slog.NewTextHandler(out, opts)
	}
	// Wrap the handler so secrets never reach the logs.
	return slog.New(security.NewRedactingHandler(inner, redactor))
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $ECHOMATE_CONFIG, $XDG_CONFIG_HOME/echomate/echomate.yaml
// (or ~/.config/echomate/echomate.yaml), ./echomate.yaml.
func ResolveConfigPath() (string, error) {
	if p, ok := os.LookupEnv("ECHOMATE_CONFIG"); ok && p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("ECHOMATE_CONFIG: %w", err)
		}
		return p, nil
	}

	var candidates []string
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "echomate", "echomate.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "echomate", "echomate.yaml"))
	}
	candidates = append(candidates, "echomate.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/echomate if set, otherwise ~/.local/share/echomate.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "echomate")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "echomate")
}
