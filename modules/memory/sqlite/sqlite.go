// Package sqlite mirrors session history to a SQLite database so
// conversations survive restarts and idle eviction. It uses
// modernc.org/sqlite (pure Go, no CGO).
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/echomate/echomate/internal/core"
	"github.com/echomate/echomate/internal/cron"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Service names registered by this module.
const (
	PersisterService = "session.persister"
	SchedulerService = "cron.scheduler"
)

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module is the memory.sqlite module.
type Module struct {
	config  Config
	logger  *slog.Logger
	history *History
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "memory.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	db, err := open(context.TODO(), m.config.Path, m.config.walEnabled(), m.config.BusyTimeout)
	if err != nil {
		return err
	}
	m.history = newHistory(db)
	ctx.RegisterService(PersisterService, m.history)

	if m.config.Retention > 0 {
		if sched, ok := core.Service[*cron.Scheduler](ctx, SchedulerService); ok {
			if err := sched.RegisterJob(&cron.HistoryRetentionJob{
				Store:        m.history,
				MaxAge:       m.config.Retention,
				ScheduleExpr: m.config.RetentionSchedule,
				Logger:       m.logger,
			}); err != nil {
				_ = db.Close()
				return err
			}
		}
	}

	m.logger.Info("sqlite history provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
		"retention", m.config.Retention,
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	if err := m.history.db.PingContext(context.TODO()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.history == nil {
		return nil
	}
	m.logger.Info("sqlite history stopping")
	return m.history.Close()
}

// History returns the persister backing this module.
func (m *Module) History() *History {
	return m.history
}
