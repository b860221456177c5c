package cron

import (
	"context"
	"log/slog"
	"time"
)

// Default schedules.
const (
	DefaultPruneSchedule = "*/5 * * * *"
	DefaultSweepSchedule = "*/10 * * * *"
	DefaultLimiterSweep  = "*/15 * * * *"
)

// SessionPruner evicts idle sessions. Satisfied by *session.Pruner.
type SessionPruner interface {
	Prune(ctx context.Context) int
}

// SessionCounter reports how many sessions are live.
type SessionCounter interface {
	Len() int
}

// ActiveGauge receives the live session count after each prune.
// Satisfied by *telemetry.Metrics.
type ActiveGauge interface {
	SetActiveSessions(n int)
}

// SessionPruneJob evicts sessions idle past the configured timeout and
// drops their lanes.
type SessionPruneJob struct {
	Pruner       SessionPruner
	Sessions     SessionCounter
	Gauge        ActiveGauge
	ScheduleExpr string
	Logger       *slog.Logger
}

func (j *SessionPruneJob) Name() string { return "session-prune" }

func (j *SessionPruneJob) Schedule() string {
	if j.ScheduleExpr == "" {
		return DefaultPruneSchedule
	}
	return j.ScheduleExpr
}

func (j *SessionPruneJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := j.Pruner.Prune(ctx)
	if n > 0 && j.Logger != nil {
		j.Logger.Info("cron: idle sessions pruned", "count", n)
	}
	if j.Sessions != nil && j.Gauge != nil {
		j.Gauge.SetActiveSessions(j.Sessions.Len())
	}
	return nil
}

// ArtifactSweeper deletes stored clips older than a cutoff. Satisfied by
// *artifact.Store.
type ArtifactSweeper interface {
	Sweep(maxAge time.Duration) (int, error)
}

// ArtifactSweepJob deletes reply clips older than MaxAge.
type ArtifactSweepJob struct {
	Store        ArtifactSweeper
	MaxAge       time.Duration
	ScheduleExpr string
	Logger       *slog.Logger
}

func (j *ArtifactSweepJob) Name() string { return "artifact-sweep" }

func (j *ArtifactSweepJob) Schedule() string {
	if j.ScheduleExpr == "" {
		return DefaultSweepSchedule
	}
	return j.ScheduleExpr
}

func (j *ArtifactSweepJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if j.MaxAge <= 0 {
		return nil
	}
	n, err := j.Store.Sweep(j.MaxAge)
	if n > 0 && j.Logger != nil {
		j.Logger.Info("cron: stale artifacts removed", "count", n, "max_age", j.MaxAge)
	}
	return err
}

// LimiterSweeper forgets idle rate-limit buckets. Satisfied by
// *security.ClientLimiter.
type LimiterSweeper interface {
	Sweep() int
}

// LimiterSweepJob keeps per-client limiter state bounded.
type LimiterSweepJob struct {
	Limiters     []LimiterSweeper
	ScheduleExpr string
	Logger       *slog.Logger
}

func (j *LimiterSweepJob) Name() string { return "limiter-sweep" }

func (j *LimiterSweepJob) Schedule() string {
	if j.ScheduleExpr == "" {
		return DefaultLimiterSweep
	}
	return j.ScheduleExpr
}

func (j *LimiterSweepJob) Run(ctx context.Context) error {
	total := 0
	for _, l := range j.Limiters {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l != nil {
			total += l.Sweep()
		}
	}
	if total > 0 && j.Logger != nil {
		j.Logger.Debug("cron: idle limiter buckets dropped", "count", total)
	}
	return nil
}

// HistoryPurger deletes stored messages older than a cutoff. Satisfied by
// the sqlite history module.
type HistoryPurger interface {
	PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// HistoryRetentionJob bounds how long persisted conversations are kept.
type HistoryRetentionJob struct {
	Store        HistoryPurger
	MaxAge       time.Duration
	ScheduleExpr string
	Logger       *slog.Logger
}

func (j *HistoryRetentionJob) Name() string { return "history-retention" }

func (j *HistoryRetentionJob) Schedule() string {
	if j.ScheduleExpr == "" {
		return "0 * * * *"
	}
	return j.ScheduleExpr
}

func (j *HistoryRetentionJob) Run(ctx context.Context) error {
	if j.MaxAge <= 0 {
		return nil
	}
	n, err := j.Store.PurgeOlderThan(ctx, j.MaxAge)
	if n > 0 && j.Logger != nil {
		j.Logger.Info("cron: expired history purged", "rows", n, "max_age", j.MaxAge)
	}
	return err
}
