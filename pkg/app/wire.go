package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/echomate/echomate/internal/artifact"
	"github.com/echomate/echomate/internal/audio"
	"github.com/echomate/echomate/internal/core"
	"github.com/echomate/echomate/internal/cron"
	"github.com/echomate/echomate/internal/intent"
	"github.com/echomate/echomate/internal/provider"
	"github.com/echomate/echomate/internal/session"
	"github.com/echomate/echomate/internal/stt"
	"github.com/echomate/echomate/internal/telemetry"
	"github.com/echomate/echomate/internal/tts"
	"github.com/echomate/echomate/internal/turn"

	// Compiled-in modules.
	_ "github.com/echomate/echomate/internal/gateway"
	_ "github.com/echomate/echomate/modules/audio/ffmpeg"
	_ "github.com/echomate/echomate/modules/audio/native"
	_ "github.com/echomate/echomate/modules/memory/sqlite"
	_ "github.com/echomate/echomate/modules/provider/anthropic"
	_ "github.com/echomate/echomate/modules/provider/openai_compatible"
	_ "github.com/echomate/echomate/modules/stt/openai_compatible"
	_ "github.com/echomate/echomate/modules/tts/command"
	_ "github.com/echomate/echomate/modules/tts/openai_compatible"
)

// Service names shared with modules.
const (
	schedulerService = "cron.scheduler"
	persisterService = "session.persister"

	// defaultNormalizer is loaded when no audio module is configured.
	defaultNormalizer = "audio.native"

	// tokenEncoding estimates prompt sizes for OpenAI-style models.
	tokenEncoding = "cl100k_base"
)

// limiterServices are per-client rate limiters whose idle buckets are
// swept periodically.
var limiterServices = []string{"gateway.limiter", "gateway.auth_limiter"}

// schedulerModule puts the cron scheduler in the App lifecycle.
type schedulerModule struct {
	scheduler *cron.Scheduler
}

func (m *schedulerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "cron"}
}

func (m *schedulerModule) Start() error {
	return m.scheduler.Start()
}

func (m *schedulerModule) Stop(ctx context.Context) error {
	return m.scheduler.Stop(ctx)
}

// engines are the four collaborators of a turn, found among loaded modules.
type engines struct {
	normalizer  audio.Normalizer
	transcriber stt.Transcriber
	provider    provider.Provider
	synthesizer tts.Synthesizer

	// ids maps each namespace to the module serving it.
	ids map[string]string
}

// discoverEngines type-asserts every loaded module against the engine
// interfaces. Config validation already guarantees one module per
// namespace; the audio namespace falls back to the native normalizer.
func discoverEngines(application *core.App, appCtx *core.AppContext, ids []string) (engines, error) {
	e := engines{ids: make(map[string]string)}

	for _, id := range ids {
		mod, ok := application.Module(id)
		if !ok {
			continue
		}
		if n, ok := mod.(audio.Normalizer); ok {
			e.normalizer = n
			e.ids["audio"] = id
		}
		if t, ok := mod.(stt.Transcriber); ok {
			e.transcriber = t
			e.ids["stt"] = id
		}
		if p, ok := mod.(provider.Provider); ok {
			e.provider = p
			e.ids["provider"] = id
		}
		if s, ok := mod.(tts.Synthesizer); ok {
			e.synthesizer = s
			e.ids["tts"] = id
		}
	}

	if e.normalizer == nil {
		mod, err := appCtx.LoadModule(defaultNormalizer)
		if err != nil {
			return e, fmt.Errorf("loading default normalizer: %w", err)
		}
		n, ok := mod.(audio.Normalizer)
		if !ok {
			return e, fmt.Errorf("%s is not an audio normalizer", defaultNormalizer)
		}
		application.AppendModule(core.ModuleID(defaultNormalizer), mod)
		e.normalizer = n
		e.ids["audio"] = defaultNormalizer
	}

	var errs []error
	if e.transcriber == nil {
		errs = append(errs, errors.New("no stt module provides a transcriber"))
	}
	if e.provider == nil {
		errs = append(errs, errors.New("no provider module provides completions"))
	}
	if e.synthesizer == nil {
		errs = append(errs, errors.New("no tts module provides a synthesizer"))
	}
	return e, errors.Join(errs...)
}

// wirePipeline builds the session store, artifact store, telemetry and the
// turn orchestrator, registers them as services, and schedules the
// background jobs. Must be called after LoadModules and before Start.
func wirePipeline(ctx context.Context, inst *Instance, ids []string, version string) error {
	cfg := inst.Config
	appCtx := inst.Context
	logger := inst.Logger

	eng, err := discoverEngines(inst.App, appCtx, ids)
	if err != nil {
		return fmt.Errorf("wiring engines: %w", err)
	}
	inst.Engines = eng.ids

	// Sessions, optionally mirrored to durable history.
	storeOpts := []session.Option{session.WithLogger(logger.With("component", "session"))}
	if p, ok := core.Service[session.Persister](appCtx, persisterService); ok {
		storeOpts = append(storeOpts,
			session.WithPersister(p),
			session.WithRestoreWindow(cfg.Session.IdleTimeout),
		)
		logger.Info("session history persistence enabled")
	}
	sessions := session.NewStore(cfg.Pipeline.MaxPairs, storeOpts...)
	lanes := session.NewLaneLock()
	pruner := session.NewPruner(sessions, lanes, cfg.Session.IdleTimeout, cfg.Session.PruneInterval)

	artifactDir := cfg.Artifacts.Dir
	if artifactDir == "" {
		artifactDir = filepath.Join(appCtx.DataDir, "replies")
	}
	artifacts, err := artifact.NewStore(artifactDir)
	if err != nil {
		return err
	}

	var metrics *telemetry.Metrics
	if cfg.Telemetry.Metrics {
		metrics = telemetry.NewMetrics()
		appCtx.RegisterService("telemetry.metrics", metrics)
	}
	tracing, err := telemetry.NewTracing(ctx, telemetry.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     version,
		Endpoint:    cfg.Telemetry.Tracing.Endpoint,
		Insecure:    cfg.Telemetry.Tracing.Insecure,
		SampleRatio: cfg.Telemetry.Tracing.SampleRatio,
	})
	if err != nil {
		return err
	}
	inst.tracing = tracing

	matcher := intent.NewPhraseMatcher(cfg.Intent.ExitPhrases, cfg.Intent.FoldCase)
	classifier := intent.NewClassifier(matcher, cfg.Intent.MinRunes)

	p := cfg.Pipeline
	orchestrator, err := turn.New(turn.Config{
		SystemPrompt:     p.SystemPrompt,
		Language:         p.Language,
		TranscribePrompt: p.TranscribePrompt,
		Voice:            tts.Options{Voice: p.Voice},
		Format:           audio.Format{SampleRate: p.SampleRate, Channels: p.Channels},
		Replies: turn.Replies{
			NotHeard: p.Replies.NotHeard,
			Farewell: p.Replies.Farewell,
			Apology:  p.Replies.Apology,
		},
		Timeouts: turn.Timeouts{
			Normalize:  p.Timeouts.Normalize,
			Transcribe: p.Timeouts.Transcribe,
			Complete:   p.Timeouts.Complete,
			Synthesize: p.Timeouts.Synthesize,
		},
		OnSynthesisFailure: turn.SynthesisPolicy(p.OnSynthesisFailure),
	}, turn.Dependencies{
		Normalizer:  eng.normalizer,
		Transcriber: eng.transcriber,
		Provider:    eng.provider,
		Synthesizer: eng.synthesizer,
		Classifier:  classifier,
		Sessions:    sessions,
		Lanes:       lanes,
		Artifacts:   artifacts,
	},
		turn.WithLogger(logger.With("component", "turn")),
		turn.WithMetrics(metrics),
		turn.WithTracer(tracing.Tracer()),
		turn.WithTokenCounter(provider.NewTokenCounter(tokenEncoding)),
		turn.WithPruner(pruner),
	)
	if err != nil {
		return err
	}

	appCtx.RegisterService("turn.orchestrator", orchestrator)
	appCtx.RegisterService("session.store", sessions)
	appCtx.RegisterService("session.lanes", lanes)
	appCtx.RegisterService("artifact.store", artifacts)
	appCtx.RegisterService("turn.engines", eng.ids)

	if err := registerJobs(inst, pruner, sessions, artifacts, metrics); err != nil {
		return err
	}
	inst.App.AppendModule("cron", &schedulerModule{scheduler: inst.Scheduler})

	logger.Info("pipeline wired",
		"audio", eng.ids["audio"],
		"stt", eng.ids["stt"],
		"provider", eng.ids["provider"],
		"tts", eng.ids["tts"],
	)
	return nil
}

// registerJobs schedules the housekeeping jobs. Modules may already have
// registered their own (history retention) during Provision.
func registerJobs(
	inst *Instance,
	pruner *session.Pruner,
	sessions *session.Store,
	artifacts *artifact.Store,
	metrics *telemetry.Metrics,
) error {
	cfg := inst.Config
	logger := inst.Logger.With("component", "cron")

	jobs := []cron.Job{
		&cron.SessionPruneJob{
			Pruner:       pruner,
			Sessions:     sessions,
			Gauge:        metrics,
			ScheduleExpr: cfg.Session.PruneSchedule,
			Logger:       logger,
		},
		&cron.ArtifactSweepJob{
			Store:        artifacts,
			MaxAge:       cfg.Artifacts.MaxAge,
			ScheduleExpr: cfg.Artifacts.SweepSchedule,
			Logger:       logger,
		},
	}
	var limiters []cron.LimiterSweeper
	for _, name := range limiterServices {
		if l, ok := core.Service[cron.LimiterSweeper](inst.Context, name); ok {
			limiters = append(limiters, l)
		}
	}
	if len(limiters) > 0 {
		jobs = append(jobs, &cron.LimiterSweepJob{Limiters: limiters, Logger: logger})
	}

	for _, j := range jobs {
		if err := inst.Scheduler.RegisterJob(j); err != nil {
			return err
		}
	}
	return nil
}
