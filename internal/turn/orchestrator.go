// Package turn runs one conversational turn: normalize the uploaded clip,
// transcribe it, decide what to say, speak it and hand back a reference to
// the spoken reply.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/echomate/echomate/internal/audio"
	"github.com/echomate/echomate/internal/intent"
	"github.com/echomate/echomate/internal/provider"
	"github.com/echomate/echomate/internal/session"
	"github.com/echomate/echomate/internal/stt"
	"github.com/echomate/echomate/internal/telemetry"
	"github.com/echomate/echomate/internal/tts"
)

// SynthesisPolicy decides what a turn returns when no reply audio could be
// produced.
type SynthesisPolicy string

// Synthesis failure policies.
const (
	// PolicyError fails the turn with ErrSynthesisFailed.
	PolicyError SynthesisPolicy = "error"

	// PolicyText returns the reply text with an empty AudioRef.
	PolicyText SynthesisPolicy = "text"
)

// Replies are the fixed texts spoken when no completion is used.
type Replies struct {
	NotHeard string
	Farewell string
	Apology  string
}

// Timeouts bound each engine call. Zero means no stage deadline.
type Timeouts struct {
	Normalize  time.Duration
	Transcribe time.Duration
	Complete   time.Duration
	Synthesize time.Duration
}

// Config holds the orchestrator's behavior settings.
type Config struct {
	// SystemPrompt leads every completion request.
	SystemPrompt string

	// Transcription hints.
	Language         string
	TranscribePrompt string

	Voice  tts.Options
	Format audio.Format

	Replies            Replies
	Timeouts           Timeouts
	OnSynthesisFailure SynthesisPolicy
}

// ArtifactSink stores a spoken reply and returns its reference.
type ArtifactSink interface {
	Save(ctx context.Context, data []byte) (string, error)
}

// Dependencies are the collaborators of a turn. All are required.
type Dependencies struct {
	Normalizer  audio.Normalizer
	Transcriber stt.Transcriber
	Provider    provider.Provider
	Synthesizer tts.Synthesizer
	Classifier  *intent.Classifier
	Sessions    *session.Store
	Lanes       *session.LaneLock
	Artifacts   ArtifactSink
}

func (d Dependencies) validate() error {
	var errs []error
	if d.Normalizer == nil {
		errs = append(errs, errors.New("normalizer is required"))
	}
	if d.Transcriber == nil {
		errs = append(errs, errors.New("transcriber is required"))
	}
	if d.Provider == nil {
		errs = append(errs, errors.New("provider is required"))
	}
	if d.Synthesizer == nil {
		errs = append(errs, errors.New("synthesizer is required"))
	}
	if d.Classifier == nil {
		errs = append(errs, errors.New("classifier is required"))
	}
	if d.Sessions == nil {
		errs = append(errs, errors.New("session store is required"))
	}
	if d.Lanes == nil {
		errs = append(errs, errors.New("lane lock is required"))
	}
	if d.Artifacts == nil {
		errs = append(errs, errors.New("artifact sink is required"))
	}
	return errors.Join(errs...)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics records stage and turn metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTracer emits a span per turn and per stage.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithTokenCounter estimates prompt size for each completion request.
func WithTokenCounter(c *provider.TokenCounter) Option {
	return func(o *Orchestrator) { o.tokens = c }
}

// WithPruner evicts idle sessions opportunistically after each turn.
func WithPruner(p *session.Pruner) Option {
	return func(o *Orchestrator) { o.pruner = p }
}

// Orchestrator handles turns. It is safe for concurrent use: turns for
// different sessions run in parallel, turns for the same session are
// serialized on the session's lane.
type Orchestrator struct {
	cfg  Config
	deps Dependencies

	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
	tokens  *provider.TokenCounter
	pruner  *session.Pruner

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// New creates an Orchestrator.
func New(cfg Config, deps Dependencies, opts ...Option) (*Orchestrator, error) {
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("turn: %w", err)
	}
	if cfg.Format == (audio.Format{}) {
		cfg.Format = audio.Canonical
	}
	if err := cfg.Format.Validate(); err != nil {
		return nil, fmt.Errorf("turn: %w", err)
	}
	switch cfg.OnSynthesisFailure {
	case "":
		cfg.OnSynthesisFailure = PolicyError
	case PolicyError, PolicyText:
	default:
		return nil, fmt.Errorf("turn: unknown synthesis failure policy %q", cfg.OnSynthesisFailure)
	}

	o := &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer(telemetry.TracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// HandleTurn runs the pipeline for one utterance. On error no session
// history has been changed.
func (o *Orchestrator) HandleTurn(ctx context.Context, req Request) (Result, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.ReceivedAt.IsZero() {
		req.ReceivedAt = o.now()
	}

	ctx, span := o.tracer.Start(ctx, "turn", trace.WithAttributes(
		telemetry.SessionAttr(req.SessionID),
		attribute.String("echomate.request_id", req.ID),
		attribute.Int("echomate.audio_bytes", len(req.Audio)),
	))
	defer span.End()

	logger := o.logger.With("request_id", req.ID, "session_id", req.SessionID)

	res, err := o.handle(ctx, logger, req)
	elapsed := o.now().Sub(req.ReceivedAt)
	if err != nil {
		kind := KindOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind.String())
		o.metrics.ObserveTurn(res.Intent.String(), kind.String())
		if kind.ClientError() {
			logger.Info("turn rejected", "error", err)
		} else {
			logger.Error("turn failed", "kind", kind.String(), "error", err, "elapsed", elapsed)
		}
		return Result{}, err
	}

	outcome := "ok"
	if res.IsDegraded() {
		outcome = "degraded"
	}
	span.SetAttributes(
		attribute.String("echomate.intent", res.Intent.String()),
		attribute.Bool("echomate.session_ended", res.SessionEnded),
	)
	o.metrics.ObserveTurn(res.Intent.String(), outcome)
	o.metrics.SetActiveSessions(o.deps.Sessions.Len())
	logger.Info("turn handled",
		"intent", res.Intent.String(),
		"degraded", res.Degraded,
		"session_ended", res.SessionEnded,
		"elapsed", elapsed,
	)

	if o.pruner != nil {
		if n := o.pruner.TryPrune(ctx); n > 0 {
			logger.Debug("pruned idle sessions", "count", n)
		}
	}
	return res, nil
}

func (o *Orchestrator) handle(ctx context.Context, logger *slog.Logger, req Request) (Result, error) {
	if len(req.Audio) == 0 {
		return Result{Intent: intent.Unknown}, ErrEmptyAudio
	}
	if req.SessionID == "" {
		return Result{Intent: intent.Unknown}, ErrMissingSession
	}

	wav, err := runStage(ctx, o, StageNormalize, o.cfg.Timeouts.Normalize, func(ctx context.Context) ([]byte, error) {
		return o.deps.Normalizer.Normalize(ctx, req.Audio, o.cfg.Format)
	})
	if err != nil {
		return Result{Intent: intent.Unknown}, fmt.Errorf("%w: %w", ErrNormalizationFailed, err)
	}

	heard := o.transcribe(ctx, wav)
	if heard.Recovered {
		logger.Warn("transcription failed, treating as silence", "error", heard.Cause)
	}

	res, err := o.converse(ctx, logger, req.SessionID, heard.Value)
	if heard.Recovered {
		res.Degraded = append([]Stage{StageTranscribe}, res.Degraded...)
	}
	return res, err
}

// converse decides the reply, speaks it and commits history while holding
// the session's lane.
func (o *Orchestrator) converse(ctx context.Context, logger *slog.Logger, id, transcript string) (Result, error) {
	if err := o.deps.Lanes.Acquire(ctx, id); err != nil {
		return Result{Intent: intent.Unknown}, fmt.Errorf("waiting for session lane: %w", err)
	}
	defer o.deps.Lanes.Release(id)

	o.deps.Sessions.GetOrCreate(ctx, id)

	kind, phrase := o.deps.Classifier.Explain(transcript)
	logger.Debug("intent classified", "intent", kind.String(), "phrase", phrase, "transcript", transcript)

	var (
		reply    string
		ended    bool
		degraded []Stage
		staged   *[2]provider.LLMMessage
	)

	switch kind {
	case intent.Empty:
		reply = o.cfg.Replies.NotHeard

	case intent.EndSession:
		// Cleared at commit, once the farewell has been spoken.
		reply = o.cfg.Replies.Farewell
		ended = true

	default:
		history, err := o.deps.Sessions.Snapshot(id)
		if err != nil {
			return Result{Intent: kind}, err
		}
		user := provider.UserMessage(transcript)
		answer := o.complete(ctx, history, user)
		if answer.Recovered {
			logger.Warn("completion failed, using apology", "error", answer.Cause)
			reply = o.cfg.Replies.Apology
			degraded = append(degraded, StageComplete)
		} else {
			reply = answer.Value
			staged = &[2]provider.LLMMessage{user, provider.AssistantMessage(answer.Value)}
		}
	}

	ref, err := o.speak(ctx, reply)
	if err != nil {
		if o.cfg.OnSynthesisFailure != PolicyText || ctx.Err() != nil {
			return Result{Intent: kind}, err
		}
		logger.Warn("synthesis failed, returning text only", "error", err)
		degraded = append(degraded, StageSynthesize)
	}

	// A canceled turn leaves no trace in history.
	if err := ctx.Err(); err != nil {
		return Result{Intent: kind}, fmt.Errorf("turn abandoned: %w", err)
	}
	if ended {
		if err := o.deps.Sessions.Clear(ctx, id); err != nil {
			return Result{Intent: kind}, err
		}
	}
	if staged != nil {
		if err := o.deps.Sessions.AppendPair(ctx, id, staged[0], staged[1]); err != nil {
			return Result{Intent: kind}, err
		}
	}
	o.deps.Sessions.Touch(id)

	res := Assemble(reply, ref, ended)
	res.Intent = kind
	res.Degraded = degraded
	return res, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, wav []byte) Outcome[string] {
	text, err := runStage(ctx, o, StageTranscribe, o.cfg.Timeouts.Transcribe, func(ctx context.Context) (string, error) {
		return o.deps.Transcriber.Transcribe(ctx, wav, stt.Options{
			Language: o.cfg.Language,
			Prompt:   o.cfg.TranscribePrompt,
		})
	})
	switch {
	case errors.Is(err, stt.ErrNoSpeech):
		return Ok("")
	case err != nil:
		return Fallback("", fmt.Errorf("%w: %w", ErrTranscriptionFailed, err))
	}
	return Ok(strings.TrimSpace(text))
}

func (o *Orchestrator) complete(ctx context.Context, history []provider.LLMMessage, user provider.LLMMessage) Outcome[string] {
	msgs := make([]provider.LLMMessage, 0, len(history)+2)
	if o.cfg.SystemPrompt != "" {
		msgs = append(msgs, provider.SystemMessage(o.cfg.SystemPrompt))
	}
	msgs = append(msgs, history...)
	msgs = append(msgs, user)

	if o.tokens != nil {
		o.metrics.ObservePrompt(len(history), o.tokens.CountMessages(msgs))
	}

	resp, err := runStage(ctx, o, StageComplete, o.cfg.Timeouts.Complete, func(ctx context.Context) (provider.CompletionResponse, error) {
		return o.deps.Provider.Complete(ctx, provider.CompletionRequest{Messages: msgs})
	})
	if err != nil {
		return Fallback("", fmt.Errorf("%w: %w", ErrCompletionFailed, err))
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return Fallback("", fmt.Errorf("%w: %w", ErrCompletionFailed, provider.ErrEmptyResponse))
	}
	return Ok(text)
}

// speak synthesizes text, converts it to the canonical format and stores
// it. Every failure is ErrSynthesisFailed.
func (o *Orchestrator) speak(ctx context.Context, text string) (string, error) {
	spoken, err := runStage(ctx, o, StageSynthesize, o.cfg.Timeouts.Synthesize, func(ctx context.Context) (tts.Audio, error) {
		return o.deps.Synthesizer.Synthesize(ctx, text, o.cfg.Voice)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}

	wav, err := runStage(ctx, o, StageNormalizeOutput, o.cfg.Timeouts.Normalize, func(ctx context.Context) ([]byte, error) {
		return o.deps.Normalizer.Normalize(ctx, spoken.Data, o.cfg.Format)
	})
	if err != nil {
		return "", fmt.Errorf("%w: normalizing reply: %w", ErrSynthesisFailed, err)
	}

	ref, err := runStage(ctx, o, StageStore, 0, func(ctx context.Context) (string, error) {
		return o.deps.Artifacts.Save(ctx, wav)
	})
	if err != nil {
		return "", fmt.Errorf("%w: storing reply: %w", ErrSynthesisFailed, err)
	}
	return ref, nil
}

// runStage runs fn under the stage's timeout inside a child span and
// records its duration.
func runStage[T any](ctx context.Context, o *Orchestrator, stage Stage, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := o.tracer.Start(ctx, string(stage), trace.WithAttributes(telemetry.StageAttr(string(stage))))
	defer span.End()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := o.now()
	v, err := fn(ctx)
	o.metrics.ObserveStage(string(stage), o.now().Sub(start), err != nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return v, err
}
