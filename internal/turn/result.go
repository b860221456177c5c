package turn

import (
	"time"

	"github.com/echomate/echomate/internal/intent"
)

// Stage names a pipeline step in logs, metrics, spans and Result.Degraded.
type Stage string

// Pipeline stages.
const (
	StageNormalize       Stage = "normalize"
	StageTranscribe      Stage = "transcribe"
	StageComplete        Stage = "complete"
	StageSynthesize      Stage = "synthesize"
	StageNormalizeOutput Stage = "normalize_output"
	StageStore           Stage = "store"
)

// Request is one incoming utterance.
type Request struct {
	// ID correlates logs and spans. Generated when empty.
	ID string

	SessionID  string
	Audio      []byte
	ReceivedAt time.Time
}

// Result is the outcome of a successful turn.
type Result struct {
	ReplyText string

	// AudioRef is the artifact name of the spoken reply. Empty only when
	// synthesis failed under the "text" policy.
	AudioRef string

	SessionEnded bool
	Intent       intent.Intent

	// Degraded lists stages that failed and were replaced by a fallback.
	Degraded []Stage
}

// IsDegraded reports whether any stage fell back.
func (r Result) IsDegraded() bool {
	return len(r.Degraded) > 0
}

// Assemble builds a Result from the three values every turn produces.
func Assemble(replyText, audioRef string, sessionEnded bool) Result {
	return Result{
		ReplyText:    replyText,
		AudioRef:     audioRef,
		SessionEnded: sessionEnded,
	}
}

// Outcome is the result of a stage that may recover from failure. When
// Recovered is set, Value is the fallback and Cause the original error.
type Outcome[T any] struct {
	Value     T
	Recovered bool
	Cause     error
}

// Ok wraps a real success.
func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Fallback wraps a substituted value and the failure it replaces.
func Fallback[T any](v T, cause error) Outcome[T] {
	return Outcome[T]{Value: v, Recovered: true, Cause: cause}
}
