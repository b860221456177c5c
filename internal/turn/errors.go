package turn

import (
	"context"
	"errors"

	"github.com/echomate/echomate/internal/session"
)

// Turn failures. Transcription and completion failures are recovered inside
// the pipeline and only surface as Result.Degraded; the others end the turn.
var (
	// ErrEmptyAudio means the request carried no audio. No engine is called.
	ErrEmptyAudio = errors.New("empty audio payload")

	// ErrMissingSession means the request carried no session id.
	ErrMissingSession = errors.New("missing session id")

	// ErrNormalizationFailed means the inbound clip could not be converted
	// to the canonical format.
	ErrNormalizationFailed = errors.New("audio normalization failed")

	// ErrTranscriptionFailed is recovered as an empty transcript.
	ErrTranscriptionFailed = errors.New("transcription failed")

	// ErrCompletionFailed is recovered with the apology reply.
	ErrCompletionFailed = errors.New("completion failed")

	// ErrSynthesisFailed means no reply audio could be produced.
	ErrSynthesisFailed = errors.New("speech synthesis failed")

	// ErrSessionNotFound indicates an orchestration bug: a session vanished
	// while its lane was held.
	ErrSessionNotFound = session.ErrSessionNotFound
)

// ErrorKind classifies a turn error for transports and metrics.
type ErrorKind int

// Error kinds, in pipeline order.
const (
	KindNone ErrorKind = iota
	KindEmptyAudio
	KindMissingSession
	KindNormalizationFailed
	KindTranscriptionFailed
	KindCompletionFailed
	KindSynthesisFailed
	KindSessionNotFound
	KindCanceled
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindEmptyAudio:
		return "empty_audio"
	case KindMissingSession:
		return "missing_session"
	case KindNormalizationFailed:
		return "normalization_failed"
	case KindTranscriptionFailed:
		return "transcription_failed"
	case KindCompletionFailed:
		return "completion_failed"
	case KindSynthesisFailed:
		return "synthesis_failed"
	case KindSessionNotFound:
		return "session_not_found"
	case KindCanceled:
		return "canceled"
	default:
		return "internal"
	}
}

// ClientError reports whether the kind is caused by the request rather than
// by the server.
func (k ErrorKind) ClientError() bool {
	return k == KindEmptyAudio || k == KindMissingSession
}

// KindOf maps err, possibly wrapped, to its kind. Pipeline sentinels take
// precedence over the context error they may wrap, so a stage deadline is
// reported as that stage's failure.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrEmptyAudio):
		return KindEmptyAudio
	case errors.Is(err, ErrMissingSession):
		return KindMissingSession
	case errors.Is(err, ErrNormalizationFailed):
		return KindNormalizationFailed
	case errors.Is(err, ErrTranscriptionFailed):
		return KindTranscriptionFailed
	case errors.Is(err, ErrCompletionFailed):
		return KindCompletionFailed
	case errors.Is(err, ErrSynthesisFailed):
		return KindSynthesisFailed
	case errors.Is(err, ErrSessionNotFound):
		return KindSessionNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}
