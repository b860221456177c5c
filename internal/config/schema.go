// Package config handles YAML configuration loading, environment variable
// expansion, and validation for echomate.
package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version" jsonschema:"enum=1"`

	// Pipeline tunes the conversational turn: history depth, canned replies,
	// audio format and per-stage timeouts.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Intent configures end-of-session detection.
	Intent IntentConfig `yaml:"intent"`

	// Session controls idle eviction of conversation state.
	Session SessionConfig `yaml:"session"`

	// Artifacts controls where synthesized replies are kept and for how long.
	Artifacts ArtifactConfig `yaml:"artifacts"`

	// Telemetry enables metrics and trace export.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "stt.openai_compatible").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// PipelineConfig holds turn orchestration settings.
type PipelineConfig struct {
	// SystemPrompt is sent first in every completion request. Never stored
	// in session history.
	SystemPrompt string `yaml:"system_prompt"`

	// MaxPairs is the number of (user, assistant) exchanges kept per session.
	MaxPairs int `yaml:"max_pairs" validate:"gte=1,lte=1000"`

	// Language is the transcription language hint (ISO 639-1).
	Language string `yaml:"language" validate:"omitempty,alpha,min=2,max=3"`

	// TranscribePrompt primes the transcriber toward the expected script.
	TranscribePrompt string `yaml:"transcribe_prompt"`

	// Voice selects the synthesis voice.
	Voice string `yaml:"voice"`

	// SampleRate and Channels describe the canonical PCM format used for
	// both recognition input and synthesized output.
	SampleRate int `yaml:"sample_rate" validate:"oneof=8000 16000 22050 24000 44100 48000"`
	Channels   int `yaml:"channels" validate:"gte=1,lte=2"`

	// OnSynthesisFailure is "error" (fail the turn) or "text" (return the
	// reply text without audio).
	OnSynthesisFailure string `yaml:"on_synthesis_failure" validate:"oneof=error text"`

	Replies  RepliesConfig  `yaml:"replies"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
}

// RepliesConfig holds the fixed replies spoken when no completion is made.
type RepliesConfig struct {
	NotHeard string `yaml:"not_heard" validate:"required"`
	Farewell string `yaml:"farewell" validate:"required"`
	Apology  string `yaml:"apology" validate:"required"`
}

// TimeoutsConfig bounds each external engine call.
type TimeoutsConfig struct {
	Normalize  time.Duration `yaml:"normalize" validate:"gt=0"`
	Transcribe time.Duration `yaml:"transcribe" validate:"gt=0"`
	Complete   time.Duration `yaml:"complete" validate:"gt=0"`
	Synthesize time.Duration `yaml:"synthesize" validate:"gt=0"`
}

// IntentConfig configures the intent classifier.
type IntentConfig struct {
	// ExitPhrases end the session when found anywhere in a transcript.
	ExitPhrases []string `yaml:"exit_phrases" validate:"dive,required"`

	// MinRunes is the number of letters or digits below which a transcript
	// counts as empty.
	MinRunes int `yaml:"min_runes" validate:"gte=1"`

	// FoldCase makes phrase matching case-insensitive.
	FoldCase bool `yaml:"fold_case"`
}

// SessionConfig controls session lifetime.
type SessionConfig struct {
	IdleTimeout   time.Duration `yaml:"idle_timeout" validate:"gt=0"`
	PruneInterval time.Duration `yaml:"prune_interval" validate:"gt=0"`

	// PruneSchedule is a 5-field cron expression for the background prune job.
	PruneSchedule string `yaml:"prune_schedule" validate:"required"`
}

// ArtifactConfig controls synthesized reply storage.
type ArtifactConfig struct {
	// Dir defaults to <data_dir>/replies.
	Dir string `yaml:"dir,omitempty"`

	MaxAge        time.Duration `yaml:"max_age" validate:"gt=0"`
	SweepSchedule string        `yaml:"sweep_schedule" validate:"required"`
}

// TelemetryConfig enables metrics and tracing.
type TelemetryConfig struct {
	ServiceName string        `yaml:"service_name" validate:"required"`
	Metrics     bool          `yaml:"metrics"`
	Tracing     TracingConfig `yaml:"tracing"`
}

// TracingConfig configures OTLP/HTTP trace export. Tracing is disabled
// when Endpoint is empty.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint,omitempty" validate:"omitempty,hostname_port"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio" validate:"gte=0,lte=1"`
}

// Default values applied by ApplyDefaults.
const (
	DefaultMaxPairs       = 20
	DefaultLanguage       = "zh"
	DefaultVoice          = "zh-CN-XiaoxiaoNeural"
	DefaultSampleRate     = 16000
	DefaultChannels       = 1
	DefaultIdleTimeout    = 30 * time.Minute
	DefaultArtifactMaxAge = time.Hour
)

// DefaultExitPhrases end a session when no phrases are configured.
var DefaultExitPhrases = []string{"再见", "拜拜", "退出", "结束对话"}

// ApplyDefaults fills every zero-valued setting with its default.
func (c *Config) ApplyDefaults() {
	p := &c.Pipeline
	if p.SystemPrompt == "" {
		p.SystemPrompt = "你是一个友好的桌面机器人助手，回答要简短、口语化，适合朗读。"
	}
	if p.MaxPairs == 0 {
		p.MaxPairs = DefaultMaxPairs
	}
	if p.Language == "" {
		p.Language = DefaultLanguage
	}
	if p.TranscribePrompt == "" {
		p.TranscribePrompt = "以下是普通话的句子。"
	}
	if p.Voice == "" {
		p.Voice = DefaultVoice
	}
	if p.SampleRate == 0 {
		p.SampleRate = DefaultSampleRate
	}
	if p.Channels == 0 {
		p.Channels = DefaultChannels
	}
	if p.OnSynthesisFailure == "" {
		p.OnSynthesisFailure = "error"
	}
	if p.Replies.NotHeard == "" {
		p.Replies.NotHeard = "我没有听清，请再说一遍。"
	}
	if p.Replies.Farewell == "" {
		p.Replies.Farewell = "好的，再见！"
	}
	if p.Replies.Apology == "" {
		p.Replies.Apology = "抱歉，我刚才走神了，请再说一次。"
	}
	t := &p.Timeouts
	if t.Normalize == 0 {
		t.Normalize = 10 * time.Second
	}
	if t.Transcribe == 0 {
		t.Transcribe = 30 * time.Second
	}
	if t.Complete == 0 {
		t.Complete = 60 * time.Second
	}
	if t.Synthesize == 0 {
		t.Synthesize = 30 * time.Second
	}

	if c.Intent.ExitPhrases == nil {
		c.Intent.ExitPhrases = append([]string(nil), DefaultExitPhrases...)
	}
	if c.Intent.MinRunes == 0 {
		c.Intent.MinRunes = 2
	}

	if c.Session.IdleTimeout == 0 {
		c.Session.IdleTimeout = DefaultIdleTimeout
	}
	if c.Session.PruneInterval == 0 {
		c.Session.PruneInterval = time.Minute
	}
	if c.Session.PruneSchedule == "" {
		c.Session.PruneSchedule = "*/5 * * * *"
	}

	if c.Artifacts.MaxAge == 0 {
		c.Artifacts.MaxAge = DefaultArtifactMaxAge
	}
	if c.Artifacts.SweepSchedule == "" {
		c.Artifacts.SweepSchedule = "*/10 * * * *"
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "echomate"
	}
	if c.Telemetry.Tracing.SampleRatio == 0 {
		c.Telemetry.Tracing.SampleRatio = 1
	}
}
