package config

import (
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/echomate/echomate/internal/core"
)

// stubModule is a basic module for testing.
type stubModule struct {
	id string
}

func (m *stubModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  core.ModuleID(m.id),
		New: func() core.Module { return &stubModule{id: m.id} },
	}
}

func registerStub(t *testing.T, id string) {
	t.Helper()
	core.RegisterModule(&stubModule{id: id})
}

// validConfig registers one engine per required namespace, uniquely named
// after the test, and returns a config that passes validation.
func validConfig(t *testing.T) *Config {
	t.Helper()
	modules := map[string]yaml.Node{}
	for _, ns := range []string{"stt", "provider", "tts"} {
		id := ns + "." + t.Name()
		registerStub(t, id)
		modules[id] = yaml.Node{}
	}
	cfg := &Config{Version: "1", Modules: modules}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig(t)
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MissingVersion(t *testing.T) {
	cfg := validConfig(t)
	cfg.Version = ""
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing version")
	}
	if !strings.Contains(err.Error(), "version") {
		t.Errorf("error should mention version: %v", err)
	}
}

func TestValidate_UnsupportedVersion(t *testing.T) {
	cfg := validConfig(t)
	cfg.Version = "99"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for unsupported version")
	}
	if !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("error should mention unsupported: %v", err)
	}
}

func TestValidate_EmptyModules(t *testing.T) {
	cfg := &Config{Version: "1", Modules: map[string]yaml.Node{}}
	cfg.ApplyDefaults()
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for empty modules")
	}
	if !strings.Contains(err.Error(), "at least one") {
		t.Errorf("error should mention at least one module: %v", err)
	}
	if !strings.Contains(err.Error(), "no stt module") {
		t.Errorf("error should mention the missing stt engine: %v", err)
	}
}

func TestValidate_UnknownModule(t *testing.T) {
	cfg := validConfig(t)
	cfg.Modules["unknown.mod"] = yaml.Node{}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for unknown module")
	}
	if !strings.Contains(err.Error(), "unknown.mod") {
		t.Errorf("error should mention module ID: %v", err)
	}
}

func TestValidate_DuplicateEngine(t *testing.T) {
	cfg := validConfig(t)
	extra := "tts.second" + t.Name()
	registerStub(t, extra)
	cfg.Modules[extra] = yaml.Node{}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for two tts modules")
	}
	if !strings.Contains(err.Error(), "only one tts module") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_FieldRules(t *testing.T) {
	cfg := validConfig(t)
	cfg.Pipeline.MaxPairs = -1
	cfg.Pipeline.OnSynthesisFailure = "ignore"
	cfg.Pipeline.Timeouts.Complete = -time.Second
	cfg.Telemetry.Tracing.SampleRatio = 2

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected field validation errors")
	}
	for _, want := range []string{"max_pairs", "on_synthesis_failure", "timeouts.complete", "tracing.sample_ratio"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestValidate_BadSchedule(t *testing.T) {
	cfg := validConfig(t)
	cfg.Artifacts.SweepSchedule = "every minute"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
	if !strings.Contains(err.Error(), "artifacts.sweep_schedule") {
		t.Errorf("unexpected error: %v", err)
	}
}
