package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ExpandsAndDefaults(t *testing.T) {
	t.Setenv("ECHOMATE_TEST_KEY", "sk-test")

	path := filepath.Join(t.TempDir(), "echomate.yaml")
	content := `version: "1"
pipeline:
  max_pairs: 5
  timeouts:
    complete: 90s
modules:
  provider.openai_compatible:
    api_key: ${ECHOMATE_TEST_KEY}
    model: ${ECHOMATE_TEST_MODEL:-qwen-plus}
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Pipeline.MaxPairs != 5 {
		t.Errorf("MaxPairs = %d, want 5", cfg.Pipeline.MaxPairs)
	}
	if cfg.Pipeline.Timeouts.Complete != 90*time.Second {
		t.Errorf("Timeouts.Complete = %v, want 90s", cfg.Pipeline.Timeouts.Complete)
	}
	if cfg.Pipeline.Timeouts.Transcribe != 30*time.Second {
		t.Errorf("Timeouts.Transcribe default = %v, want 30s", cfg.Pipeline.Timeouts.Transcribe)
	}
	if cfg.Pipeline.SampleRate != DefaultSampleRate {
		t.Errorf("SampleRate = %d, want %d", cfg.Pipeline.SampleRate, DefaultSampleRate)
	}
	if len(cfg.Intent.ExitPhrases) == 0 {
		t.Error("expected default exit phrases")
	}

	node, ok := cfg.Modules["provider.openai_compatible"]
	if !ok {
		t.Fatal("missing module section")
	}
	var mod struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	}
	if err := node.Decode(&mod); err != nil {
		t.Fatal(err)
	}
	if mod.APIKey != "sk-test" {
		t.Errorf("api_key = %q, want sk-test", mod.APIKey)
	}
	if mod.Model != "qwen-plus" {
		t.Errorf("model = %q, want default qwen-plus", mod.Model)
	}
}

func TestLoad_UnresolvedVariable(t *testing.T) {
	_, err := Parse([]byte("version: \"1\"\nkey: ${ECHOMATE_SURELY_UNSET_VAR}\n"))
	if err == nil {
		t.Fatal("expected error for unresolved variable")
	}
	if !strings.Contains(err.Error(), "ECHOMATE_SURELY_UNSET_VAR") {
		t.Errorf("error should name the variable: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParse_ExplicitEmptyExitPhrases(t *testing.T) {
	cfg, err := Parse([]byte("version: \"1\"\nintent:\n  exit_phrases: []\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Intent.ExitPhrases) != 0 {
		t.Errorf("explicit empty list should disable exit phrases, got %v", cfg.Intent.ExitPhrases)
	}
}

func TestResolve_EnginesFirst(t *testing.T) {
	cfg, err := Parse([]byte(`version: "1"
modules:
  gateway.http: {}
  memory.sqlite: {}
  tts.command: {}
  stt.openai_compatible: {}
  provider.openai_compatible: {}
  audio.ffmpeg: {}
`))
	if err != nil {
		t.Fatal(err)
	}

	got := Resolve(cfg)
	want := []string{
		"audio.ffmpeg",
		"stt.openai_compatible",
		"provider.openai_compatible",
		"tts.command",
		"memory.sqlite",
		"gateway.http",
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Resolve = %v, want %v", got, want)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("ECHOMATE_LOG_LEVEL", "debug")
	t.Setenv("ECHOMATE_LOG_FORMAT", "json")
	t.Setenv("ECHOMATE_DATA_DIR", "/var/lib/echomate")

	e, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if e.DataDir != "/var/lib/echomate" {
		t.Errorf("DataDir = %q", e.DataDir)
	}
	if e.Level().String() != "DEBUG" {
		t.Errorf("Level = %v, want DEBUG", e.Level())
	}
}

func TestLoadEnv_BadFormat(t *testing.T) {
	t.Setenv("ECHOMATE_LOG_FORMAT", "xml")
	if _, err := LoadEnv(); err == nil {
		t.Fatal("expected error for unknown log format")
	}
}

func TestJSONSchema(t *testing.T) {
	out, err := JSONSchema()
	if err != nil {
		t.Fatalf("JSONSchema: %v", err)
	}
	for _, want := range []string{`"max_pairs"`, `"exit_phrases"`, `"modules"`, `"on_synthesis_failure"`} {
		if !strings.Contains(string(out), want) {
			t.Errorf("schema missing %s", want)
		}
	}
}
