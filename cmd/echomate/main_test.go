package main

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/kardianos/service"

	"github.com/echomate/echomate/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRenderConfig_Validates(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*initAnswers)
		want   []string
	}{
		{
			name: "defaults",
			want: []string{"audio.native", "gateway.http", "memory.sqlite", "provider.openai_compatible", "stt.openai_compatible", "tts.command"},
		},
		{
			name: "ffmpeg and speech endpoint",
			modify: func(a *initAnswers) {
				a.Normalizer = "ffmpeg"
				a.TTSEngine = "openai_compatible"
				a.History = false
				a.Metrics = true
			},
			want: []string{"audio.ffmpeg", "gateway.http", "provider.openai_compatible", "stt.openai_compatible", "tts.openai_compatible"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := defaultAnswers()
			if tt.modify != nil {
				tt.modify(&a)
			}
			raw, err := renderConfig(a)
			if err != nil {
				t.Fatalf("renderConfig: %v", err)
			}
			cfg, err := config.Parse(raw)
			if err != nil {
				t.Fatalf("Parse: %v\n%s", err, raw)
			}
			if err := config.Validate(cfg); err != nil {
				t.Fatalf("Validate: %v\n%s", err, raw)
			}
			ids := config.Resolve(cfg)
			slices.Sort(ids)
			if !slices.Equal(ids, tt.want) {
				t.Errorf("modules = %v, want %v", ids, tt.want)
			}
			if cfg.Telemetry.Metrics != a.Metrics {
				t.Errorf("metrics = %v, want %v", cfg.Telemetry.Metrics, a.Metrics)
			}
			if cfg.Pipeline.Voice != a.Voice {
				t.Errorf("voice = %q", cfg.Pipeline.Voice)
			}
		})
	}
}

func TestRenderConfig_APIKeyEnv(t *testing.T) {
	a := defaultAnswers()
	a.APIKeyEnv = "LLM_API_KEY"
	raw, err := renderConfig(a)
	if err != nil {
		t.Fatalf("renderConfig: %v", err)
	}
	if n := strings.Count(string(raw), "api_key_env: LLM_API_KEY"); n != 2 {
		t.Errorf("api_key_env appears %d times, want 2 (stt and provider):\n%s", n, raw)
	}
}

func TestRenderConfig_UnknownChoices(t *testing.T) {
	a := defaultAnswers()
	a.TTSEngine = "espeak"
	if _, err := renderConfig(a); err == nil {
		t.Error("expected error for unknown tts engine")
	}

	a = defaultAnswers()
	a.Normalizer = "sox"
	if _, err := renderConfig(a); err == nil {
		t.Error("expected error for unknown normalizer")
	}
}

func TestInitCmd_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "echomate.yaml")

	out, err := execute(t, "init", "--defaults", "--output", path)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("output = %q", out)
	}
	if _, err := config.Load(path); err != nil {
		t.Fatalf("written config does not load: %v", err)
	}

	if _, err := execute(t, "init", "--defaults", "--output", path); err == nil {
		t.Error("expected refusal to overwrite")
	}
	if _, err := execute(t, "init", "--defaults", "--force", "--output", path); err != nil {
		t.Errorf("init --force: %v", err)
	}
}

func TestConfigSchemaCmd(t *testing.T) {
	out, err := execute(t, "config", "schema")
	if err != nil {
		t.Fatalf("config schema: %v", err)
	}
	for _, want := range []string{"echomate configuration", "system_prompt", "exit_phrases"} {
		if !strings.Contains(out, want) {
			t.Errorf("schema missing %q", want)
		}
	}
}

func TestConfigCheckCmd(t *testing.T) {
	t.Setenv("ECHOMATE_DATA_DIR", t.TempDir())
	t.Setenv("ECHOMATE_CONFIG", "")
	path := filepath.Join(t.TempDir(), "echomate.yaml")
	if _, err := execute(t, "init", "--defaults", "--output", path); err != nil {
		t.Fatalf("init: %v", err)
	}

	out, err := execute(t, "config", "check", path)
	if err != nil {
		t.Fatalf("config check: %v", err)
	}
	for _, want := range []string{"Configuration OK", "stt.openai_compatible", "tts.command", "audio.native"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigCheckCmd_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("version: \"2\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := execute(t, "config", "check", path); err == nil {
		t.Error("expected validation error")
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	for _, want := range []string{"echomate dev", "gateway.http", "tts.command"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestServiceConfig(t *testing.T) {
	cfg := serviceConfig("/etc/echomate/echomate.yaml")
	want := []string{"service", "run", "--config", "/etc/echomate/echomate.yaml"}
	if !slices.Equal(cfg.Arguments, want) {
		t.Errorf("Arguments = %v, want %v", cfg.Arguments, want)
	}
	if got := serviceConfig("").Arguments; !slices.Equal(got, []string{"service", "run"}) {
		t.Errorf("Arguments = %v", got)
	}
}

func TestStatusText(t *testing.T) {
	if statusText(service.StatusRunning) != "running" || statusText(service.StatusStopped) != "stopped" {
		t.Error("unexpected status text")
	}
	if statusText(service.StatusUnknown) != "unknown" {
		t.Error("unexpected status text for unknown")
	}
}
