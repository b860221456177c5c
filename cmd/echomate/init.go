package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/echomate/echomate/internal/config"
)

// initAnswers collects what the interactive setup asks for.
type initAnswers struct {
	Bind string

	STTBaseURL string
	STTModel   string

	ProviderBaseURL string
	ProviderModel   string
	APIKeyEnv       string

	// TTSEngine is "command" (edge-tts) or "openai_compatible".
	TTSEngine  string
	TTSBaseURL string
	Voice      string

	// Normalizer is "native" or "ffmpeg".
	Normalizer string

	History bool
	Metrics bool
}

func defaultAnswers() initAnswers {
	return initAnswers{
		Bind:            ":5000",
		STTBaseURL:      "http://127.0.0.1:8000/v1",
		STTModel:        "whisper-1",
		ProviderBaseURL: "http://127.0.0.1:11434/v1",
		ProviderModel:   "qwen2.5:7b",
		TTSEngine:       "command",
		TTSBaseURL:      "http://127.0.0.1:8880/v1",
		Voice:           config.DefaultVoice,
		Normalizer:      "native",
		History:         true,
	}
}

func initCmd() *cobra.Command {
	var (
		output   string
		force    bool
		defaults bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				output = defaultConfigPath()
			}
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			answers := defaultAnswers()
			if !defaults {
				if err := askAnswers(&answers); err != nil {
					return err
				}
			}

			raw, err := renderConfig(answers)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(output, raw, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Where to write the file (default: user config dir)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().BoolVar(&defaults, "defaults", false, "Skip the questions and use defaults")
	return cmd
}

func askAnswers(a *initAnswers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen address").
				Description("Where desk robots reach the /chat endpoint.").
				Value(&a.Bind),
			huh.NewSelect[string]().
				Title("Audio normalizer").
				Options(
					huh.NewOption("Built-in (WAV, MP3)", "native"),
					huh.NewOption("ffmpeg (any format)", "ffmpeg"),
				).
				Value(&a.Normalizer),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Speech recognition endpoint").
				Description("An OpenAI-compatible /audio/transcriptions server.").
				Validate(validateURL).
				Value(&a.STTBaseURL),
			huh.NewInput().
				Title("Speech recognition model").
				Value(&a.STTModel),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Chat completion endpoint").
				Validate(validateURL).
				Value(&a.ProviderBaseURL),
			huh.NewInput().
				Title("Chat model").
				Validate(required("model")).
				Value(&a.ProviderModel),
			huh.NewInput().
				Title("API key environment variable").
				Description("Leave empty for local servers without auth.").
				Value(&a.APIKeyEnv),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Speech synthesis").
				Options(
					huh.NewOption("edge-tts command", "command"),
					huh.NewOption("OpenAI-compatible /audio/speech", "openai_compatible"),
				).
				Value(&a.TTSEngine),
			huh.NewInput().
				Title("Voice").
				Value(&a.Voice),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Speech synthesis endpoint").
				Validate(validateURL).
				Value(&a.TTSBaseURL),
		).WithHideFunc(func() bool { return a.TTSEngine != "openai_compatible" }),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Keep conversation history across restarts?").
				Value(&a.History),
			huh.NewConfirm().
				Title("Expose Prometheus metrics?").
				Value(&a.Metrics),
		),
	)
	return form.Run()
}

func validateURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("enter an http(s) URL")
	}
	return nil
}

func required(what string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

type initFile struct {
	Version   string         `yaml:"version"`
	Pipeline  initPipeline   `yaml:"pipeline"`
	Telemetry initTelemetry  `yaml:"telemetry,omitempty"`
	Modules   map[string]any `yaml:"modules"`
}

type initPipeline struct {
	Voice string `yaml:"voice"`
}

type initTelemetry struct {
	Metrics bool `yaml:"metrics,omitempty"`
}

// renderConfig turns the answers into a config file. The result parses and
// validates with the config package.
func renderConfig(a initAnswers) ([]byte, error) {
	withKey := func(m map[string]any) map[string]any {
		if a.APIKeyEnv != "" {
			m["api_key_env"] = a.APIKeyEnv
		}
		return m
	}

	modules := map[string]any{
		"gateway.http": map[string]any{"bind": a.Bind},
		"stt.openai_compatible": withKey(map[string]any{
			"base_url": a.STTBaseURL,
			"model":    a.STTModel,
		}),
		"provider.openai_compatible": withKey(map[string]any{
			"base_url": a.ProviderBaseURL,
			"model":    a.ProviderModel,
		}),
	}

	switch a.TTSEngine {
	case "command":
		modules["tts.command"] = map[string]any{"command": "edge-tts"}
	case "openai_compatible":
		modules["tts.openai_compatible"] = withKey(map[string]any{
			"base_url": a.TTSBaseURL,
			"voice":    a.Voice,
		})
	default:
		return nil, fmt.Errorf("unknown speech synthesis engine %q", a.TTSEngine)
	}

	switch a.Normalizer {
	case "native":
		modules["audio.native"] = map[string]any{}
	case "ffmpeg":
		modules["audio.ffmpeg"] = map[string]any{}
	default:
		return nil, fmt.Errorf("unknown audio normalizer %q", a.Normalizer)
	}

	if a.History {
		modules["memory.sqlite"] = map[string]any{"retention": "720h"}
	}

	raw, err := yaml.Marshal(initFile{
		Version:   "1",
		Pipeline:  initPipeline{Voice: a.Voice},
		Telemetry: initTelemetry{Metrics: a.Metrics},
		Modules:   modules,
	})
	if err != nil {
		return nil, err
	}
	return append([]byte("# Generated by echomate init.\n"), raw...), nil
}

// defaultConfigPath is the first location app.ResolveConfigPath searches.
func defaultConfigPath() string {
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		return filepath.Join(xdg, "echomate", "echomate.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "echomate", "echomate.yaml")
	}
	return "echomate.yaml"
}
