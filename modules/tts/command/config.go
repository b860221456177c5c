package command

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	moduleID     = "tts.command"
	defaultVoice = "zh-CN-XiaoxiaoNeural"
)

// defaultArgs drive edge-tts. Each {placeholder} is substituted per call;
// an argument whose placeholder expands to nothing is dropped.
var defaultArgs = []string{
	"--voice", "{voice}",
	"--rate={rate}",
	"--pitch={pitch}",
	"--volume={volume}",
	"--text", "{text}",
	"--write-media", "{output}",
}

// Config holds the configuration of the command synthesizer.
type Config struct {
	// Command is the executable, looked up on PATH. Defaults to "edge-tts".
	Command string `yaml:"command"`

	// Args is the argument template. See defaultArgs.
	Args []string `yaml:"args"`

	// Voice is used when the pipeline passes none.
	Voice string `yaml:"voice"`

	// Container is what the command writes, "mp3" by default.
	Container string `yaml:"container"`

	// Timeout bounds one run. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout"`

	// TempDir holds scoped output files. Defaults to the OS temp dir.
	TempDir string `yaml:"temp_dir"`
}

func (c *Config) defaults() {
	if c.Command == "" {
		c.Command = "edge-tts"
	}
	if len(c.Args) == 0 {
		c.Args = slices.Clone(defaultArgs)
	}
	if c.Voice == "" {
		c.Voice = defaultVoice
	}
	if c.Container == "" {
		c.Container = "mp3"
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

func (c *Config) validate() error {
	var errs []error
	if !slices.ContainsFunc(c.Args, func(a string) bool { return strings.Contains(a, "{text}") }) {
		errs = append(errs, fmt.Errorf("%s: args must pass {text}", moduleID))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%s: timeout must not be negative", moduleID))
	}
	return errors.Join(errs...)
}

// writesFile reports whether the template names an output file. Without
// one the audio is read from stdout.
func (c *Config) writesFile() bool {
	return slices.ContainsFunc(c.Args, func(a string) bool { return strings.Contains(a, "{output}") })
}
