package ffmpeg

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/echomate/echomate/internal/audio"
	"gopkg.in/yaml.v3"
)

// fakeFFmpeg writes a script that logs its arguments and echoes its input
// (stdin or the -i file) to stdout as if it were decoded PCM.
func fakeFFmpeg(t *testing.T, body string) (binary, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args")
	if body == "" {
		body = `while [ "$1" != "-i" ]; do shift; done
if [ "$2" = "pipe:0" ]; then cat; else cat "$2"; fi`
	}
	script := "#!/bin/sh\nprintf '%s\\n' \"$@\" > " + argsFile + "\n" + body + "\n"
	binary = filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(binary, []byte(script), 0o700); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return binary, argsFile
}

func newTestNormalizer(cfg Config) *Normalizer {
	cfg.defaults()
	return &Normalizer{config: cfg, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func readArgs(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(b)), "\n")
}

func TestConfigure_Defaults(t *testing.T) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte("temp_input: true\n"), &node); err != nil {
		t.Fatalf("unmarshal yaml: %v", err)
	}

	n := &Normalizer{}
	if err := n.Configure(node.Content[0]); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if n.config.Binary != "ffmpeg" || n.config.Timeout != 30*time.Second || !n.config.TempInput {
		t.Errorf("config = %+v", n.config)
	}
	if err := n.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestBuildArgs(t *testing.T) {
	got := buildArgs("pipe:0", audio.Format{SampleRate: 22050, Channels: 2})
	want := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0", "-vn",
		"-f", "s16le", "-acodec", "pcm_s16le",
		"-ar", "22050", "-ac", "2",
		"pipe:1",
	}
	if !slices.Equal(got, want) {
		t.Fatalf("buildArgs() = %q\nwant %q", got, want)
	}
}

func TestNormalize_Pipe(t *testing.T) {
	bin, argsFile := fakeFFmpeg(t, "")
	n := newTestNormalizer(Config{Binary: bin})

	in := []byte("OggS\x01\x00\x02\x00\x03")
	out, err := n.Normalize(context.Background(), in, audio.Canonical)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !audio.IsCanonicalWAV(out, audio.Canonical) {
		t.Fatal("output is not canonical WAV")
	}
	pcm, err := audio.DecodeWAV(out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(pcm.Samples) != 4 {
		t.Errorf("samples = %d, want 4 (odd trailing byte dropped)", len(pcm.Samples))
	}

	args := readArgs(t, argsFile)
	if !slices.Contains(args, "pipe:0") || !slices.Contains(args, "16000") {
		t.Errorf("args = %q", args)
	}
}

func TestNormalize_TempInput(t *testing.T) {
	bin, argsFile := fakeFFmpeg(t, "")
	tmp := t.TempDir()
	n := newTestNormalizer(Config{Binary: bin, TempInput: true, TempDir: tmp})

	out, err := n.Normalize(context.Background(), []byte("ftypM4A \x00\x00"), audio.Canonical)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(out) != 44+10 {
		t.Errorf("output = %d bytes, want 54", len(out))
	}

	args := readArgs(t, argsFile)
	i := slices.Index(args, "-i")
	if i < 0 || !strings.HasPrefix(args[i+1], tmp) {
		t.Errorf("input arg = %q, want a file under %s", args, tmp)
	}
	entries, _ := os.ReadDir(tmp)
	if len(entries) != 0 {
		t.Errorf("temp dir not cleaned: %d entries", len(entries))
	}
}

func TestNormalize_CanonicalSkipsProcess(t *testing.T) {
	n := newTestNormalizer(Config{Binary: "echomate-no-such-ffmpeg"})
	in := audio.EncodeWAV(audio.PCM{Format: audio.Canonical, Samples: []int16{1, 2, 3}})

	out, err := n.Normalize(context.Background(), in, audio.Canonical)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if string(out) != string(in) {
		t.Fatal("canonical input should pass through untouched")
	}
}

func TestNormalize_Failure(t *testing.T) {
	bin, _ := fakeFFmpeg(t, `echo "pipe:0: Invalid data found when processing input" >&2; exit 1`)
	n := newTestNormalizer(Config{Binary: bin})

	_, err := n.Normalize(context.Background(), []byte("junk"), audio.Canonical)
	if !errors.Is(err, audio.ErrUnsupportedFormat) {
		t.Fatalf("error = %v, want ErrUnsupportedFormat", err)
	}
	if !strings.Contains(err.Error(), "Invalid data") {
		t.Errorf("error should carry stderr, got %v", err)
	}
}

func TestNormalize_NoOutput(t *testing.T) {
	bin, _ := fakeFFmpeg(t, "cat > /dev/null")
	n := newTestNormalizer(Config{Binary: bin})

	_, err := n.Normalize(context.Background(), []byte("junk"), audio.Canonical)
	if !errors.Is(err, audio.ErrEmptyInput) {
		t.Fatalf("error = %v, want ErrEmptyInput", err)
	}
}

func TestNormalize_Timeout(t *testing.T) {
	bin, _ := fakeFFmpeg(t, "sleep 5")
	n := newTestNormalizer(Config{Binary: bin, Timeout: 100 * time.Millisecond})

	_, err := n.Normalize(context.Background(), []byte("junk"), audio.Canonical)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want DeadlineExceeded", err)
	}
}

func TestNormalize_Empty(t *testing.T) {
	n := newTestNormalizer(Config{})
	if _, err := n.Normalize(context.Background(), nil, audio.Canonical); !errors.Is(err, audio.ErrEmptyInput) {
		t.Fatalf("error = %v, want ErrEmptyInput", err)
	}
}

func TestStart_MissingBinary(t *testing.T) {
	n := newTestNormalizer(Config{Binary: "echomate-no-such-ffmpeg"})
	n.logger = slog.Default()
	if err := n.Start(); err == nil {
		t.Fatal("Start should fail without ffmpeg")
	}
}
