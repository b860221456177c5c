package security

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// DefaultMaxOutput bounds what RunCommand keeps of a child's stdout.
const DefaultMaxOutput = 64 << 20

// stderrTail is how much of stderr is kept for error messages.
const stderrTail = 2048

// ErrOutputTooLarge is returned when a child writes more than MaxOutput.
var ErrOutputTooLarge = errors.New("command output too large")

// Command describes one engine subprocess (ffmpeg, edge-tts).
type Command struct {
	Path  string
	Args  []string
	Stdin []byte

	// Credentials, when set, is used to build a sanitized environment.
	// The child never inherits API keys either way.
	Credentials *CredentialStore

	// Dir is the working directory. Empty uses the current one.
	Dir string

	// MaxOutput bounds stdout. Zero selects DefaultMaxOutput.
	MaxOutput int64

	// Redactor scrubs the stderr excerpt put in errors.
	Redactor *Redactor
}

// CommandError reports a child that exited unsuccessfully.
type CommandError struct {
	Path   string
	Err    error
	Stderr string
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Path, e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error { return e.Err }

// RunCommand runs c and returns its stdout. The child is killed when ctx
// ends; in that case the context error is returned.
func RunCommand(ctx context.Context, c Command) ([]byte, error) {
	limit := c.MaxOutput
	if limit <= 0 {
		limit = DefaultMaxOutput
	}

	//nolint:gosec // Path and Args come from operator configuration.
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Env = SanitizedEnv(c.Credentials)
	cmd.Dir = c.Dir
	cmd.WaitDelay = 2 * time.Second
	if c.Stdin != nil {
		cmd.Stdin = bytes.NewReader(c.Stdin)
	}

	stdout := &limitedBuffer{limit: limit}
	stderr := &limitedBuffer{limit: stderrTail, tail: true}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if stdout.overflow {
		return nil, fmt.Errorf("%s: %w (limit %d bytes)", c.Path, ErrOutputTooLarge, limit)
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if c.Redactor != nil {
			msg = c.Redactor.Redact(msg)
		}
		return nil, &CommandError{Path: c.Path, Err: err, Stderr: msg}
	}
	return stdout.Bytes(), nil
}

// limitedBuffer keeps at most limit bytes. In tail mode it keeps the last
// limit bytes instead of failing.
type limitedBuffer struct {
	bytes.Buffer
	limit    int64
	tail     bool
	overflow bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if b.tail {
		b.Buffer.Write(p)
		if over := int64(b.Len()) - b.limit; over > 0 {
			b.Next(int(over))
		}
		return n, nil
	}
	if int64(b.Len()+n) > b.limit {
		b.overflow = true
		return 0, io.ErrShortWrite
	}
	return b.Buffer.Write(p)
}
