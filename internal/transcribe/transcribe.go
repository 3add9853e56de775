// Package transcribe obtains a text transcript for a media URL by running a
// configured external command.
package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds one transcription run.
const DefaultTimeout = 10 * time.Minute

// ErrNotConfigured is returned when no transcription command is set.
var ErrNotConfigured = errors.New("no transcribe command configured")

// Command runs argv with the URL appended and reads the transcript from
// stdout.
type Command struct {
	argv    []string
	timeout time.Duration
	logger  *zap.Logger
}

// New builds a transcriber for argv. An empty argv yields a transcriber that
// always fails with ErrNotConfigured.
func New(argv []string, timeout time.Duration, logger *zap.Logger) *Command {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Command{argv: append([]string(nil), argv...), timeout: timeout, logger: logger}
}

// Transcribe returns the transcript of url.
func (c *Command) Transcribe(ctx context.Context, url string) (string, error) {
	if len(c.argv) == 0 {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := append(append([]string(nil), c.argv[1:]...), url)
	cmd := exec.CommandContext(ctx, c.argv[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second

	line := commandLine(append([]string{c.argv[0]}, args...))
	start := time.Now()
	err := cmd.Run()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("transcribe %s: timed out after %s", url, c.timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("transcribe %s: %s: %s", url, line, msg)
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return "", fmt.Errorf("transcribe %s: command produced no output", url)
	}
	c.logger.Info("transcribed",
		zap.String("url", url),
		zap.String("command", line),
		zap.Int("chars", len(text)),
		zap.Duration("elapsed", time.Since(start)))
	return text + "\n", nil
}

// commandLine renders argv the way a shell user would type it.
func commandLine(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		if a == "" || strings.ContainsAny(a, " \t#[]()|!\"'$&;<>*?") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		parts[i] = a
	}
	return strings.Join(parts, " ")
}
