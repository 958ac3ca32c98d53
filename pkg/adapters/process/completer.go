// Package process implements ports.Completer by running a local command.
//
// The prompt is written to the command's stdin and its trimmed stdout is the reply,
// so any local model runner can serve as drafter or evaluator.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/quill/internal/logging"
	"github.com/aretw0/quill/pkg/ports"
)

// waitDelay bounds how long output pipes are drained after the command is killed.
const waitDelay = time.Second

// ErrNoCommand is returned when Config.Command is empty.
var ErrNoCommand = errors.New("process completer: no command configured")

// Config describes the command to run.
type Config struct {
	Command string
	Args    []string
	// Env is added to the inherited environment as QUILL_<KEY>=value.
	Env map[string]string
	Dir string
	// Timeout bounds one completion. Zero leaves it to the caller's context.
	Timeout time.Duration
}

// Completer runs Config.Command once per completion.
type Completer struct {
	cfg    Config
	path   string
	logger *slog.Logger
}

var _ ports.Completer = (*Completer)(nil)

// Option configures the Completer.
type Option func(*Completer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Completer) {
		c.logger = logger
	}
}

// New resolves the command on PATH and returns a Completer for it.
func New(cfg Config, opts ...Option) (*Completer, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, ErrNoCommand
	}
	path, err := exec.LookPath(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("process completer: %w", err)
	}
	c := &Completer{cfg: cfg, path: path, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Complete implements ports.Completer.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.path, c.cfg.Args...)
	cmd.Dir = c.cfg.Dir
	cmd.WaitDelay = waitDelay
	cmd.Stdin = strings.NewReader(prompt)

	env := []string{"QUILL_PROMPT_BYTES=" + strconv.Itoa(len(prompt))}
	for k, v := range c.cfg.Env {
		env = append(env, fmt.Sprintf("QUILL_%s=%s", strings.ToUpper(k), v))
	}
	cmd.Env = append(cmd.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	c.logger.Debug("Process completion", "command", c.cfg.Command,
		"duration", time.Since(start), "prompt_bytes", len(prompt), "reply_bytes", stdout.Len())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%s failed: %w: %s", c.cfg.Command, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
