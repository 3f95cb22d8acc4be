// Package toolchain invokes the external tools a scaffold run depends on:
// the OS package manager, the Python interpreter and pip, and the framework's
// project CLI. Every invocation carries an explicit working directory and
// environment; nothing relies on an activated shell.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/f9-o/launchpad/internal/core/logger"
	"github.com/f9-o/launchpad/pkg/errs"
)

// outputTail is how many bytes of stderr are kept in a failure report.
const outputTail = 2048

// Command is one external tool invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env is merged over the runner's base environment; KEY=VALUE entries
	// replace base entries with the same key.
	Env []string
}

// String renders the command line for logs and dry runs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner executes commands. Run blocks until the tool exits and returns its
// stdout.
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// ExecRunner
// ─────────────────────────────────────────────────────────────────────────────

// ExecRunner runs commands as child processes via os/exec.
type ExecRunner struct {
	base []string
	log  *logger.Logger
}

// NewExecRunner builds a runner whose children see base plus each command's Env.
func NewExecRunner(base []string, log *logger.Logger) *ExecRunner {
	return &ExecRunner{base: append([]string(nil), base...), log: log}
}

// Run starts cmd and waits for it. There is no timeout; cancelling ctx kills
// the child.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...) //nolint:gosec
	c.Dir = cmd.Dir
	c.Env = MergeEnv(r.base, cmd.Env)

	var stdout bytes.Buffer
	stderr := &tailBuffer{max: outputTail}
	logW := &lineLogger{log: r.log, tool: cmd.Name}
	c.Stdout = io.MultiWriter(&stdout, logW)
	c.Stderr = io.MultiWriter(stderr, logW)

	r.log.Info("exec", "cmd", cmd.String(), "dir", cmd.Dir)
	err := c.Run()
	logW.Flush()
	if err == nil {
		return stdout.Bytes(), nil
	}

	if errors.Is(err, exec.ErrNotFound) {
		return nil, errs.Wrap(err, errs.ErrToolNotFound, "toolchain.run").
			WithResource(cmd.Name).
			WithAdvice(fmt.Sprintf("install %s or fix PATH, then run `launchpad doctor`", cmd.Name))
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cause := fmt.Errorf("%s exited with status %d: %s", cmd.String(), exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		return stdout.Bytes(), errs.New(errs.ErrToolFailed, "toolchain.run", cause).WithResource(cmd.Name)
	}
	return stdout.Bytes(), errs.Wrap(err, errs.ErrToolFailed, "toolchain.run").WithResource(cmd.Name)
}

// ─────────────────────────────────────────────────────────────────────────────
// DryRunRunner
// ─────────────────────────────────────────────────────────────────────────────

// DryRunRunner records commands without executing anything.
type DryRunRunner struct {
	mu       sync.Mutex
	commands []Command
	log      *logger.Logger
}

// NewDryRunRunner returns an empty recorder.
func NewDryRunRunner(log *logger.Logger) *DryRunRunner {
	return &DryRunRunner{log: log}
}

// Run records cmd and returns no output.
func (r *DryRunRunner) Run(_ context.Context, cmd Command) ([]byte, error) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()
	r.log.Info("dry-run", "cmd", cmd.String(), "dir", cmd.Dir)
	return nil, nil
}

// Commands returns a copy of everything recorded so far.
func (r *DryRunRunner) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}

// ─────────────────────────────────────────────────────────────────────────────
// Environment helpers
// ─────────────────────────────────────────────────────────────────────────────

// MergeEnv overlays KEY=VALUE entries from over onto base. Entries of the form
// "KEY=" with an empty value are kept; "-KEY" removes KEY entirely.
func MergeEnv(base, over []string) []string {
	order := make([]string, 0, len(base)+len(over))
	vals := make(map[string]string, len(base)+len(over))
	set := func(kv string) {
		if strings.HasPrefix(kv, "-") {
			delete(vals, kv[1:])
			return
		}
		k, _, _ := strings.Cut(kv, "=")
		if _, seen := vals[k]; !seen {
			order = append(order, k)
		}
		vals[k] = kv
	}
	for _, kv := range base {
		set(kv)
	}
	for _, kv := range over {
		set(kv)
	}

	out := make([]string, 0, len(order))
	for _, k := range order {
		if kv, ok := vals[k]; ok {
			out = append(out, kv)
		}
	}
	return out
}

// LookupEnv returns the value of key in an explicit environment slice.
func LookupEnv(env []string, key string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		if k, v, ok := strings.Cut(env[i], "="); ok && k == key {
			return v, true
		}
	}
	return "", false
}

// tailBuffer keeps only the last max bytes written to it.
type tailBuffer struct {
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }

// lineLogger forwards complete output lines to the debug log.
type lineLogger struct {
	log     *logger.Logger
	tool    string
	mu      sync.Mutex
	pending []byte
}

func (w *lineLogger) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		w.log.Debug(w.tool, "out", string(bytes.TrimRight(w.pending[:i], "\r")))
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}

// Flush logs any trailing partial line.
func (w *lineLogger) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) > 0 {
		w.log.Debug(w.tool, "out", string(w.pending))
		w.pending = nil
	}
}
