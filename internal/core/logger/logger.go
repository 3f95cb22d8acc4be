// Package logger provides the structured logging engine for launchpad.
// Uses log/slog with a stderr sink, an optional log file and an append-only
// audit log. Attributes whose key looks sensitive are redacted before any
// handler sees them.
package logger

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/f9-o/launchpad/internal/core/config"
)

// Redacted replaces the value of any sensitive attribute.
const Redacted = "[REDACTED]"

// Logger wraps slog.Logger with launchpad-specific utilities.
type Logger struct {
	*slog.Logger
	auditW io.Writer // append-only audit log writer (nil = disabled)
}

// Options configures Init.
type Options struct {
	Level   string // debug | info | warn | error
	Format  string // text | json
	LogFile string // optional file sink
	Home    string // launchpad home; audit.log lives here when non-empty
	Debug   bool   // forces debug level and source locations
}

// Init builds the process logger and installs it as the slog default.
func Init(opts Options) (*Logger, error) {
	writers := []io.Writer{os.Stderr}

	if opts.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.LogFile), 0o750); err == nil {
			f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
			if err == nil {
				writers = append(writers, f)
			}
		}
	}

	l := New(io.MultiWriter(writers...), opts)
	slog.SetDefault(l.Logger)

	if opts.Home != "" {
		auditPath := filepath.Join(opts.Home, "audit.log")
		if af, err := os.OpenFile(auditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640); err == nil {
			l.auditW = af
		}
	}
	return l, nil
}

// New builds a Logger writing to w without touching the filesystem.
func New(w io.Writer, opts Options) *Logger {
	lvl := parseLevel(opts.Level)
	if opts.Debug {
		lvl = slog.LevelDebug
	}

	hopts := &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   opts.Debug,
		ReplaceAttr: redact,
	}
	var handler slog.Handler
	if opts.Format == "json" {
		handler = slog.NewJSONHandler(w, hopts)
	} else {
		handler = slog.NewTextHandler(w, hopts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// Discard returns a Logger that drops everything; used by tests.
func Discard() *Logger {
	return New(io.Discard, Options{Level: "error"})
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if config.IsSensitiveKey(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// ─────────────────────────────────────────────────────────────────────────────
// Audit logging
// ─────────────────────────────────────────────────────────────────────────────

// AuditEntry represents a single audit log event.
type AuditEntry struct {
	Timestamp time.Time `json:"ts"`
	Op        string    `json:"op"`
	User      string    `json:"user"`
	RunID     string    `json:"run_id,omitempty"`
	Target    string    `json:"target,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Result    string    `json:"result"` // success | failure
}

// Audit writes an append-only audit log entry.
func (l *Logger) Audit(entry AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.Timestamp = entry.Timestamp.UTC()
	l.Info("audit",
		"op", entry.Op,
		"run", entry.RunID,
		"target", entry.Target,
		"stage", entry.Stage,
		"result", entry.Result,
	)
	if l.auditW == nil {
		return
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_, _ = l.auditW.Write(append(line, '\n'))
}

// SetAuditWriter redirects audit lines; nil disables the audit sink.
func (l *Logger) SetAuditWriter(w io.Writer) {
	l.auditW = w
}
