// Package logger builds the zerolog loggers used by the CLI and API server
// and carries them through contexts.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// SessionConfig scopes logging to a single processing session.
type SessionConfig struct {
	// Level is a zerolog level name ("debug", "info", ...). Empty means info.
	Level string

	// Dir is where the session log file is created. Empty disables the file sink.
	Dir string

	// Quiet disables the console writer.
	Quiet bool
}

// New returns a console logger on stdout. It is used before configuration is
// loaded and as the fallback when a context carries no logger.
func New() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Caller().Logger()
}

// NewSession creates the logger for one session. It writes to stderr unless
// Quiet, and to <Dir>/session_<timestamp>.log when Dir is set. The closer
// releases the log file.
func NewSession(cfg SessionConfig) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("NewSession: parse level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	var (
		sinks  []io.Writer
		closer io.Closer = nopCloser{}
	)
	if !cfg.Quiet {
		sinks = append(sinks, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if cfg.Dir != "" {
		f, err := openSessionFile(cfg.Dir, time.Now())
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("NewSession: %w", err)
		}
		sinks = append(sinks, f)
		closer = f
	}
	if len(sinks) == 0 {
		return zerolog.Nop(), closer, nil
	}

	return zerolog.New(zerolog.MultiLevelWriter(sinks...)).
		Level(level).
		With().Timestamp().Caller().Logger(), closer, nil
}

func openSessionFile(dir string, now time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	name := filepath.Join(dir, "session_"+now.Format("20060102_150405")+".log")
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// WithContext returns a copy of ctx carrying log.
func WithContext(ctx context.Context, log zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the logger stored by WithContext, or New() if none.
func FromContext(ctx context.Context) zerolog.Logger {
	if log, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return log
	}
	return New()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
