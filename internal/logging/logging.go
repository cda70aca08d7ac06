// Package logging provides the slog logger used by the session and export
// layers.
package logging

import (
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Logger tags every line with the component that emitted it.
type Logger struct {
	*slog.Logger

	kind string
	name string
}

// NewHandler returns a tint handler on stderr, colourless unless stderr is
// a terminal.
func NewHandler(level slog.Leveler) slog.Handler {
	if runtime.GOOS == "windows" {
		return tint.NewHandler(colorable.NewColorableStderr(), &tint.Options{Level: level})
	}
	w := os.Stderr
	return tint.NewHandler(w, &tint.Options{
		Level:   level,
		NoColor: !isatty.IsTerminal(w.Fd()) && !isatty.IsCygwinTerminal(w.Fd()),
	})
}

// NewWriterHandler is NewHandler writing to w without colour.
func NewWriterHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return tint.NewHandler(w, &tint.Options{Level: level, NoColor: true})
}

// New wraps base, or a stderr handler at Info when base is nil.
func New(base *slog.Logger, kind, name string) *Logger {
	if base == nil {
		base = slog.New(NewHandler(slog.LevelInfo))
	}
	return &Logger{Logger: base, kind: kind, name: name}
}

// Discard drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps debug, info, warn and error (any case) to a level.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

func (l *Logger) info() slog.Attr {
	return slog.Group("info", slog.String("kind", l.kind), slog.String("name", l.name))
}

func (l *Logger) args(args ...any) []any {
	return append([]any{l.info()}, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.Logger.Debug(msg, l.args(args...)...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.Logger.Info(msg, l.args(args...)...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.Logger.Warn(msg, l.args(args...)...)
}

func (l *Logger) Error(msg string, err error, args ...any) {
	l.Logger.Error(msg, l.args(append([]any{tint.Err(err)}, args...)...)...)
}
