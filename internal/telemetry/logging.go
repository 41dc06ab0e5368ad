// Package telemetry sets up structured logging for the agent.
package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	slogmulti "github.com/samber/slog-multi"
)

// level is shared by every handler so it can be changed at runtime.
var level = new(slog.LevelVar)

// SetLevel changes the minimum level of loggers built by NewLogger.
func SetLevel(name string) {
	level.Set(parseLevel(name))
}

// Level returns the current minimum level.
func Level() slog.Level {
	return level.Level()
}

// NewLogger builds a logger that writes to console (text on a terminal, JSON
// otherwise) and, when file is set, appends JSON lines to that file. The
// returned closer releases the file and is never nil.
func NewLogger(console io.Writer, levelName, file string) (*slog.Logger, io.Closer, error) {
	SetLevel(levelName)
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: redact}

	var handlers []slog.Handler
	if console != nil {
		if isTerminal(console) {
			handlers = append(handlers, slog.NewTextHandler(console, opts))
		} else {
			handlers = append(handlers, slog.NewJSONHandler(console, opts))
		}
	}

	var closer io.Closer = nopCloser{}
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, opts))
		closer = f
	}

	return slog.New(slogmulti.Fanout(handlers...)), closer, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if shouldRedactKey(a.Key) {
		return slog.String(a.Key, "[REDACTED]")
	}
	if a.Value.Kind() == slog.KindString && strings.Contains(strings.ToLower(a.Value.String()), "bearer ") {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}

func shouldRedactKey(key string) bool {
	lower := strings.ToLower(strings.TrimSpace(key))
	if lower == "" {
		return false
	}
	for _, token := range []string{"token", "secret", "password", "authorization", "api_key", "apikey", "bearer"} {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
