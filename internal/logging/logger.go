package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"shotdetect/internal/config"
)

// LogFileName is the JSON log written under paths.log_dir.
const LogFileName = "shotdetect.log"

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string // "console" or "json"
	// Console receives human output. Nil means stderr.
	Console io.Writer
	// FilePath receives a JSON copy of every record when set.
	FilePath    string
	Development bool
}

// New builds a logger writing to opts.Console and, optionally, a JSON file.
func New(opts Options) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))
	addSource := opts.Development || level.Level() <= slog.LevelDebug

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	var handler slog.Handler
	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "", "console":
		handler = newPrettyHandler(console, level, addSource)
	case "json":
		handler = newJSONHandler(console, level, addSource)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	if path := strings.TrimSpace(opts.FilePath); path != "" {
		file, err := openLogFile(path)
		if err != nil {
			return nil, err
		}
		handler = TeeHandler(handler, newJSONHandler(file, level, addSource))
	}
	return slog.New(handler), nil
}

// NewFromConfig creates the process logger. Console output goes to stderr so
// command results on stdout stay machine-readable.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{})
	}
	opts := Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format}
	if cfg.Paths.LogDir != "" {
		opts.FilePath = filepath.Join(cfg.Paths.LogDir, LogFileName)
	}
	return New(opts)
}

func parseLevel(level string) slog.Level {
	var parsed slog.Level
	switch l := strings.ToLower(strings.TrimSpace(level)); l {
	case "warning":
		return slog.LevelWarn
	default:
		if err := parsed.UnmarshalText([]byte(l)); err != nil {
			return slog.LevelInfo
		}
		return parsed
	}
}

// openLogFile opens path for appending. The handle lives for the process.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}
