package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"sevenstream/internal/config"
)

// LogFileName is the name of the JSON log written inside the log directory.
const LogFileName = "sevenstream.log"

// Options describes logger construction parameters.
type Options struct {
	Level string
	// Format selects the handler for Writer: "console" or "json".
	Format string
	// Writer receives formatted output. Defaults to os.Stderr so stdout
	// stays free for command output.
	Writer io.Writer
	// FilePath, when set, additionally receives records as JSON.
	FilePath string
	// FileLevel is the minimum level written to FilePath. Empty follows Level.
	FileLevel   string
	Development bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(opts.Level))
	addSource := opts.Development || levelVar.Level() <= slog.LevelDebug

	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	var primary slog.Handler
	switch format {
	case "json":
		primary = newJSONHandler(writer, levelVar, addSource)
	case "console":
		primary = newPrettyHandler(writer, levelVar, addSource)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	if strings.TrimSpace(opts.FilePath) == "" {
		return slog.New(primary), nil
	}
	file, err := openLogFile(opts.FilePath)
	if err != nil {
		return nil, err
	}
	fileLevel := levelVar
	if strings.TrimSpace(opts.FileLevel) != "" {
		fileLevel = new(slog.LevelVar)
		fileLevel.Set(parseLevel(opts.FileLevel))
	}
	fileHandler := newJSONHandler(file, fileLevel, opts.Development || fileLevel.Level() <= slog.LevelDebug)
	return slog.New(newTeeHandler(
		teeBranch{handler: primary, level: levelVar},
		teeBranch{handler: fileHandler, level: fileLevel},
	)), nil
}

// NewFromConfig creates a logger using application config. When a log
// directory is configured, records are also appended to LogFileName there.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}
	opts := Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		FileLevel: cfg.Logging.FileLevel,
	}
	if cfg.Paths.LogDir != "" {
		opts.FilePath = filepath.Join(cfg.Paths.LogDir, LogFileName)
	}
	return New(opts)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func openLogFile(path string) (io.Writer, error) {
	trimmed := strings.TrimSpace(path)
	if dir := filepath.Dir(trimmed); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", trimmed, err)
	}
	return file, nil
}
