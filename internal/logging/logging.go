// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the log level and destinations.
type Config struct {
	Level      string `yaml:"level"`
	IncludeSrc bool   `yaml:"include_src"`
	ToFile     bool   `yaml:"to_file"`
	Filename   string `yaml:"filename"`
	// MaxSize is in megabytes and MaxAge in days.
	MaxSize    int  `yaml:"max_size"`
	MaxAge     int  `yaml:"max_age"`
	MaxBackups int  `yaml:"max_backups"`
	Compress   bool `yaml:"compress"`
}

// New creates a JSON logger writing to w, and additionally to a rotated file
// if cfg asks for one.
func New(cfg Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: cfg.IncludeSrc,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key != slog.SourceKey {
				return a
			}
			if src, _ := a.Value.Any().(*slog.Source); src != nil {
				src.File = filepath.Base(src.File)
				src.Function = strings.TrimPrefix(src.Function, "github.com/zephyrtronium/calcpipe/")
			}
			return a
		},
	}
	if cfg.ToFile && cfg.Filename != "" {
		w = io.MultiWriter(w, &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxAge:     cfg.MaxAge,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		})
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Init creates a logger writing to stdout, makes it the default, and returns
// it.
func Init(cfg Config) *slog.Logger {
	l := New(cfg, os.Stdout)
	slog.SetDefault(l)
	return l
}

// ParseLevel converts debug, info, warn, or error to a level. Anything else is
// info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
