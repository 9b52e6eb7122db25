// Package logger builds the zerolog logger shared across the tunnel: a
// colorized console writer, and an optional rotating log file sink, both
// gated by a configurable level.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultLevel is used when the configuration does not set one.
const DefaultLevel = zerolog.InfoLevel

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

// Config controls where and how verbosely the logger writes.
type Config struct {
	// Level is one of zerolog's level strings (debug, info, warn, error...).
	Level string
	// File, if non-empty, also writes logs to a rotating file at this path.
	File string
}

// New builds a *zerolog.Logger per cfg. Construction never fails: an
// unparsable level falls back to DefaultLevel so a typo in config does not
// prevent the tunnel from starting.
func New(cfg Config) *zerolog.Logger {
	level := DefaultLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: colorable.NewColorableStdout(), TimeFormat: time.RFC3339},
	}
	if cfg.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
		})
	}

	log := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return &log
}

// Fallback returns a bare logger to os.Stderr, used before Config has been
// parsed (e.g. to report a config-loading failure).
func Fallback() *zerolog.Logger {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	return &log
}

// WithComponent returns a child logger tagged with a component field, the
// pattern used throughout to identify which route/peer a log line
// originated from (e.g. logger.WithComponent(log, "route", "web")).
func WithComponent(log *zerolog.Logger, key, value string) zerolog.Logger {
	return log.With().Str(key, value).Logger()
}
