package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"locshare-relay/config"
)

// Setup installs the default slog logger. The returned closer flushes the
// rotated log file, if one was configured.
func Setup(cfg config.LogConfig) io.Closer {
	var w io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     7, // days
		}
		w = io.MultiWriter(os.Stdout, rotator)
		closer = rotator
	}

	slog.SetDefault(New(w, cfg))
	return closer
}

func New(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func ParseLevel(s string) slog.Level {
	switch s {
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

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
