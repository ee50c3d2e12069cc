package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/angeloszaimis/typesense-client/config"
)

// New builds the client logger. Production output is JSON, anything else is
// human readable text. A nil writer logs to stderr so command output on
// stdout stays machine readable.
func New(lvl string, addSource bool, environment string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(lvl),
		AddSource: addSource,
	}

	var handler slog.Handler
	if strings.ToLower(environment) == config.EnvProd {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With(
		slog.String("environment", environment),
	)
}

// FromConfig is New with the level and environment taken from cfg.
func FromConfig(cfg *config.Config, w io.Writer) *slog.Logger {
	return New(cfg.Logging.Level, false, cfg.Environment, w)
}

// Discard returns a logger that drops every record. Library code falls back
// to it when the caller did not supply one.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelInfo:
		return slog.LevelInfo
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
