package internal

import (
	"io"
	"log/slog"
	"time"
)

const serviceName = "gamersmart"

// NewLogger returns the process logger: JSON in prod so log shippers can
// index request_id and user_id, text otherwise. Every record carries the
// service name. An unknown level falls back to info.
func NewLogger(w io.Writer, env string, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		slog.Default().Warn("unknown log level, using info", "value", level)
		lvl = slog.LevelInfo
	}

	var h slog.Handler
	if env == "prod" {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl, ReplaceAttr: utcTime})
	} else {
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl, AddSource: lvl <= slog.LevelDebug})
	}
	return slog.New(h).With(slog.String("service", serviceName))
}

func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		return slog.String(slog.TimeKey, a.Value.Time().UTC().Format(time.RFC3339Nano))
	}
	return a
}
