package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/i474232898/weatherservice/internal/config"
)

// ComponentKey tags every line with the subsystem that wrote it.
const ComponentKey = "component"

// New returns a colored text logger in dev and a JSON logger otherwise,
// writing to w (stdout when nil). The result also becomes slog's default so
// packages that fall back to slog.Default share the same handler.
func New(w io.Writer, cfg *config.AppConfig, version, appName string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}

	var logger *slog.Logger
	if cfg.AppEnv == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  cfg.LogLevel <= slog.LevelDebug,
			TimeFormat: time.TimeOnly,
		})
		logger = slog.New(h).With("app", appName)
	} else {
		h := slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       cfg.LogLevel,
			ReplaceAttr: utcTime,
		})
		logger = slog.New(h).With(
			"app", appName,
			"version", version,
			"env", cfg.AppEnv,
		)
	}
	slog.SetDefault(logger)
	return logger
}

// Component returns l tagged with name. A nil l uses slog.Default.
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With(ComponentKey, name)
}

// utcTime writes record times in UTC so they line up with stored observations.
func utcTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		a.Value = slog.TimeValue(a.Value.Time().UTC())
	}
	return a
}
