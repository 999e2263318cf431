package logging

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"

	"govee-decoder/internal/config"
)

// New builds the process logger. Dev builds get colored tint output; anything
// else logs JSON. The decode CLI passes stderr so stdout stays machine-readable.
func New(w io.Writer, cfg config.Config, version string, appName string) *slog.Logger {
	if version == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  cfg.LogLevel <= slog.LevelDebug,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
	)
}
