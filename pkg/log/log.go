package log

import (
	"log/slog"
	"os"
)

// ParseLevel accepts the slog level names in any case. Unknown names log at info.
func ParseLevel(logLevel string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return slog.LevelInfo
	}

	return level
}

// Setup installs the default logger for a folio binary. Every record carries
// the service name.
func Setup(service, logLevel string) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(logLevel),
	})

	slog.SetDefault(slog.New(handler).With("service", service))
}

func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
