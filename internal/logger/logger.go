package logger

import (
	"log/slog"
	"os"

	"github.com/lumapay/wallet-ledger/internal/config"
)

// NewLogger builds the process-wide JSON slog.Logger. The level comes from
// config (debug/info/warn/error, case-insensitive); anything unparseable
// falls back to info rather than failing startup.
func NewLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
		// Source locations are only worth the log volume when debugging
		AddSource: level == slog.LevelDebug,
	})

	logger := slog.New(handler)
	logger.Info("logger initialized", "level", level)
	return logger
}
