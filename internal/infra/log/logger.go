package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger создаёт настроенный zerolog.
func NewLogger(appEnv string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	level := zerolog.InfoLevel
	if appEnv == "dev" {
		level = zerolog.DebugLevel
	}
	return zerolog.New(os.Stdout).With().Timestamp().Str("app", "stock-pulse").Logger().Level(level)
}
