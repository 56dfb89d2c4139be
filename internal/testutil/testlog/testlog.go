package testlog

import (
	"testing"

	"github.com/danmuck/minechat/internal/logging"
	"github.com/rs/zerolog"
)

// Start configures the test log profile and returns a logger that writes
// through t.Log, so output is attached to the failing test.
func Start(t *testing.T) zerolog.Logger {
	t.Helper()
	logging.ConfigureTests()
	logger := zerolog.New(zerolog.NewTestWriter(t)).With().Str("test", t.Name()).Logger()
	logger.Info().Msg("test start")
	return logger
}
