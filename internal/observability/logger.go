package observability

import (
	"io"
	"os"
	"time"

	"github.com/danmuck/minechat/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger builds the process logger on stderr so stdout stays reserved
// for chat output, and installs it as the zerolog global.
func InitLogger(app string) zerolog.Logger {
	logger := NewLogger(os.Stderr, app)
	log.Logger = logger
	return logger
}

func NewLogger(w io.Writer, app string) zerolog.Logger {
	cfg := logging.Current()
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    cfg.NoColor,
	}
	ctx := zerolog.New(output).Level(cfg.Level).With().Str("app", app)
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}
