// Package listener wires the read-only role: a reconnecting session whose
// stream appends every chat line to the history file.
package listener

import (
	"context"
	"strings"

	"github.com/danmuck/minechat/internal/chatlog"
	"github.com/danmuck/minechat/internal/observability"
	"github.com/danmuck/minechat/internal/protocol/session"
	"github.com/rs/zerolog"
)

const role = "listener"

// Sink persists incoming lines. A history write failure is logged and the
// stream continues.
type Sink struct {
	history *chatlog.History
	log     zerolog.Logger
}

func NewSink(history *chatlog.History, logger zerolog.Logger) *Sink {
	return &Sink{history: history, log: logger}
}

// Stream consumes the session until the transport fails.
func (k *Sink) Stream(ctx context.Context, s *session.Session) error {
	for text, err := range s.Transport.Lines(ctx) {
		if err != nil {
			return err
		}
		k.Handle(text)
	}
	return nil
}

// Handle records one received line. Blank lines are skipped and reported as
// not recorded.
func (k *Sink) Handle(text string) bool {
	text = strings.TrimRightFunc(text, isSpace)
	if text == "" {
		return false
	}
	observability.RecordLineReceived(role)
	if _, err := k.history.Append(text); err != nil {
		observability.RecordHistoryWriteFailure()
		k.log.Error().Err(err).Str("path", k.history.Path()).Msg("listener.Sink.Handle history write failed")
	}
	return true
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n' || r == '\v' || r == '\f'
}
