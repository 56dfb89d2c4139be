// Package sender wires the interactive role: an authenticated session that
// relays one operator line at a time and waits for each acknowledgement.
package sender

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/minechat/internal/observability"
	"github.com/danmuck/minechat/internal/protocol/session"
	"github.com/danmuck/minechat/internal/reconnect"
	"github.com/rs/zerolog"
)

const (
	role        = "sender"
	inputPrompt = "> "
)

// Input is the operator side of the conversation.
type Input interface {
	ReadLine(ctx context.Context, prompt string) (string, error)
}

// Source is the sender stream. Input and network reads alternate on one
// goroutine; the next line is not solicited until the previous one is
// acknowledged.
type Source struct {
	input  Input
	out    io.Writer
	policy MessageErrorPolicy
	log    zerolog.Logger
}

func NewSource(input Input, out io.Writer, policy MessageErrorPolicy, logger zerolog.Logger) *Source {
	if out == nil {
		out = io.Discard
	}
	if policy == "" {
		policy = PolicyExit
	}
	return &Source{input: input, out: out, policy: policy, log: logger}
}

// Stream reads the welcome line, then relays operator lines until an empty
// line or end of input, which end the session with reconnect.ErrFinished.
func (src *Source) Stream(ctx context.Context, s *session.Session) error {
	log := src.log.With().Str("session_id", s.ID).Logger()

	welcome, err := s.Transport.ReadLine(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(src.out, welcome)

	for {
		text, err := src.input.ReadLine(ctx, inputPrompt)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !errors.Is(err, io.EOF) {
				log.Error().Err(err).Msg("sender.Source.Stream input failed")
			}
			return reconnect.ErrFinished
		}
		text = strings.TrimSpace(text)
		if text == "" {
			log.Info().Msg("sender.Source.Stream empty line, ending session")
			return reconnect.ErrFinished
		}

		ack, err := src.exchange(ctx, s, text)
		if err != nil {
			observability.RecordMessage(false)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return src.fail(log, text, err)
		}
		observability.RecordMessage(true)
		fmt.Fprintln(src.out, ack)
	}
}

func (src *Source) exchange(ctx context.Context, s *session.Session, text string) (string, error) {
	if err := s.Transport.WriteLine(ctx, text); err != nil {
		return "", err
	}
	return s.Transport.ReadLine(ctx)
}

func (src *Source) fail(log zerolog.Logger, text string, err error) error {
	fmt.Fprintf(src.out, "Message not acknowledged: %q\n", text)
	switch src.policy {
	case PolicyReconnect:
		log.Warn().Err(err).Str("message", text).Msg("sender.Source.Stream message not acknowledged, reconnecting")
		return err
	default:
		log.Error().Err(err).Str("message", text).Msg("sender.Source.Stream message not acknowledged, ending session")
		return fmt.Errorf("%w: %w", reconnect.ErrFinished, err)
	}
}
