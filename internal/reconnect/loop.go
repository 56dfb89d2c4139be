// Package reconnect owns the connect -> handshake -> stream cycle shared by
// the listener and sender roles.
//
// Every failure is classified with protocol.Classify and mapped through
// protocol.ActionFor. Retryable failures close the session, wait a fixed
// delay and dial again, with no attempt limit. Only context cancellation,
// ErrFinished from the stream, or a configuration error end the loop.
package reconnect

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/minechat/internal/observability"
	"github.com/danmuck/minechat/internal/protocol"
	"github.com/danmuck/minechat/internal/protocol/line"
	"github.com/danmuck/minechat/internal/protocol/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrFinished is returned by a stream that ended on purpose.
	ErrFinished = errors.New("reconnect: session finished")

	ErrStreamRequired = errors.New("reconnect: stream func required")
)

type DialFunc func(ctx context.Context) (*line.Transport, error)

// HandshakeFunc authenticates a fresh session. It may replace s.Transport.
type HandshakeFunc func(ctx context.Context, s *session.Session) error

// StreamFunc runs the steady-state exchange until it fails or finishes.
type StreamFunc func(ctx context.Context, s *session.Session) error

type WaitFunc func(ctx context.Context, d time.Duration) error

type Options struct {
	Role      string
	Endpoint  line.Endpoint
	Session   session.Config
	Dial      DialFunc
	Handshake HandshakeFunc
	Stream    StreamFunc
	Wait      WaitFunc
	NewID     func() string
	Now       func() time.Time
	Logger    zerolog.Logger
}

// Snapshot is a point-in-time view of the loop for status reporting.
type Snapshot struct {
	Role          string        `json:"role"`
	State         session.State `json:"state"`
	Endpoint      string        `json:"endpoint"`
	SessionID     string        `json:"session_id,omitempty"`
	Nickname      string        `json:"nickname,omitempty"`
	Attempt       int           `json:"attempt"`
	Retries       int           `json:"retries"`
	LinesReceived int64         `json:"lines_received"`
	LastErrorKind string        `json:"last_error_kind,omitempty"`
	LastError     string        `json:"last_error,omitempty"`
	Since         time.Time     `json:"since"`
}

type Loop struct {
	opts Options
	log  zerolog.Logger

	mu   sync.RWMutex
	snap Snapshot
}

func New(opts Options) (*Loop, error) {
	if opts.Stream == nil {
		return nil, ErrStreamRequired
	}
	opts.Session = opts.Session.WithDefaults()
	if strings.TrimSpace(opts.Role) == "" {
		opts.Role = "client"
	}
	if opts.Dial == nil {
		if err := opts.Endpoint.Validate(); err != nil {
			return nil, err
		}
		ep, topts := opts.Endpoint, opts.Session.TransportOptions()
		opts.Dial = func(ctx context.Context) (*line.Transport, error) {
			return line.Dial(ctx, ep, topts)
		}
	}
	if opts.Wait == nil {
		opts.Wait = session.Wait
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	l := &Loop{
		opts: opts,
		log:  opts.Logger.With().Str("role", opts.Role).Str("addr", opts.Endpoint.Address()).Logger(),
	}
	l.snap = Snapshot{
		Role:     opts.Role,
		State:    session.StateDisconnected,
		Endpoint: opts.Endpoint.Address(),
		Since:    opts.Now(),
	}
	return l, nil
}

// Snapshot returns the current loop state.
func (l *Loop) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap
}

// Run cycles until ctx is canceled, the stream returns ErrFinished, or a
// configuration error occurs. Cancellation and ErrFinished return nil.
func (l *Loop) Run(ctx context.Context) error {
	defer l.setState(session.StateTerminated, nil)
	for {
		if ctx.Err() != nil {
			l.log.Info().Msg("reconnect.Loop.Run shutdown")
			return nil
		}

		err := l.cycle(ctx)
		if errors.Is(err, ErrFinished) {
			l.log.Info().Msg("reconnect.Loop.Run session finished")
			return nil
		}
		if ctx.Err() != nil {
			l.log.Info().Msg("reconnect.Loop.Run shutdown")
			return nil
		}

		kind := protocol.Classify(err)
		switch protocol.ActionFor(kind) {
		case protocol.ActionStop:
			return nil
		case protocol.ActionFatal:
			l.log.Error().Err(err).Str("kind", kind.String()).Msg("reconnect.Loop.Run fatal")
			return err
		}

		observability.RecordSessionFailure(l.opts.Role, kind.String())
		l.mu.Lock()
		l.snap.Retries++
		l.snap.LastErrorKind = kind.String()
		l.snap.LastError = err.Error()
		l.mu.Unlock()

		l.log.Info().Dur("delay", l.opts.Session.RetryDelay).Msg("reconnect.Loop.Run retrying")
		if err := l.opts.Wait(ctx, l.opts.Session.RetryDelay); err != nil {
			l.log.Info().Msg("reconnect.Loop.Run shutdown")
			return nil
		}
	}
}

// cycle runs one connect -> handshake -> stream pass. The session is closed
// on every return path.
func (l *Loop) cycle(ctx context.Context) error {
	id := l.opts.NewID()
	log := l.log.With().Str("session_id", id).Logger()

	l.mu.Lock()
	l.snap.Attempt++
	attempt := l.snap.Attempt
	l.snap.SessionID = id
	l.snap.Nickname = ""
	l.snap.LinesReceived = 0
	l.mu.Unlock()
	l.setState(session.StateConnecting, nil)
	observability.RecordConnectAttempt(l.opts.Role)

	log.Info().Int("attempt", attempt).Msg("reconnect.Loop.cycle connecting")
	t, err := l.opts.Dial(ctx)
	if err != nil {
		if ctx.Err() == nil {
			l.logFailure(log, err, 0)
		}
		l.setState(session.StateDisconnected, nil)
		return err
	}

	s := &session.Session{ID: id, Transport: t}
	defer func() {
		if s.Transport != nil && !s.Transport.Closed() {
			log.Debug().Msg("reconnect.Loop.cycle closing connection")
		}
		_ = s.Close()
		l.setState(session.StateDisconnected, nil)
	}()
	log.Info().Str("remote", t.RemoteAddr()).Msg("reconnect.Loop.cycle connected")

	if l.opts.Handshake != nil {
		l.setState(session.StateHandshaking, nil)
		if err := l.opts.Handshake(ctx, s); err != nil {
			if ctx.Err() == nil {
				l.logFailure(log, err, 0)
			}
			return err
		}
	}

	base := int64(0)
	if s.Transport != nil {
		base = s.Transport.LinesRead()
	}
	l.setState(session.StateStreaming, s)
	l.mu.Lock()
	l.snap.Attempt = 0
	l.mu.Unlock()

	started := l.opts.Now()
	err = l.opts.Stream(ctx, s)
	observability.RecordStreaming(l.opts.Role, l.opts.Now().Sub(started))

	lines := int64(0)
	if s.Transport != nil {
		lines = s.Transport.LinesRead() - base
	}
	l.mu.Lock()
	l.snap.LinesReceived = lines
	l.mu.Unlock()

	if err == nil {
		err = &protocol.Error{Op: "stream", Kind: protocol.KindConnectionClosed, Addr: t.RemoteAddr()}
	}
	if ctx.Err() == nil && !errors.Is(err, ErrFinished) {
		l.logFailure(log, err, lines)
	}
	return err
}

func (l *Loop) logFailure(log zerolog.Logger, err error, lines int64) {
	kind := protocol.Classify(err)
	event := log.Warn().Err(err).Str("kind", kind.String())
	switch kind {
	case protocol.KindTimeout:
		event.Msg("reconnect.Loop connect timeout")
	case protocol.KindRefused:
		event.Msg("reconnect.Loop connection refused")
	case protocol.KindNetworkFailure:
		event.Msg("reconnect.Loop network failure")
	case protocol.KindConnectionClosed:
		if lines == 0 {
			event.Msg("reconnect.Loop connection closed without data")
			return
		}
		event.Int64("lines", lines).Msg("reconnect.Loop connection closed")
	case protocol.KindMalformedLine:
		var perr *protocol.Error
		if errors.As(err, &perr) {
			event = event.Str("partial", perr.Partial)
		}
		event.Msg("reconnect.Loop partial line")
	case protocol.KindProtocol:
		event.Msg("reconnect.Loop protocol error")
	case protocol.KindConfig:
		event.Msg("reconnect.Loop invalid configuration")
	default:
		event.Msg("reconnect.Loop unexpected failure")
	}
}

func (l *Loop) setState(state session.State, s *session.Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.snap.State != state {
		l.snap.Since = l.opts.Now()
	}
	l.snap.State = state
	if s != nil {
		l.snap.Nickname = s.Nickname
	}
}
