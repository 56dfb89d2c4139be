// Package handshake drives the sender's login-or-register negotiation.
//
// Login and registration never share a connection: a rejected token closes
// the current transport and registration runs on a freshly dialed one.
package handshake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/minechat/internal/credential"
	"github.com/danmuck/minechat/internal/observability"
	"github.com/danmuck/minechat/internal/protocol"
	"github.com/danmuck/minechat/internal/protocol/line"
	"github.com/danmuck/minechat/internal/protocol/session"
	"github.com/rs/zerolog"
)

// DefaultNickname is sent when the operator leaves the nickname blank.
const DefaultNickname = "Anonymous"

var (
	ErrDialRequired        = errors.New("handshake: dial func required")
	ErrCredentialsRequired = errors.New("handshake: credential store required")
	ErrNicknamesRequired   = errors.New("handshake: nickname source required")
	ErrLoginRejected       = errors.New("handshake: login rejected")
	ErrMalformedRecord     = errors.New("handshake: malformed account record")
)

// CredentialStore is the token persistence the engine needs.
type CredentialStore interface {
	Load() (credential.Credential, bool, error)
	Save(credential.Credential) error
}

// NicknameSource supplies the candidate nickname during registration.
type NicknameSource interface {
	Nickname(ctx context.Context, prompt string) (string, error)
}

type DialFunc func(ctx context.Context) (*line.Transport, error)

type Config struct {
	Dial            DialFunc
	Credentials     CredentialStore
	Nicknames       NicknameSource
	DefaultNickname string
	// Out receives server greeting and prompt lines for display.
	Out    io.Writer
	Logger zerolog.Logger
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Dial == nil {
		return nil, ErrDialRequired
	}
	if cfg.Credentials == nil {
		return nil, ErrCredentialsRequired
	}
	if cfg.Nicknames == nil {
		return nil, ErrNicknamesRequired
	}
	if strings.TrimSpace(cfg.DefaultNickname) == "" {
		cfg.DefaultNickname = DefaultNickname
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	return &Engine{cfg: cfg}, nil
}

// Authenticate runs the handshake on s.Transport. On success s is marked
// authenticated with the server-issued nickname; s.Transport may have been
// replaced by the registration connection. On failure s.Transport is closed.
func (e *Engine) Authenticate(ctx context.Context, s *session.Session) error {
	log := e.cfg.Logger.With().Str("session_id", s.ID).Logger()

	cred, ok, err := e.cfg.Credentials.Load()
	if err != nil {
		log.Warn().Err(err).Msg("handshake.Engine.Authenticate credential load failed, registering")
		ok = false
	}

	if ok {
		rec, err := e.login(ctx, s.Transport, cred.Token)
		if err == nil {
			observability.RecordHandshake("login")
			log.Info().Str("nickname", rec.Nickname).Msg("handshake.Engine.Authenticate logged in")
			adopt(s, rec)
			return nil
		}
		_ = s.Close()
		if !errors.Is(err, ErrLoginRejected) {
			observability.RecordHandshake("failed")
			return err
		}
		observability.RecordHandshake("login_rejected")
		log.Warn().Err(err).Msg("handshake.Engine.Authenticate token rejected, reconnecting to register")

		t, err := e.cfg.Dial(ctx)
		if err != nil {
			return err
		}
		s.Transport = t
	}

	rec, err := e.register(ctx, s.Transport)
	if err != nil {
		_ = s.Close()
		observability.RecordHandshake("failed")
		return err
	}
	if err := e.cfg.Credentials.Save(credential.Credential{Token: rec.Token}); err != nil {
		log.Error().Err(err).Msg("handshake.Engine.Authenticate token not persisted")
	}
	observability.RecordHandshake("registered")
	log.Info().Str("nickname", rec.Nickname).Msg("handshake.Engine.Authenticate registered")
	adopt(s, rec)
	return nil
}

func adopt(s *session.Session, rec session.AccountRecord) {
	s.Authenticated = true
	s.Nickname = rec.Nickname
}

func (e *Engine) login(ctx context.Context, t *line.Transport, token string) (session.AccountRecord, error) {
	greeting, err := t.ReadLine(ctx)
	if err != nil {
		return session.AccountRecord{}, err
	}
	e.display(greeting)

	if err := t.WriteLine(ctx, token); err != nil {
		// A token that cannot be sent as one line can never authenticate.
		if errors.Is(err, line.ErrEmbeddedNewline) {
			return session.AccountRecord{}, fmt.Errorf("%w: %v", ErrLoginRejected, err)
		}
		return session.AccountRecord{}, err
	}
	reply, err := t.ReadLine(ctx)
	if err != nil {
		return session.AccountRecord{}, err
	}
	rec, err := session.ParseAccountRecord(reply)
	if err != nil {
		return session.AccountRecord{}, fmt.Errorf("%w: %v", ErrLoginRejected, err)
	}
	return rec, nil
}

func (e *Engine) register(ctx context.Context, t *line.Transport) (session.AccountRecord, error) {
	greeting, err := t.ReadLine(ctx)
	if err != nil {
		return session.AccountRecord{}, err
	}
	e.display(greeting)

	if err := t.WriteLine(ctx, ""); err != nil {
		return session.AccountRecord{}, err
	}
	prompt, err := t.ReadLine(ctx)
	if err != nil {
		return session.AccountRecord{}, err
	}
	e.display(prompt)

	nickname, err := e.nickname(ctx, prompt)
	if err != nil {
		return session.AccountRecord{}, err
	}
	if err := t.WriteLine(ctx, nickname); err != nil {
		return session.AccountRecord{}, err
	}
	reply, err := t.ReadLine(ctx)
	if err != nil {
		return session.AccountRecord{}, err
	}
	rec, err := session.ParseAccountRecord(reply)
	if err != nil {
		return session.AccountRecord{}, &protocol.Error{
			Op:      "register",
			Kind:    protocol.KindProtocol,
			Addr:    t.RemoteAddr(),
			Partial: reply,
			Err:     fmt.Errorf("%w: %v", ErrMalformedRecord, err),
		}
	}
	return rec, nil
}

func (e *Engine) nickname(ctx context.Context, prompt string) (string, error) {
	raw, err := e.cfg.Nicknames.Nickname(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		e.cfg.Logger.Debug().Err(err).Msg("handshake.Engine.nickname input unavailable, using default")
		raw = ""
	}
	nickname := strings.Join(strings.Fields(raw), " ")
	if nickname == "" {
		nickname = e.cfg.DefaultNickname
	}
	return nickname, nil
}

func (e *Engine) display(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	_, _ = fmt.Fprintln(e.cfg.Out, text)
}
