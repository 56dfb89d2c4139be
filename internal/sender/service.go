package sender

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/minechat/internal/credential"
	"github.com/danmuck/minechat/internal/handshake"
	"github.com/danmuck/minechat/internal/protocol/line"
	"github.com/danmuck/minechat/internal/protocol/session"
	"github.com/danmuck/minechat/internal/reconnect"
	"github.com/danmuck/minechat/internal/status"
	"github.com/rs/zerolog"
)

var ErrInputRequired = errors.New("sender: operator input required")

// Operator supplies both message lines and, during registration, a nickname.
type Operator interface {
	Input
	handshake.NicknameSource
}

type ServiceConfig struct {
	Endpoint line.Endpoint
	HashFile string
	// Nickname pre-supplies the registration nickname; blank asks the operator.
	Nickname          string
	Session           session.Config
	OnSendError       MessageErrorPolicy
	StatusAddr        string
	StatusCORSOrigins []string
	// Wait overrides the retry delay; nil uses session.Wait.
	Wait reconnect.WaitFunc
}

type Service struct {
	cfg   ServiceConfig
	out   io.Writer
	log   zerolog.Logger
	store *credential.Store
	loop  *reconnect.Loop
}

func NewService(cfg ServiceConfig, op Operator, out io.Writer, logger zerolog.Logger) (*Service, error) {
	if err := cfg.Endpoint.Validate(); err != nil {
		return nil, err
	}
	if op == nil {
		return nil, ErrInputRequired
	}
	policy, err := ParsePolicy(string(cfg.OnSendError))
	if err != nil {
		return nil, err
	}
	cfg.OnSendError = policy
	cfg.Session = cfg.Session.WithDefaults()
	if out == nil {
		out = io.Discard
	}

	store, err := credential.NewStore(cfg.HashFile)
	if err != nil {
		return nil, err
	}

	topts := cfg.Session.TransportOptions()
	ep := cfg.Endpoint
	dial := func(ctx context.Context) (*line.Transport, error) {
		return line.Dial(ctx, ep, topts)
	}

	engine, err := handshake.NewEngine(handshake.Config{
		Dial:        dial,
		Credentials: store,
		Nicknames:   nicknames{preset: strings.TrimSpace(cfg.Nickname), op: op},
		Out:         out,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	loop, err := reconnect.New(reconnect.Options{
		Role:      role,
		Endpoint:  ep,
		Session:   cfg.Session,
		Dial:      dial,
		Handshake: engine.Authenticate,
		Stream:    NewSource(op, out, policy, logger).Stream,
		Wait:      cfg.Wait,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	return &Service{cfg: cfg, out: out, log: logger, store: store, loop: loop}, nil
}

// Run serves until SIGINT, SIGTERM or the operator ends the session.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

func (s *Service) Serve(ctx context.Context) error {
	fmt.Fprintf(s.out, "Connecting to %s, token file %s\n", s.cfg.Endpoint.Address(), s.store.Path())
	fmt.Fprintln(s.out, "Send an empty line to quit.")

	if addr := strings.TrimSpace(s.cfg.StatusAddr); addr != "" {
		srv, err := status.New(status.Config{
			Addr:        addr,
			Role:        role,
			CORSOrigins: s.cfg.StatusCORSOrigins,
			Logger:      s.log,
		}, s.loop)
		if err != nil {
			return err
		}
		statusCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := srv.Serve(statusCtx); err != nil {
				s.log.Error().Err(err).Str("addr", addr).Msg("sender.Service.Serve status server stopped")
			}
		}()
	}

	err := s.loop.Run(ctx)
	s.log.Info().Msg("sender.Service.Serve stopped")
	return err
}

func (s *Service) Loop() *reconnect.Loop { return s.loop }

// nicknames prefers the configured nickname over asking the operator.
type nicknames struct {
	preset string
	op     handshake.NicknameSource
}

func (n nicknames) Nickname(ctx context.Context, prompt string) (string, error) {
	if n.preset != "" {
		return n.preset, nil
	}
	return n.op.Nickname(ctx, prompt)
}
