package listener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/minechat/internal/chatlog"
	"github.com/danmuck/minechat/internal/protocol/line"
	"github.com/danmuck/minechat/internal/protocol/session"
	"github.com/danmuck/minechat/internal/reconnect"
	"github.com/danmuck/minechat/internal/status"
	"github.com/rs/zerolog"
)

var ErrHistoryPathRequired = errors.New("listener: history path required")

// ServiceConfig configures the listener runtime.
type ServiceConfig struct {
	Endpoint          line.Endpoint
	HistoryPath       string
	Session           session.Config
	StatusAddr        string
	StatusCORSOrigins []string
	// Wait overrides the retry delay; nil uses session.Wait.
	Wait reconnect.WaitFunc
}

type Service struct {
	cfg     ServiceConfig
	out     io.Writer
	log     zerolog.Logger
	history *chatlog.History
	loop    *reconnect.Loop
}

// NewService validates cfg and builds the loop. out receives the chat echo
// and the startup banner.
func NewService(cfg ServiceConfig, out io.Writer, logger zerolog.Logger) (*Service, error) {
	if err := cfg.Endpoint.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.HistoryPath) == "" {
		return nil, ErrHistoryPathRequired
	}
	if out == nil {
		out = io.Discard
	}
	history, err := chatlog.NewHistory(cfg.HistoryPath, out)
	if err != nil {
		return nil, err
	}
	loop, err := reconnect.New(reconnect.Options{
		Role:     role,
		Endpoint: cfg.Endpoint,
		Session:  cfg.Session,
		Stream:   NewSink(history, logger).Stream,
		Wait:     cfg.Wait,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	return &Service{cfg: cfg, out: out, log: logger, history: history, loop: loop}, nil
}

// Run serves until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Serve creates the history file if needed and runs the session loop until
// ctx is done.
func (s *Service) Serve(ctx context.Context) error {
	if err := s.history.EnsureFile(); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Listening to %s, saving history to %s\n", s.cfg.Endpoint.Address(), s.history.Path())
	fmt.Fprintln(s.out, "Press Ctrl+C to stop.")

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
		go func() {
			if err := srv.Serve(ctx); err != nil {
				s.log.Error().Err(err).Str("addr", addr).Msg("listener.Service.Serve status server stopped")
			}
		}()
	}

	err := s.loop.Run(ctx)
	s.log.Info().Msg("listener.Service.Serve stopped")
	return err
}

func (s *Service) Loop() *reconnect.Loop { return s.loop }
