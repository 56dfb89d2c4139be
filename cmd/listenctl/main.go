package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/danmuck/minechat/internal/config"
	"github.com/danmuck/minechat/internal/listener"
	"github.com/danmuck/minechat/internal/logging"
	"github.com/danmuck/minechat/internal/observability"
	"github.com/urfave/cli/v2"
)

const exitConfig = 2

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "listenctl: .env: %v\n", err)
	}
	if err := newApp(run).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "listenctl: %v\n", err)
		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			os.Exit(exit.ExitCode())
		}
		os.Exit(1)
	}
}

func run(cfg listener.ServiceConfig) error {
	logging.ConfigureRuntime()
	logger := observability.InitLogger("listenctl")
	svc, err := listener.NewService(cfg, os.Stdout, logger)
	if err != nil {
		return cli.Exit(err.Error(), exitConfig)
	}
	return svc.Run()
}

func newApp(start func(listener.ServiceConfig) error) *cli.App {
	return &cli.App{
		Name:  "listenctl",
		Usage: "follow a minechat room and append every message to a history file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "chat server host", EnvVars: []string{"MINECHAT_HOST"}},
			&cli.IntFlag{Name: "port", Usage: "chat server read port", EnvVars: []string{"MINECHAT_PORT"}},
			&cli.StringFlag{Name: "history", Usage: "history file path", EnvVars: []string{"MINECHAT_HISTORY"}},
			&cli.StringFlag{Name: "config", Usage: "optional TOML config file", EnvVars: []string{"MINECHAT_CONFIG"}},
			&cli.StringFlag{Name: "status-addr", Usage: "serve /health, /ready, /session and /metrics on this address", EnvVars: []string{"MINECHAT_STATUS_ADDR"}},
		},
		// Exit codes are applied in main so tests can run the app in-process.
		ExitErrHandler: func(*cli.Context, error) {},
		Action: func(c *cli.Context) error {
			cfg, err := resolveConfig(c)
			if err != nil {
				return cli.Exit(err.Error(), exitConfig)
			}
			return start(cfg)
		},
	}
}
