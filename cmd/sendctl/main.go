package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/danmuck/minechat/internal/config"
	"github.com/danmuck/minechat/internal/console"
	"github.com/danmuck/minechat/internal/logging"
	"github.com/danmuck/minechat/internal/observability"
	"github.com/danmuck/minechat/internal/sender"
	"github.com/urfave/cli/v2"
)

const exitConfig = 2

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "sendctl: .env: %v\n", err)
	}
	if err := newApp(run).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "sendctl: %v\n", err)
		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			os.Exit(exit.ExitCode())
		}
		os.Exit(1)
	}
}

func run(cfg sender.ServiceConfig) error {
	logging.ConfigureRuntime()
	logger := observability.InitLogger("sendctl")
	svc, err := sender.NewService(cfg, console.Stdio(), os.Stdout, logger)
	if err != nil {
		return cli.Exit(err.Error(), exitConfig)
	}
	return svc.Run()
}

func newApp(start func(sender.ServiceConfig) error) *cli.App {
	return &cli.App{
		Name:  "sendctl",
		Usage: "log in or register with a minechat server and post messages",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "chat server host", EnvVars: []string{"MINECHAT_HOST_WRITER", "MINECHAT_HOST"}},
			&cli.IntFlag{Name: "port", Usage: "chat server write port", EnvVars: []string{"MINECHAT_PORT_WRITER", "MINECHAT_PORT"}},
			&cli.StringFlag{Name: "hash-file", Usage: "account token file", EnvVars: []string{"MINECHAT_HASH"}},
			&cli.StringFlag{Name: "nickname", Usage: "nickname used when registering", EnvVars: []string{"MINECHAT_NICKNAME"}},
			&cli.StringFlag{Name: "on-send-error", Usage: "exit or reconnect when a message is not acknowledged", EnvVars: []string{"MINECHAT_ON_SEND_ERROR"}},
			&cli.StringFlag{Name: "config", Usage: "optional TOML config file", EnvVars: []string{"MINECHAT_CONFIG"}},
			&cli.StringFlag{Name: "status-addr", Usage: "serve /health, /ready, /session and /metrics on this address", EnvVars: []string{"MINECHAT_STATUS_ADDR"}},
		},
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
