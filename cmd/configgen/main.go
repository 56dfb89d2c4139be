package main

import (
	"fmt"
	"os"

	"github.com/danmuck/minechat/internal/config"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "configgen: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "configgen",
		Usage: "write or validate listenctl/sendctl config files",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Value: config.KindListener, Usage: "config kind: listener|sender"},
			&cli.StringFlag{Name: "output", Usage: "output path for config template"},
			&cli.BoolFlag{Name: "validate", Usage: "validate an existing config file"},
			&cli.StringFlag{Name: "input", Usage: "config path for validation (defaults to per-kind cmd path)"},
			&cli.BoolFlag{Name: "force", Usage: "overwrite existing config file"},
		},
		ExitErrHandler: func(*cli.Context, error) {},
		Action: func(c *cli.Context) error {
			kind := c.String("kind")
			if c.Bool("validate") {
				path := c.String("input")
				if path == "" {
					var err error
					if path, err = config.DefaultPath(kind); err != nil {
						return err
					}
				}
				if err := config.Validate(kind, path); err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "Validated %s config at %s\n", kind, path)
				return nil
			}

			target := c.String("output")
			if target == "" {
				var err error
				if target, err = config.DefaultPath(kind); err != nil {
					return err
				}
			}
			if err := config.WriteTemplate(target, kind, c.Bool("force")); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Wrote %s config template to %s\n", kind, target)
			return nil
		},
	}
}
