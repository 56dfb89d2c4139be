package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/minechat/internal/config"
	"github.com/danmuck/minechat/internal/listener"
	"github.com/danmuck/minechat/internal/protocol/session"
	"github.com/urfave/cli/v2"
)

// resolveConfig merges defaults, the optional TOML file, then env and flags.
// urfave resolves flag over env itself.
func resolveConfig(c *cli.Context) (listener.ServiceConfig, error) {
	cfg := listener.ServiceConfig{Session: session.DefaultConfig()}

	if path := strings.TrimSpace(c.String("config")); path != "" {
		var err error
		cfg, err = loadFileConfig(path, cfg)
		if err != nil {
			return listener.ServiceConfig{}, err
		}
	}

	if c.IsSet("host") {
		cfg.Endpoint.Host = strings.TrimSpace(c.String("host"))
	}
	if c.IsSet("port") {
		cfg.Endpoint.Port = c.Int("port")
	}
	if c.IsSet("history") {
		cfg.HistoryPath = strings.TrimSpace(c.String("history"))
	}
	if c.IsSet("status-addr") {
		cfg.StatusAddr = strings.TrimSpace(c.String("status-addr"))
	}

	if err := cfg.Endpoint.Validate(); err != nil {
		return listener.ServiceConfig{}, err
	}
	if cfg.HistoryPath == "" {
		return listener.ServiceConfig{}, listener.ErrHistoryPathRequired
	}
	return cfg, nil
}

func loadFileConfig(path string, cfg listener.ServiceConfig) (listener.ServiceConfig, error) {
	var raw config.ListenerFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return listener.ServiceConfig{}, fmt.Errorf("load listener config: %w", err)
	}

	if meta.IsDefined("host") {
		cfg.Endpoint.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		cfg.Endpoint.Port = raw.Port
	}
	if meta.IsDefined("history") {
		cfg.HistoryPath = strings.TrimSpace(raw.History)
	}
	if meta.IsDefined("status_addr") {
		cfg.StatusAddr = strings.TrimSpace(raw.StatusAddr)
	}
	if meta.IsDefined("status_cors_origins") {
		cfg.StatusCORSOrigins = config.NormalizeOrigins(raw.StatusCORSOrigins)
	}

	cfg.Session, err = raw.ApplySession(cfg.Session, func(key string) bool { return meta.IsDefined(key) })
	if err != nil {
		return listener.ServiceConfig{}, fmt.Errorf("load listener config: %w", err)
	}
	return cfg, nil
}
