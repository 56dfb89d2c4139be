package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/minechat/internal/config"
	"github.com/danmuck/minechat/internal/credential"
	"github.com/danmuck/minechat/internal/protocol/session"
	"github.com/danmuck/minechat/internal/sender"
	"github.com/urfave/cli/v2"
)

func resolveConfig(c *cli.Context) (sender.ServiceConfig, error) {
	cfg := sender.ServiceConfig{Session: session.DefaultConfig(), OnSendError: sender.PolicyExit}

	if path := strings.TrimSpace(c.String("config")); path != "" {
		var err error
		cfg, err = loadFileConfig(path, cfg)
		if err != nil {
			return sender.ServiceConfig{}, err
		}
	}

	if c.IsSet("host") {
		cfg.Endpoint.Host = strings.TrimSpace(c.String("host"))
	}
	if c.IsSet("port") {
		cfg.Endpoint.Port = c.Int("port")
	}
	if c.IsSet("hash-file") {
		cfg.HashFile = strings.TrimSpace(c.String("hash-file"))
	}
	if c.IsSet("nickname") {
		cfg.Nickname = strings.TrimSpace(c.String("nickname"))
	}
	if c.IsSet("on-send-error") {
		cfg.OnSendError = sender.MessageErrorPolicy(c.String("on-send-error"))
	}
	if c.IsSet("status-addr") {
		cfg.StatusAddr = strings.TrimSpace(c.String("status-addr"))
	}

	if err := cfg.Endpoint.Validate(); err != nil {
		return sender.ServiceConfig{}, err
	}
	if cfg.HashFile == "" {
		return sender.ServiceConfig{}, credential.ErrPathRequired
	}
	policy, err := sender.ParsePolicy(string(cfg.OnSendError))
	if err != nil {
		return sender.ServiceConfig{}, err
	}
	cfg.OnSendError = policy
	return cfg, nil
}

func loadFileConfig(path string, cfg sender.ServiceConfig) (sender.ServiceConfig, error) {
	var raw config.SenderFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return sender.ServiceConfig{}, fmt.Errorf("load sender config: %w", err)
	}

	if meta.IsDefined("host") {
		cfg.Endpoint.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		cfg.Endpoint.Port = raw.Port
	}
	if meta.IsDefined("hash_file") {
		cfg.HashFile = strings.TrimSpace(raw.HashFile)
	}
	if meta.IsDefined("nickname") {
		cfg.Nickname = strings.TrimSpace(raw.Nickname)
	}
	if meta.IsDefined("on_send_error") {
		cfg.OnSendError = sender.MessageErrorPolicy(raw.OnSendError)
	}
	if meta.IsDefined("status_addr") {
		cfg.StatusAddr = strings.TrimSpace(raw.StatusAddr)
	}
	if meta.IsDefined("status_cors_origins") {
		cfg.StatusCORSOrigins = config.NormalizeOrigins(raw.StatusCORSOrigins)
	}

	cfg.Session, err = raw.ApplySession(cfg.Session, func(key string) bool { return meta.IsDefined(key) })
	if err != nil {
		return sender.ServiceConfig{}, fmt.Errorf("load sender config: %w", err)
	}
	return cfg, nil
}
