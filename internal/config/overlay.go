package config

import (
	"fmt"
	"strings"

	"github.com/danmuck/minechat/internal/protocol"
	"github.com/danmuck/minechat/internal/protocol/session"
)

// Defined reports whether a key was present in a decoded file.
type Defined func(key string) bool

// ApplySession overlays the session tunables present in the file onto cfg.
func (t Tunables) ApplySession(cfg session.Config, defined Defined) (session.Config, error) {
	if defined("connect_timeout") {
		d, err := ParseDuration(t.ConnectTimeout)
		if err != nil {
			return cfg, fmt.Errorf("%w: connect_timeout: %v", protocol.ErrConfig, err)
		}
		cfg.ConnectTimeout = d
	}
	if defined("retry_delay") {
		d, err := ParseDuration(t.RetryDelay)
		if err != nil {
			return cfg, fmt.Errorf("%w: retry_delay: %v", protocol.ErrConfig, err)
		}
		cfg.RetryDelay = d
	}
	if defined("read_timeout") {
		d, err := ParseDuration(t.ReadTimeout)
		if err != nil {
			return cfg, fmt.Errorf("%w: read_timeout: %v", protocol.ErrConfig, err)
		}
		cfg.ReadTimeout = d
	}
	if defined("write_timeout") {
		d, err := ParseDuration(t.WriteTimeout)
		if err != nil {
			return cfg, fmt.Errorf("%w: write_timeout: %v", protocol.ErrConfig, err)
		}
		cfg.WriteTimeout = d
	}
	if defined("max_line_bytes") {
		if t.MaxLineBytes < 0 {
			return cfg, fmt.Errorf("%w: max_line_bytes must not be negative", protocol.ErrConfig)
		}
		cfg.MaxLineBytes = t.MaxLineBytes
	}
	return cfg.WithDefaults(), nil
}

// NormalizeOrigins drops blank entries.
func NormalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	return out
}
