package session

import (
	"time"

	"github.com/danmuck/minechat/internal/protocol/line"
)

// Config defines transport/session reliability defaults.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RetryDelay     time.Duration
	MaxLineBytes   int
}

// DefaultConfig returns the client defaults: 10s connect timeout, 5s fixed
// retry delay, no idle read timeout (chat may be quiet for hours).
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    0,
		WriteTimeout:   10 * time.Second,
		RetryDelay:     5 * time.Second,
		MaxLineBytes:   line.DefaultMaxLineBytes,
	}
}

// WithDefaults fills non-positive fields from DefaultConfig. ReadTimeout is
// left alone because zero is meaningful.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.ReadTimeout < 0 {
		c.ReadTimeout = 0
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = def.RetryDelay
	}
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = def.MaxLineBytes
	}
	return c
}

func (c Config) TransportOptions() line.Options {
	return line.Options{
		ConnectTimeout: c.ConnectTimeout,
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
		MaxLineBytes:   c.MaxLineBytes,
	}
}
