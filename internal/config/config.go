package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/minechat/internal/protocol"
	"github.com/pelletier/go-toml/v2"
)

const (
	KindListener = "listener"
	KindSender   = "sender"
)

var ErrUnknownKind = errors.New("config: unknown kind")

// Tunables are the keys shared by both roles.
type Tunables struct {
	Host              string   `toml:"host"`
	Port              int      `toml:"port"`
	ConnectTimeout    string   `toml:"connect_timeout"`
	RetryDelay        string   `toml:"retry_delay"`
	ReadTimeout       string   `toml:"read_timeout"`
	WriteTimeout      string   `toml:"write_timeout"`
	MaxLineBytes      int      `toml:"max_line_bytes"`
	StatusAddr        string   `toml:"status_addr"`
	StatusCORSOrigins []string `toml:"status_cors_origins"`
}

type ListenerFile struct {
	Tunables
	History string `toml:"history"`
}

type SenderFile struct {
	Tunables
	HashFile    string `toml:"hash_file"`
	Nickname    string `toml:"nickname"`
	OnSendError string `toml:"on_send_error"`
}

func LoadListenerFile(path string) (ListenerFile, error) {
	var cfg ListenerFile
	if err := loadStrict(path, &cfg); err != nil {
		return ListenerFile{}, err
	}
	if err := cfg.Tunables.Validate(); err != nil {
		return ListenerFile{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func LoadSenderFile(path string) (SenderFile, error) {
	var cfg SenderFile
	if err := loadStrict(path, &cfg); err != nil {
		return SenderFile{}, err
	}
	if err := cfg.Tunables.Validate(); err != nil {
		return SenderFile{}, fmt.Errorf("config %s: %w", path, err)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.OnSendError)) {
	case "", "exit", "reconnect":
	default:
		return SenderFile{}, fmt.Errorf("config %s: %w: on_send_error must be exit or reconnect", path, protocol.ErrConfig)
	}
	return cfg, nil
}

// Validate checks a file of the given kind without applying it.
func Validate(kind, path string) error {
	switch normalizeKind(kind) {
	case KindListener:
		_, err := LoadListenerFile(path)
		return err
	case KindSender:
		_, err := LoadSenderFile(path)
		return err
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// Validate checks ranges and duration syntax. Missing keys are fine; the
// command layer decides what is mandatory after merging flags and env.
func (t Tunables) Validate() error {
	if t.Port < 0 || t.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", protocol.ErrConfig, t.Port)
	}
	if t.MaxLineBytes < 0 {
		return fmt.Errorf("%w: max_line_bytes must not be negative", protocol.ErrConfig)
	}
	for key, raw := range map[string]string{
		"connect_timeout": t.ConnectTimeout,
		"retry_delay":     t.RetryDelay,
		"read_timeout":    t.ReadTimeout,
		"write_timeout":   t.WriteTimeout,
	} {
		if _, err := ParseDuration(raw); err != nil {
			return fmt.Errorf("%w: %s: %v", protocol.ErrConfig, key, err)
		}
	}
	return nil
}

// ParseDuration accepts Go duration syntax; blank yields zero.
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", raw)
	}
	return d, nil
}

func loadStrict(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}
