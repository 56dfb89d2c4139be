package config

import (
	"fmt"
	"os"
)

func Template(kind string) (string, error) {
	switch normalizeKind(kind) {
	case KindListener:
		return listenerTemplate, nil
	case KindSender:
		return senderTemplate, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// DefaultPath is where configgen writes a kind's template when no output is
// given.
func DefaultPath(kind string) (string, error) {
	switch normalizeKind(kind) {
	case KindListener:
		return "cmd/listenctl/config.toml", nil
	case KindSender:
		return "cmd/sendctl/config.toml", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

const listenerTemplate = `# minechat listener
host = "minechat.dvmn.org"
port = 5000
history = "minechat.history"

# connect_timeout = "10s"
# retry_delay = "5s"
# read_timeout = "0s"   # 0 waits forever for the next chat line
# write_timeout = "10s"
# max_line_bytes = 65536

# status_addr = "127.0.0.1:9300"
# status_cors_origins = ["http://localhost:3000"]
`

const senderTemplate = `# minechat sender
host = "minechat.dvmn.org"
port = 5050
hash_file = "account.hash"
# nickname = "Anonymous"
on_send_error = "exit"   # exit | reconnect

# connect_timeout = "10s"
# retry_delay = "5s"
# read_timeout = "0s"
# write_timeout = "10s"
# max_line_bytes = 65536

# status_addr = "127.0.0.1:9301"
# status_cors_origins = ["http://localhost:3000"]
`
