package line

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/danmuck/minechat/internal/protocol"
)

// Endpoint is the chat server address, fixed for the process lifetime.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) Validate() error {
	if strings.TrimSpace(e.Host) == "" {
		return fmt.Errorf("%w: host required", protocol.ErrConfig)
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range 1-65535", protocol.ErrConfig, e.Port)
	}
	return nil
}

func (e Endpoint) Address() string {
	return net.JoinHostPort(strings.TrimSpace(e.Host), strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	return e.Address()
}
