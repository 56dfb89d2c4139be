package sender

import (
	"fmt"
	"strings"

	"github.com/danmuck/minechat/internal/protocol"
)

// MessageErrorPolicy decides what a failed message exchange does to the
// session.
type MessageErrorPolicy string

const (
	// PolicyExit ends the interactive session on the first failed exchange.
	PolicyExit MessageErrorPolicy = "exit"
	// PolicyReconnect hands the failure to the reconnect loop. The
	// unacknowledged message is reported and never resent.
	PolicyReconnect MessageErrorPolicy = "reconnect"
)

func ParsePolicy(raw string) (MessageErrorPolicy, error) {
	switch MessageErrorPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PolicyExit:
		return PolicyExit, nil
	case PolicyReconnect:
		return PolicyReconnect, nil
	default:
		return "", fmt.Errorf("%w: on_send_error must be exit or reconnect, got %q", protocol.ErrConfig, raw)
	}
}
