package session

import (
	"github.com/danmuck/minechat/internal/protocol/line"
)

// State is a reconnect loop phase.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateHandshaking  State = "handshaking"
	StateStreaming    State = "streaming"
	StateTerminated   State = "terminated"
)

// Session is one live connection. The reconnect loop owns it; the handshake
// may swap Transport, closing the previous one first.
type Session struct {
	ID            string
	Transport     *line.Transport
	Authenticated bool
	Nickname      string
}

// Close releases the current transport. Safe to call repeatedly.
func (s *Session) Close() error {
	if s == nil || s.Transport == nil {
		return nil
	}
	return s.Transport.Close()
}
