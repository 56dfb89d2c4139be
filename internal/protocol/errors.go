package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Kind is the closed set of failure classes the chat roles distinguish.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindTimeout
	KindRefused
	KindNetworkFailure
	KindConnectionClosed
	KindMalformedLine
	KindProtocol
	KindCanceled
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindRefused:
		return "refused"
	case KindNetworkFailure:
		return "network_failure"
	case KindConnectionClosed:
		return "connection_closed"
	case KindMalformedLine:
		return "malformed_line"
	case KindProtocol:
		return "protocol_error"
	case KindCanceled:
		return "canceled"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

var (
	ErrTimeout          = errors.New("protocol: timeout")
	ErrRefused          = errors.New("protocol: connection refused")
	ErrNetworkFailure   = errors.New("protocol: network failure")
	ErrConnectionClosed = errors.New("protocol: connection closed")
	ErrMalformedLine    = errors.New("protocol: malformed line")
	ErrProtocol         = errors.New("protocol: protocol error")
	ErrConfig           = errors.New("protocol: invalid configuration")
)

func sentinel(k Kind) error {
	switch k {
	case KindTimeout:
		return ErrTimeout
	case KindRefused:
		return ErrRefused
	case KindNetworkFailure:
		return ErrNetworkFailure
	case KindConnectionClosed:
		return ErrConnectionClosed
	case KindMalformedLine:
		return ErrMalformedLine
	case KindProtocol:
		return ErrProtocol
	case KindConfig:
		return ErrConfig
	default:
		return nil
	}
}

// Error is a classified transport or handshake failure.
// Partial carries the bytes buffered before an unterminated end of stream,
// or the offending line for protocol errors.
type Error struct {
	Op      string
	Kind    Kind
	Addr    string
	Partial string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("protocol: %s %s", e.Op, e.Kind)
	if e.Addr != "" {
		msg += " addr=" + e.Addr
	}
	if e.Partial != "" {
		msg += fmt.Sprintf(" partial=%q", e.Partial)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinel, so errors.Is(err, ErrRefused) works on wrapped values.
func (e *Error) Is(target error) bool {
	s := sentinel(e.Kind)
	return s != nil && s == target
}

// Classify maps err onto a Kind. context.Canceled wins over everything else
// so shutdown is never reported as a failure. Deadline expiry is a timeout:
// the dialer reports its own connect timeout as context.DeadlineExceeded.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	for _, k := range []Kind{KindTimeout, KindRefused, KindNetworkFailure, KindConnectionClosed, KindMalformedLine, KindProtocol, KindConfig} {
		if errors.Is(err, sentinel(k)) {
			return k
		}
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindRefused
	}
	var nerr net.Error
	if (errors.As(err, &nerr) && nerr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, io.EOF) {
		return KindConnectionClosed
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return KindMalformedLine
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) || errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return KindNetworkFailure
	}
	return KindUnknown
}

// Action is what the reconnect loop does with a classified failure.
type Action uint8

const (
	ActionRetry Action = iota
	ActionStop
	ActionFatal
)

func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionStop:
		return "stop"
	case ActionFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ActionFor is the recovery table. Every I/O and protocol kind retries;
// only cancellation stops and only configuration errors are fatal.
func ActionFor(k Kind) Action {
	switch k {
	case KindCanceled:
		return ActionStop
	case KindConfig:
		return ActionFatal
	case KindTimeout, KindRefused, KindNetworkFailure, KindConnectionClosed,
		KindMalformedLine, KindProtocol, KindUnknown:
		return ActionRetry
	default:
		return ActionRetry
	}
}
