package line

import (
	"bufio"
	"context"
	"errors"
	"io"
	"iter"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/minechat/internal/protocol"
)

const DefaultMaxLineBytes = 64 * 1024

var ErrEmbeddedNewline = errors.New("line: text contains a line delimiter")

// Options bounds transport I/O. Zero read/write timeouts mean "wait for the
// peer or the context, whichever comes first".
type Options struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxLineBytes   int
}

// Transport is a connected byte stream with newline-delimited read/write.
// Reads and writes are not safe for concurrent use; Close is.
type Transport struct {
	conn   net.Conn
	reader *bufio.Reader
	addr   string
	opts   Options
	lines  atomic.Int64

	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error
}

// Dial connects to ep. A connect that exceeds ConnectTimeout is KindTimeout,
// an active refusal is KindRefused, anything else is KindNetworkFailure.
// Context cancellation is returned as ctx.Err() unwrapped.
func Dial(ctx context.Context, ep Endpoint, opts Options) (*Transport, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	addr := ep.Address()
	dialer := net.Dialer{Timeout: opts.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyDial(addr, err)
	}
	return New(conn, opts), nil
}

func classifyDial(addr string, err error) error {
	kind := protocol.Classify(err)
	switch kind {
	case protocol.KindTimeout, protocol.KindRefused:
	default:
		kind = protocol.KindNetworkFailure
	}
	return &protocol.Error{Op: "dial", Kind: kind, Addr: addr, Err: err}
}

// New wraps an established connection.
func New(conn net.Conn, opts Options) *Transport {
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = DefaultMaxLineBytes
	}
	addr := ""
	if ra := conn.RemoteAddr(); ra != nil {
		addr = ra.String()
	}
	return &Transport{
		conn:   conn,
		reader: bufio.NewReader(conn),
		addr:   addr,
		opts:   opts,
	}
}

func (t *Transport) RemoteAddr() string { return t.addr }

// LinesRead counts complete lines returned by ReadLine on this connection.
func (t *Transport) LinesRead() int64 { return t.lines.Load() }

func (t *Transport) Closed() bool { return t.closed.Load() }

// ReadLine blocks for the next line and returns it without the delimiter.
// End of stream on a line boundary is KindConnectionClosed; end of stream with
// buffered bytes is KindMalformedLine carrying the partial content.
func (t *Transport) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if t.closed.Load() {
		return "", &protocol.Error{Op: "read", Kind: protocol.KindConnectionClosed, Addr: t.addr, Err: net.ErrClosed}
	}
	if err := t.conn.SetReadDeadline(t.deadline(ctx, t.opts.ReadTimeout)); err != nil {
		return "", t.ioError(ctx, "read", err, nil)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = t.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	var buf []byte
	for {
		chunk, err := t.reader.ReadSlice('\n')
		buf = append(buf, chunk...)
		// The limit applies to line content; the delimiter is not counted.
		size := len(buf)
		if err == nil {
			size = len(trimDelimiter(string(buf)))
		}
		if size > t.opts.MaxLineBytes {
			return "", &protocol.Error{
				Op:      "read",
				Kind:    protocol.KindMalformedLine,
				Addr:    t.addr,
				Partial: decode(buf[:min(len(buf), 256)]),
				Err:     errors.New("line exceeds size limit"),
			}
		}
		if err == nil {
			t.lines.Add(1)
			return trimDelimiter(decode(buf)), nil
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return "", t.ioError(ctx, "read", err, buf)
	}
}

// Lines yields lines until the first failure, which is yielded once with an
// empty line before the sequence ends. Each connection gets a fresh sequence.
func (t *Transport) Lines(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			line, err := t.ReadLine(ctx)
			if err != nil {
				yield("", err)
				return
			}
			if !yield(line, nil) {
				return
			}
		}
	}
}

// WriteLine writes text plus the delimiter and returns once the bytes are
// handed to the kernel.
func (t *Transport) WriteLine(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(text, "\r\n") {
		return ErrEmbeddedNewline
	}
	if t.closed.Load() {
		return &protocol.Error{Op: "write", Kind: protocol.KindNetworkFailure, Addr: t.addr, Err: net.ErrClosed}
	}
	if err := t.conn.SetWriteDeadline(t.deadline(ctx, t.opts.WriteTimeout)); err != nil {
		return t.ioError(ctx, "write", err, nil)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = t.conn.SetWriteDeadline(time.Unix(1, 0))
	})
	defer stop()

	payload := make([]byte, 0, len(text)+1)
	payload = append(payload, text...)
	payload = append(payload, '\n')
	for len(payload) > 0 {
		n, err := t.conn.Write(payload)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			kind := protocol.KindNetworkFailure
			if protocol.Classify(err) == protocol.KindTimeout {
				kind = protocol.KindTimeout
			}
			return &protocol.Error{Op: "write", Kind: kind, Addr: t.addr, Err: err}
		}
		payload = payload[n:]
	}
	return nil
}

// Close releases the connection. Repeated calls are no-ops returning nil.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		t.closeErr = t.conn.Close()
		if errors.Is(t.closeErr, net.ErrClosed) {
			t.closeErr = nil
		}
		err = t.closeErr
	})
	return err
}

func (t *Transport) deadline(ctx context.Context, timeout time.Duration) time.Time {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (deadline.IsZero() || ctxDeadline.Before(deadline)) {
		deadline = ctxDeadline
	}
	return deadline
}

func (t *Transport) ioError(ctx context.Context, op string, err error, partial []byte) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, io.EOF) {
		if len(partial) == 0 {
			return &protocol.Error{Op: op, Kind: protocol.KindConnectionClosed, Addr: t.addr, Err: err}
		}
		return &protocol.Error{
			Op:      op,
			Kind:    protocol.KindMalformedLine,
			Addr:    t.addr,
			Partial: decode(partial),
			Err:     io.ErrUnexpectedEOF,
		}
	}
	kind := protocol.KindNetworkFailure
	if protocol.Classify(err) == protocol.KindTimeout {
		kind = protocol.KindTimeout
	}
	return &protocol.Error{Op: op, Kind: kind, Addr: t.addr, Err: err}
}

func decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "")
}

func trimDelimiter(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
