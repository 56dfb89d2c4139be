package line_test

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/minechat/internal/protocol"
	"github.com/danmuck/minechat/internal/protocol/line"
	"github.com/danmuck/minechat/internal/testutil/chatserver"
	"github.com/danmuck/minechat/internal/testutil/testlog"
)

func testOptions() line.Options {
	return line.Options{
		ConnectTimeout: time.Second,
		WriteTimeout:   time.Second,
		MaxLineBytes:   1024,
	}
}

func TestReadLinesThenCleanClose(t *testing.T) {
	testlog.Start(t)
	srv := chatserver.Start(t, func(c *chatserver.Conn) {
		_ = c.Send("hello")
		_ = c.SendRaw("crlf\r\n")
		_ = c.Send("")
	})

	tr, err := line.Dial(context.Background(), srv.Endpoint(), testOptions())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer tr.Close()

	want := []string{"hello", "crlf", ""}
	for i, w := range want {
		got, err := tr.ReadLine(context.Background())
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if got != w {
			t.Fatalf("read %d: got %q want %q", i, got, w)
		}
	}
	_, err = tr.ReadLine(context.Background())
	if !errors.Is(err, protocol.ErrConnectionClosed) {
		t.Fatalf("expected connection closed, got %v", err)
	}
	if tr.LinesRead() != 3 {
		t.Fatalf("unexpected line count: %d", tr.LinesRead())
	}
}

func TestReadPartialLineIsMalformed(t *testing.T) {
	testlog.Start(t)
	srv := chatserver.Start(t, func(c *chatserver.Conn) {
		_ = c.Send("complete")
		_ = c.SendRaw("dangling")
	})

	tr, err := line.Dial(context.Background(), srv.Endpoint(), testOptions())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer tr.Close()

	if got, err := tr.ReadLine(context.Background()); err != nil || got != "complete" {
		t.Fatalf("first read: %q %v", got, err)
	}
	_, err = tr.ReadLine(context.Background())
	var perr *protocol.Error
	if !errors.As(err, &perr) || perr.Kind != protocol.KindMalformedLine {
		t.Fatalf("expected malformed line, got %v", err)
	}
	if perr.Partial != "dangling" {
		t.Fatalf("unexpected partial: %q", perr.Partial)
	}
}

func TestReadOversizedLineIsMalformed(t *testing.T) {
	testlog.Start(t)
	srv := chatserver.Start(t, func(c *chatserver.Conn) {
		_ = c.Send(strings.Repeat("x", 5000))
	})
	opts := testOptions()
	opts.MaxLineBytes = 100
	tr, err := line.Dial(context.Background(), srv.Endpoint(), opts)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer tr.Close()

	if _, err := tr.ReadLine(context.Background()); !errors.Is(err, protocol.ErrMalformedLine) {
		t.Fatalf("expected malformed line, got %v", err)
	}
}

func TestReadLineAtSizeLimitIsAccepted(t *testing.T) {
	testlog.Start(t)
	exact := strings.Repeat("y", 100)
	srv := chatserver.Start(t, func(c *chatserver.Conn) {
		_ = c.Send(exact)
		_ = c.SendRaw(exact + "\r\n")
		_ = c.Send(exact + "z")
	})
	opts := testOptions()
	opts.MaxLineBytes = 100
	tr, err := line.Dial(context.Background(), srv.Endpoint(), opts)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer tr.Close()

	for i := 0; i < 2; i++ {
		got, err := tr.ReadLine(context.Background())
		if err != nil {
			t.Fatalf("line %d at the limit rejected: %v", i, err)
		}
		if got != exact {
			t.Fatalf("line %d: unexpected content length %d", i, len(got))
		}
	}
	if _, err := tr.ReadLine(context.Background()); !errors.Is(err, protocol.ErrMalformedLine) {
		t.Fatalf("expected malformed line one byte over the limit, got %v", err)
	}
}

func TestReadDropsInvalidUTF8(t *testing.T) {
	testlog.Start(t)
	srv := chatserver.Start(t, func(c *chatserver.Conn) {
		_ = c.SendRaw("caf\xc3\xa9 \xff\xfeok\n")
	})
	tr, err := line.Dial(context.Background(), srv.Endpoint(), testOptions())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer tr.Close()

	got, err := tr.ReadLine(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "café ok" {
		t.Fatalf("unexpected decode: %q", got)
	}
}

func TestWriteLineRoundTrip(t *testing.T) {
	testlog.Start(t)
	received := make(chan string, 1)
	srv := chatserver.Start(t, func(c *chatserver.Conn) {
		got, _ := c.ReadLine()
		received <- got
		_ = c.Send("ack:" + got)
	})
	tr, err := line.Dial(context.Background(), srv.Endpoint(), testOptions())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer tr.Close()

	if err := tr.WriteLine(context.Background(), "ping"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := <-received; got != "ping" {
		t.Fatalf("server got %q", got)
	}
	if got, err := tr.ReadLine(context.Background()); err != nil || got != "ack:ping" {
		t.Fatalf("ack: %q %v", got, err)
	}
	if err := tr.WriteLine(context.Background(), "two\nlines"); !errors.Is(err, line.ErrEmbeddedNewline) {
		t.Fatalf("expected ErrEmbeddedNewline, got %v", err)
	}
}

func TestDialRefused(t *testing.T) {
	testlog.Start(t)
	_, err := line.Dial(context.Background(), chatserver.ClosedPort(t), testOptions())
	if !errors.Is(err, protocol.ErrRefused) {
		t.Fatalf("expected refused, got %v", err)
	}
	if protocol.Classify(err) != protocol.KindRefused {
		t.Fatalf("unexpected classification: %v", protocol.Classify(err))
	}
}

func TestDialTimeoutIsDistinctFromRefused(t *testing.T) {
	testlog.Start(t)
	// 10.255.255.1 is non-routable on most hosts, so SYNs go unanswered.
	ep := line.Endpoint{Host: "10.255.255.1", Port: 5000}
	opts := testOptions()
	opts.ConnectTimeout = 50 * time.Millisecond

	start := time.Now()
	_, err := line.Dial(context.Background(), ep, opts)
	if err == nil {
		t.Skip("non-routable address accepted a connection")
	}
	if !errors.Is(err, protocol.ErrTimeout) {
		t.Skipf("host cannot exercise a connect timeout: %v", err)
	}
	if errors.Is(err, protocol.ErrRefused) {
		t.Fatalf("timeout also matched refused: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("connect timeout not honored, took %v", elapsed)
	}
	if protocol.Classify(err) != protocol.KindTimeout {
		t.Fatalf("unexpected classification: %v", protocol.Classify(err))
	}
}

func TestDialInvalidEndpointIsConfigError(t *testing.T) {
	testlog.Start(t)
	_, err := line.Dial(context.Background(), line.Endpoint{Host: "127.0.0.1", Port: 0}, testOptions())
	if !errors.Is(err, protocol.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
	_, err = line.Dial(context.Background(), line.Endpoint{Host: " ", Port: 80}, testOptions())
	if !errors.Is(err, protocol.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestDialCanceledContext(t *testing.T) {
	testlog.Start(t)
	srv := chatserver.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := line.Dial(ctx, srv.Endpoint(), testOptions())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestReadUnblocksOnCancel(t *testing.T) {
	testlog.Start(t)
	srv := chatserver.Start(t, chatserver.DrainUntilClosed)
	tr, err := line.Dial(context.Background(), srv.Endpoint(), testOptions())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := tr.ReadLine(ctx)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("read did not observe cancellation")
	}
}

func TestReadTimeout(t *testing.T) {
	testlog.Start(t)
	srv := chatserver.Start(t, chatserver.DrainUntilClosed)
	opts := testOptions()
	opts.ReadTimeout = 30 * time.Millisecond
	tr, err := line.Dial(context.Background(), srv.Endpoint(), opts)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer tr.Close()

	if _, err := tr.ReadLine(context.Background()); !errors.Is(err, protocol.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	testlog.Start(t)
	client, server := net.Pipe()
	defer server.Close()
	tr := line.New(client, testOptions())

	if err := tr.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !tr.Closed() {
		t.Fatalf("expected closed transport")
	}
	if _, err := tr.ReadLine(context.Background()); !errors.Is(err, protocol.ErrConnectionClosed) {
		t.Fatalf("read after close: %v", err)
	}
	if err := tr.WriteLine(context.Background(), "x"); !errors.Is(err, protocol.ErrNetworkFailure) {
		t.Fatalf("write after close: %v", err)
	}
}

func TestLinesSequenceEndsWithError(t *testing.T) {
	testlog.Start(t)
	srv := chatserver.Start(t, func(c *chatserver.Conn) {
		_ = c.Send("a")
		_ = c.Send("b")
	})
	tr, err := line.Dial(context.Background(), srv.Endpoint(), testOptions())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer tr.Close()

	var got []string
	var last error
	for l, err := range tr.Lines(context.Background()) {
		if err != nil {
			last = err
			break
		}
		got = append(got, l)
	}
	if strings.Join(got, ",") != "a,b" {
		t.Fatalf("unexpected lines: %v", got)
	}
	if !errors.Is(last, protocol.ErrConnectionClosed) {
		t.Fatalf("expected terminal connection closed, got %v", last)
	}
}

func TestEndpointAddress(t *testing.T) {
	ep := line.Endpoint{Host: "minechat.dvmn.org", Port: 5000}
	if ep.Address() != "minechat.dvmn.org:5000" {
		t.Fatalf("unexpected address: %s", ep.Address())
	}
	if err := (line.Endpoint{Host: "h", Port: 65536}).Validate(); err == nil {
		t.Fatalf("expected out of range port to fail")
	}
}
