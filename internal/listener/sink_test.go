package listener

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/minechat/internal/chatlog"
	"github.com/danmuck/minechat/internal/protocol/line"
	"github.com/danmuck/minechat/internal/protocol/session"
	"github.com/danmuck/minechat/internal/testutil/chatserver"
	"github.com/danmuck/minechat/internal/testutil/testlog"
)

var fixed = time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)

func newHistory(t *testing.T, echo *bytes.Buffer) *chatlog.History {
	t.Helper()
	h, err := chatlog.NewHistory(filepath.Join(t.TempDir(), "minechat.history"), echo,
		chatlog.WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("new history: %v", err)
	}
	return h
}

func TestStreamSkipsEmptyLinesAndKeepsOrder(t *testing.T) {
	logger := testlog.Start(t)
	srv := chatserver.Start(t, func(c *chatserver.Conn) {
		for _, text := range []string{"hello", "", "world"} {
			_ = c.Send(text)
		}
	})

	var echo bytes.Buffer
	h := newHistory(t, &echo)
	tr, err := line.Dial(context.Background(), srv.Endpoint(), line.Options{ConnectTimeout: time.Second})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	s := &session.Session{Transport: tr}
	defer s.Close()

	err = NewSink(h, logger).Stream(context.Background(), s)
	if err == nil {
		t.Fatalf("expected stream to end with a transport error")
	}

	raw, err := os.ReadFile(h.Path())
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	want := "[09.03.24 14:05] hello\n[09.03.24 14:05] world\n"
	if string(raw) != want {
		t.Fatalf("unexpected history:\n%q\nwant\n%q", raw, want)
	}
	if echo.String() != want {
		t.Fatalf("unexpected echo %q", echo.String())
	}
}

func TestHandleStripsTrailingWhitespace(t *testing.T) {
	logger := testlog.Start(t)
	var echo bytes.Buffer
	h := newHistory(t, &echo)
	sink := NewSink(h, logger)

	if sink.Handle("   \t") {
		t.Fatalf("whitespace-only line must not be recorded")
	}
	if !sink.Handle("hi there  \t") {
		t.Fatalf("expected line to be recorded")
	}
	if got := strings.TrimSpace(echo.String()); got != "[09.03.24 14:05] hi there" {
		t.Fatalf("unexpected entry %q", got)
	}
}

func TestHandleSurvivesHistoryWriteFailure(t *testing.T) {
	logger := testlog.Start(t)
	dir := t.TempDir()
	var echo bytes.Buffer
	// A directory at the history path makes every append fail.
	path := filepath.Join(dir, "history")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	h, err := chatlog.NewHistory(path, &echo, chatlog.WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("new history: %v", err)
	}
	sink := NewSink(h, logger)
	if !sink.Handle("one") || !sink.Handle("two") {
		t.Fatalf("lines should still count as handled")
	}
	if strings.Count(echo.String(), "\n") != 2 {
		t.Fatalf("echo must continue despite write failures: %q", echo.String())
	}
}
