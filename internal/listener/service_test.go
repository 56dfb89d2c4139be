package listener

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/minechat/internal/protocol"
	"github.com/danmuck/minechat/internal/protocol/line"
	"github.com/danmuck/minechat/internal/protocol/session"
	"github.com/danmuck/minechat/internal/testutil/chatserver"
	"github.com/danmuck/minechat/internal/testutil/testlog"
)

func TestServePersistsAcrossReconnects(t *testing.T) {
	logger := testlog.Start(t)
	srv := chatserver.Start(t,
		func(c *chatserver.Conn) { _ = c.Send("first") },
		func(c *chatserver.Conn) {},
		func(c *chatserver.Conn) {
			_ = c.Send("second")
			chatserver.DrainUntilClosed(c)
		},
	)

	path := filepath.Join(t.TempDir(), "chat.history")
	if err := os.WriteFile(path, []byte("[01.01.24 00:00] old\n"), 0o644); err != nil {
		t.Fatalf("seed history: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var out bytes.Buffer
	svc, err := NewService(ServiceConfig{
		Endpoint:    srv.Endpoint(),
		HistoryPath: path,
		Session:     session.Config{ConnectTimeout: time.Second, RetryDelay: time.Millisecond},
	}, &out, logger)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		raw, _ := os.ReadFile(path)
		if strings.Contains(string(raw), "second") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("history never received second line: %q", raw)
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 3 || lines[0] != "[01.01.24 00:00] old" ||
		!strings.HasSuffix(lines[1], " first") || !strings.HasSuffix(lines[2], " second") {
		t.Fatalf("unexpected history %q", lines)
	}
	if svc.Loop().Snapshot().Retries < 2 {
		t.Fatalf("expected at least two retries, got %+v", svc.Loop().Snapshot())
	}
	if !strings.Contains(out.String(), "Press Ctrl+C to stop.") {
		t.Fatalf("missing banner: %q", out.String())
	}
}

func TestNewServiceValidatesConfig(t *testing.T) {
	logger := testlog.Start(t)
	_, err := NewService(ServiceConfig{HistoryPath: "x"}, nil, logger)
	if !errors.Is(err, protocol.ErrConfig) {
		t.Fatalf("expected config error for missing host, got %v", err)
	}
	_, err = NewService(ServiceConfig{Endpoint: line.Endpoint{Host: "localhost", Port: 5000}}, nil, logger)
	if !errors.Is(err, ErrHistoryPathRequired) {
		t.Fatalf("expected ErrHistoryPathRequired, got %v", err)
	}
}
