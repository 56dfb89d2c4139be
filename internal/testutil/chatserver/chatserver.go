// Package chatserver runs scripted line-protocol peers for tests.
package chatserver

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/minechat/internal/protocol/line"
)

// Handler scripts one accepted connection. The connection is closed when the
// handler returns.
type Handler func(c *Conn)

// Conn is the server side of one accepted connection.
type Conn struct {
	net.Conn
	reader *bufio.Reader
	Index  int
}

func (c *Conn) Send(text string) error {
	_ = c.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err := c.Write([]byte(text + "\n"))
	return err
}

// SendRaw writes bytes without a trailing delimiter.
func (c *Conn) SendRaw(text string) error {
	_ = c.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err := c.Write([]byte(text))
	return err
}

func (c *Conn) ReadLine() (string, error) {
	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
	raw, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(raw, "\r\n"), nil
}

// Server accepts connections and hands the Nth one to handlers[N]; once the
// script is exhausted the last handler repeats.
type Server struct {
	ln       net.Listener
	handlers []Handler
	accepted atomic.Int64
	open     atomic.Int64
	maxOpen  atomic.Int64
	wg       sync.WaitGroup
	once     sync.Once
}

func Start(t testing.TB, handlers ...Handler) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if len(handlers) == 0 {
		handlers = []Handler{func(*Conn) {}}
	}
	s := &Server{ln: ln, handlers: handlers}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		idx := int(s.accepted.Add(1)) - 1
		h := s.handlers[min(idx, len(s.handlers)-1)]
		open := s.open.Add(1)
		for {
			prev := s.maxOpen.Load()
			if open <= prev || s.maxOpen.CompareAndSwap(prev, open) {
				break
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.open.Add(-1)
			defer conn.Close()
			h(&Conn{Conn: conn, reader: bufio.NewReader(conn), Index: idx})
		}()
	}
}

func (s *Server) Endpoint() line.Endpoint {
	addr := s.ln.Addr().(*net.TCPAddr)
	return line.Endpoint{Host: "127.0.0.1", Port: addr.Port}
}

// Accepted is the number of connections accepted so far.
func (s *Server) Accepted() int { return int(s.accepted.Load()) }

// MaxConcurrent is the highest number of simultaneously open connections seen.
func (s *Server) MaxConcurrent() int { return int(s.maxOpen.Load()) }

func (s *Server) Close() {
	s.once.Do(func() {
		_ = s.ln.Close()
		s.wg.Wait()
	})
}

// DrainUntilClosed blocks until the client hangs up.
func DrainUntilClosed(c *Conn) {
	_ = c.SetReadDeadline(time.Now().Add(10 * time.Second))
	buf := make([]byte, 256)
	for {
		if _, err := c.Read(buf); err != nil {
			return
		}
	}
}

// ClosedPort returns a loopback endpoint nothing listens on.
func ClosedPort(t testing.TB) line.Endpoint {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return line.Endpoint{Host: "127.0.0.1", Port: port}
}
