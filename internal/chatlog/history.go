// Package chatlog writes received chat lines to an append-only history file
// and echoes them to the console.
package chatlog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// TimestampLayout renders as [DD.MM.YY HH:MM].
const TimestampLayout = "[02.01.06 15:04]"

var ErrPathRequired = errors.New("chatlog: history path required")

// Entry is one timestamped history line.
type Entry struct {
	Time time.Time
	Text string
}

func (e Entry) String() string {
	return FormatEntry(e.Time, e.Text)
}

func FormatEntry(at time.Time, text string) string {
	return at.Format(TimestampLayout) + " " + text
}

// History appends entries to a file that is never truncated or rewritten.
type History struct {
	path string
	echo io.Writer
	now  func() time.Time
}

type Option func(*History)

// WithClock overrides the entry timestamp source.
func WithClock(now func() time.Time) Option {
	return func(h *History) { h.now = now }
}

func NewHistory(path string, echo io.Writer, opts ...Option) (*History, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrPathRequired
	}
	if echo == nil {
		echo = io.Discard
	}
	h := &History{path: path, echo: echo, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *History) Path() string { return h.path }

// EnsureFile creates the history file empty if it is missing. Existing
// content is left untouched.
func (h *History) EnsureFile() error {
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("chatlog: create %s: %w", h.path, err)
	}
	return f.Close()
}

// Append echoes the entry and then writes it to the file. The echo always
// happens; a file error is returned for the caller to log.
func (h *History) Append(text string) (Entry, error) {
	entry := Entry{Time: h.now(), Text: text}
	formatted := entry.String()
	_, _ = fmt.Fprintln(h.echo, formatted)

	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return entry, fmt.Errorf("chatlog: append %s: %w", h.path, err)
	}
	if _, err := f.WriteString(formatted + "\n"); err != nil {
		_ = f.Close()
		return entry, fmt.Errorf("chatlog: append %s: %w", h.path, err)
	}
	if err := f.Close(); err != nil {
		return entry, fmt.Errorf("chatlog: append %s: %w", h.path, err)
	}
	return entry, nil
}
