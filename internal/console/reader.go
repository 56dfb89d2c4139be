// Package console reads operator input for the sender.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// isTerminal is swapped in tests.
var isTerminal = term.IsTerminal

type result struct {
	text string
	err  error
}

// LineReader yields one operator line per call. Reads happen on a single
// background goroutine so ReadLine can honor ctx while stdin blocks.
type LineReader struct {
	in     io.Reader
	out    io.Writer
	prompt bool

	once  sync.Once
	lines chan result
	mu    sync.Mutex
	done  bool
}

// NewLineReader reads from in and writes prompts to out. Prompts are only
// written when in is an interactive terminal.
func NewLineReader(in io.Reader, out io.Writer) *LineReader {
	r := &LineReader{in: in, out: out, lines: make(chan result)}
	if f, ok := in.(*os.File); ok {
		r.prompt = isTerminal(int(f.Fd()))
	}
	return r
}

// Stdio is the reader the commands use.
func Stdio() *LineReader {
	return NewLineReader(os.Stdin, os.Stdout)
}

func (r *LineReader) pump() {
	sc := bufio.NewScanner(r.in)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		r.lines <- result{text: strings.TrimRight(sc.Text(), "\r")}
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	r.lines <- result{err: err}
	close(r.lines)
}

// ReadLine prints prompt (terminals only) and returns the next line without
// its terminator. io.EOF is returned once input is exhausted.
func (r *LineReader) ReadLine(ctx context.Context, prompt string) (string, error) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return "", io.EOF
	}
	r.mu.Unlock()

	r.once.Do(func() { go r.pump() })
	if r.prompt && prompt != "" && r.out != nil {
		fmt.Fprint(r.out, prompt)
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-r.lines:
		if !ok {
			return "", io.EOF
		}
		if res.err != nil {
			r.mu.Lock()
			r.done = true
			r.mu.Unlock()
			if errors.Is(res.err, io.EOF) {
				return "", io.EOF
			}
			return "", fmt.Errorf("console: read: %w", res.err)
		}
		return res.text, nil
	}
}

// Nickname satisfies handshake.NicknameSource. The server prompt has already
// been displayed by the handshake; exhausted input yields an empty answer.
func (r *LineReader) Nickname(ctx context.Context, _ string) (string, error) {
	text, err := r.ReadLine(ctx, "> ")
	if errors.Is(err, io.EOF) {
		return "", nil
	}
	return strings.TrimSpace(text), err
}
