package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// NewlineMode controls how a line feed from the teletype is written to the host.
type NewlineMode string

const (
	// NewlineAuto translates LF to CRLF only when the writer is a terminal.
	NewlineAuto   NewlineMode = "auto"
	NewlineAlways NewlineMode = "always"
	NewlineNever  NewlineMode = "never"
)

func ParseNewlineMode(s string) (NewlineMode, error) {
	switch NewlineMode(s) {
	case "", NewlineAuto:
		return NewlineAuto, nil
	case NewlineAlways, NewlineNever:
		return NewlineMode(s), nil
	}
	return "", fmt.Errorf("unknown newline mode %q", s)
}

// Console is the teletype device behind BIOS video function 0x0E.
type Console struct {
	mu   sync.Mutex
	w    io.Writer
	crlf bool
	err  error
}

func New(w io.Writer, mode NewlineMode) *Console {
	c := &Console{w: w}
	switch mode {
	case NewlineAlways:
		c.crlf = true
	case NewlineNever:
		c.crlf = false
	default:
		c.crlf = isTerminal(w)
	}
	return c
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// PutChar writes one character. The teletype call has no failure mode, so a host
// write error is kept for Err and later characters are dropped.
func (c *Console) PutChar(ch byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return
	}
	out := []byte{ch}
	if ch == '\n' && c.crlf {
		out = []byte{'\r', '\n'}
	}
	_, c.err = c.w.Write(out)
}

// Err returns the first host write error.
func (c *Console) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
