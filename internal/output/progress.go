package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// writerIsTTY returns true if the given writer exposes an Fd() method
// (e.g. *os.File) and that fd is a terminal. Falls back to false for
// plain io.Writer values such as *bytes.Buffer.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}

// Spinner shows progress of a single target step such as deploying or
// fetching results.
// Example: |  Starting target (4s elapsed)
type Spinner struct {
	mu        sync.Mutex
	message   string
	writer    io.Writer
	running   bool
	done      chan struct{}
	startTime time.Time
}

// NewSpinner creates a spinner writing to w. On a non-TTY writer the
// message is printed once and no animation runs, so CI logs stay readable.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		message: message,
		writer:  w,
	}
}

// Start begins the spinner animation. Calling Start on a running spinner
// is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.startTime = time.Now()
	s.done = make(chan struct{})

	if !writerIsTTY(s.writer) {
		fmt.Fprintf(s.writer, "%s...\n", s.message)
		return
	}

	go s.animate(s.done)
}

func (s *Spinner) animate(done <-chan struct{}) {
	chars := []string{"|", "/", "-", "\\"}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for idx := 0; ; idx = (idx + 1) % len(chars) {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.mu.Lock()
			if !s.running {
				s.mu.Unlock()
				return
			}
			elapsed := int(time.Since(s.startTime).Seconds())
			fmt.Fprintf(s.writer, "\r%s  %s (%ds elapsed)", chars[idx], s.message, elapsed)
			s.mu.Unlock()
		}
	}
}

// Stop halts the animation and clears the line on a TTY.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.done)

	if writerIsTTY(s.writer) {
		fmt.Fprintf(s.writer, "\r%s\r", strings.Repeat(" ", len(s.message)+24))
	}
}

// StopWithMessage stops the spinner and prints a final message.
func (s *Spinner) StopWithMessage(message string) {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.writer, message)
}
