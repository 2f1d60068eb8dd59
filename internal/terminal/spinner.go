// Package terminal handles raw input and progress feedback on the console.
package terminal

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

const (
	colorReset = "\033[0m"
	colorCyan  = "\033[36m"
)

// Spinner shows progress while a backend call is in flight. It draws
// nothing when out isn't a terminal.
type Spinner struct {
	out     io.Writer
	enabled bool

	mu   sync.Mutex
	done chan struct{}
	wg   sync.WaitGroup
}

// NewSpinner creates a spinner writing to out.
func NewSpinner(out io.Writer) *Spinner {
	return &Spinner{out: out, enabled: IsTerminal(out)}
}

// Start displays a spinner with a message, replacing any running one.
func (s *Spinner) Start(msg string) {
	s.Stop()
	if !s.enabled {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = make(chan struct{})
	s.wg.Add(1)

	go func(done <-chan struct{}) {
		defer s.wg.Done()
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for i := 0; ; i = (i + 1) % len(frames) {
			fmt.Fprintf(s.out, "\r%s%s %s%s", colorCyan, frames[i], msg, colorReset)
			select {
			case <-done:
				// Clear the spinner line
				fmt.Fprint(s.out, "\r\033[2K\r")
				return
			case <-ticker.C:
			}
		}
	}(s.done)
}

// Stop stops the spinner and waits until its line is cleared.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// IsTerminal checks if w is a terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
