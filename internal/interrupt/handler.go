// Package interrupt turns SIGINT and SIGTERM into context cancellation so
// work can wind down, and forces an exit on a second signal inside a short
// window.
package interrupt

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ExitInterrupt is the exit code for interrupt (130 = 128 + SIGINT).
const ExitInterrupt = 130

// forceWindow is the time window for a second signal to force an exit.
const forceWindow = 2 * time.Second

// DefaultNotice is printed on the first signal.
const DefaultNotice = "\nStopping... press Ctrl+C again to force."

const forceMessage = "\nForced exit."

// Handler cancels a context on the first signal. A second signal within
// forceWindow exits the process immediately.
type Handler struct {
	mu          sync.Mutex
	lastSignal  time.Time
	interrupted bool
	stopped     bool
	cancelFunc  context.CancelFunc
	done        chan struct{} // Signals listen goroutine to exit

	// Injected dependencies (for testing)
	exitFunc func(int)
	nowFunc  func() time.Time
	stderr   io.Writer
	notice   string
}

// Options holds injectable dependencies for testing.
type Options struct {
	SigCh    <-chan os.Signal
	ExitFunc func(int)
	NowFunc  func() time.Time
	// Stderr is the writer for user-facing messages.
	// Must be safe for concurrent writes from multiple goroutines.
	Stderr io.Writer
	// Notice is printed on the first signal. Empty prints nothing.
	Notice string
}

// NewHandler creates a handler that listens for SIGINT/SIGTERM.
// Returns the handler and a context that is canceled on the first signal.
func NewHandler(parent context.Context) (*Handler, context.Context) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return newHandler(parent, Options{SigCh: sigCh, Notice: DefaultNotice})
}

// NewHandlerWithOptions creates a handler with injectable dependencies.
func NewHandlerWithOptions(parent context.Context, opts Options) (*Handler, context.Context) {
	return newHandler(parent, opts)
}

func newHandler(parent context.Context, opts Options) (*Handler, context.Context) {
	ctx, cancel := context.WithCancel(parent)

	exitFunc := opts.ExitFunc
	if exitFunc == nil {
		exitFunc = os.Exit
	}
	nowFunc := opts.NowFunc
	if nowFunc == nil {
		nowFunc = time.Now
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	h := &Handler{
		cancelFunc: cancel,
		done:       make(chan struct{}),
		exitFunc:   exitFunc,
		nowFunc:    nowFunc,
		stderr:     stderr,
		notice:     opts.Notice,
	}

	if opts.SigCh != nil {
		go h.listen(opts.SigCh)
	}

	return h, ctx
}

func (h *Handler) listen(sigCh <-chan os.Signal) {
	for {
		select {
		case <-h.done:
			return
		case _, ok := <-sigCh:
			if !ok {
				return
			}
			if h.handle() {
				return
			}
		}
	}
}

// handle records one signal and reports whether the process was told to exit.
func (h *Handler) handle() bool {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return true
	}
	now := h.nowFunc()
	force := h.interrupted && now.Sub(h.lastSignal) <= forceWindow
	first := !h.interrupted
	h.interrupted = true
	h.lastSignal = now
	h.mu.Unlock()

	if force {
		fmt.Fprintln(h.stderr, forceMessage)
		h.exitFunc(ExitInterrupt)
		return true
	}
	if first {
		if h.notice != "" {
			fmt.Fprintln(h.stderr, h.notice)
		}
		h.cancelFunc()
	}
	return false
}

// WasInterrupted returns true if at least one signal was received.
func (h *Handler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}

// Stop releases the signal subscription. Safe to call more than once.
func (h *Handler) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	signal.Reset(syscall.SIGINT, syscall.SIGTERM)
	close(h.done)
}
