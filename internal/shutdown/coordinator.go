// Package shutdown turns termination signals into a bounded, one-shot
// server shutdown with a forced process exit as the backstop.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ngenohkevin/hftp/internal/log"
)

// Stopper is the part of the server the coordinator drives
type Stopper interface {
	Stop(ctx context.Context) error
}

// StopperFunc adapts a function to the Stopper interface
type StopperFunc func(ctx context.Context) error

func (f StopperFunc) Stop(ctx context.Context) error {
	return f(ctx)
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithExit replaces os.Exit, mainly for tests
func WithExit(exit func(code int)) Option {
	return func(c *Coordinator) {
		c.exit = exit
	}
}

// WithSignals sets the signals that start a shutdown
func WithSignals(sigs ...os.Signal) Option {
	return func(c *Coordinator) {
		c.signals = sigs
	}
}

// WithOnTrigger registers a hook run once when shutdown begins
func WithOnTrigger(fn func()) Option {
	return func(c *Coordinator) {
		c.onTrigger = fn
	}
}

// Coordinator supervises the server lifetime. The first Trigger clears the
// running flag, starts a graceful stop bounded by the grace period, and arms
// a timer that exits the process when the grace period ends. Later triggers
// are ignored.
type Coordinator struct {
	running   *atomic.Bool
	stopper   Stopper
	grace     time.Duration
	exit      func(code int)
	signals   []os.Signal
	onTrigger func()

	sigCh chan os.Signal
	quit  chan struct{}
	done  chan struct{}

	triggerOnce sync.Once
	exitOnce    sync.Once
	closeOnce   sync.Once
	triggered   atomic.Bool
}

// New creates a coordinator for the given running flag and stopper
func New(running *atomic.Bool, stopper Stopper, grace time.Duration, opts ...Option) *Coordinator {
	c := &Coordinator{
		running: running,
		stopper: stopper,
		grace:   grace,
		exit:    os.Exit,
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
		sigCh:   make(chan os.Signal, 2),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Watch installs the signal handlers and returns immediately
func (c *Coordinator) Watch() {
	signal.Notify(c.sigCh, c.signals...)
	go c.loop()
}

// Close removes the signal handlers. It does not cancel a shutdown in progress.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		signal.Stop(c.sigCh)
		close(c.quit)
	})
}

func (c *Coordinator) loop() {
	for {
		select {
		case sig := <-c.sigCh:
			if !c.Trigger(sig.String()) {
				log.Warn("Received %s, shutdown already in progress", sig)
			}
		case <-c.quit:
			return
		}
	}
}

// Trigger starts the shutdown sequence. It reports whether this call
// started it; concurrent and repeated calls are no-ops.
func (c *Coordinator) Trigger(reason string) bool {
	started := false
	c.triggerOnce.Do(func() {
		started = true
		c.triggered.Store(true)
		c.running.Store(false)
		log.Info("Shutting down server (%s)...", reason)

		if c.onTrigger != nil {
			c.onTrigger()
		}

		time.AfterFunc(c.grace, func() {
			log.Warn("Shutdown did not finish within %s, forcing exit", c.grace)
			c.Exit(0)
		})

		go c.stop()
	})
	return started
}

func (c *Coordinator) stop() {
	defer close(c.done)

	ctx, cancel := context.WithTimeout(context.Background(), c.grace)
	defer cancel()

	if err := c.stopper.Stop(ctx); err != nil {
		log.Warn("Graceful stop incomplete: %v", err)
		return
	}
	log.Info("Server stopped")
}

// Triggered reports whether shutdown has begun
func (c *Coordinator) Triggered() bool {
	return c.triggered.Load()
}

// Done is closed when the graceful stop returns, whether or not it succeeded
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Exit terminates the process with code. Only the first call has any
// effect, so the forced-exit timer and the normal exit path cannot race.
func (c *Coordinator) Exit(code int) {
	c.exitOnce.Do(func() {
		log.Sync()
		c.exit(code)
	})
}
