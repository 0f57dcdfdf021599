package drain

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Coordinator owns the shutdown protocol for one process: it hands out
// listeners, accepts the quit trigger and lets the top-level driver block until
// every listener has been released.
type Coordinator struct {
	state   *state
	signals []os.Signal

	logger  atomic.Pointer[zap.Logger]
	metrics *metrics

	initOnce sync.Once
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used for shutdown progress logs. Without this
// option the coordinator stays silent.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		c.SetLogger(logger)
	}
}

// WithMetrics registers the coordinator's metrics with the given registerer.
// Without this option no metrics are collected.
func WithMetrics(registerer prometheus.Registerer) Option {
	return func(c *Coordinator) {
		c.metrics = newMetrics(registerer)
	}
}

// WithSignals overrides the termination signals Init subscribes to. The default
// set is os.Interrupt and SIGTERM.
func WithSignals(signals ...os.Signal) Option {
	return func(c *Coordinator) {
		c.signals = signals
	}
}

// New creates a new shutdown coordinator.
func New(opts ...Option) *Coordinator {
	coordinator := &Coordinator{
		state:   newState(),
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
	coordinator.logger.Store(zap.NewNop())

	for _, opt := range opts {
		opt(coordinator)
	}

	return coordinator
}

// Listen registers interest in the shutdown trigger and returns the listener
// handle. The handle must be closed when the owning task has finished its
// cleanup; until then Wait keeps blocking. Listening is always valid, including
// after the trigger already fired, in which case the listener resolves
// immediately.
func (c *Coordinator) Listen() *Listener {
	c.state.register()

	if c.metrics != nil {
		c.metrics.listenersActive.Inc()
	}

	return &Listener{coordinator: c}
}

func (c *Coordinator) release() {
	if c.metrics != nil {
		c.metrics.listenersActive.Dec()
	}

	c.state.release()
}

// Quit triggers shutdown. The first call wakes every current and future
// listener; subsequent calls do nothing. The underlying trigger uses only
// atomic operations and a channel close, so Quit is safe to call concurrently
// from any number of goroutines, including the signal delivery path.
func (c *Coordinator) Quit() {
	if !c.state.trigger() {
		return
	}

	c.log().Info("shutdown triggered", zap.Int("listeners", c.Listeners()))

	if c.metrics != nil {
		c.metrics.triggered.Inc()

		start := time.Now()
		go func() {
			<-c.state.drained
			c.metrics.drainDuration.Observe(time.Since(start).Seconds())
		}()
	}
}

// Wait blocks until shutdown has been triggered and every listener has been
// closed, or until ctx is canceled. The coordinator itself never forces the
// drain to end; a caller that wants a deadline passes one in through ctx.
// Concurrent calls are allowed and all resolve on the same condition.
func (c *Coordinator) Wait(ctx context.Context) error {
	select {
	case <-c.state.drained:
		c.log().Info("shutdown drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for shutdown drain: %w", ctx.Err())
	}
}

// Triggered reports whether shutdown has been requested.
func (c *Coordinator) Triggered() bool {
	return c.state.triggered.Load()
}

// Listeners returns the number of listeners that have not been closed yet.
func (c *Coordinator) Listeners() int {
	return int(c.state.listeners.Load())
}

// SetLogger replaces the coordinator's logger. Setting nil silences it.
func (c *Coordinator) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c.logger.Store(logger)
}

func (c *Coordinator) log() *zap.Logger {
	return c.logger.Load()
}
