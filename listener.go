package drain

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Listener represents one task's interest in the shutdown trigger. As long as a
// listener has not been closed, the coordinator's Wait does not return: the
// owning task is counted as still cleaning up.
//
// A listener belongs to the task that created it and must be closed exactly
// once when that task is done, typically with defer:
//
//	listener := drain.Listen()
//	defer listener.Close()
//
//	<-listener.Done()
//	// ... cleanup ...
//
// A task that needs a second handle asks the coordinator for a fresh one rather
// than sharing a listener between goroutines.
type Listener struct {
	coordinator *Coordinator
	closed      atomic.Bool
}

// Done returns a channel that is closed once shutdown has been triggered. A
// listener created after the trigger already fired observes a closed channel
// right away.
func (l *Listener) Done() <-chan struct{} {
	return l.coordinator.state.quit
}

// Triggered reports whether shutdown has been triggered.
func (l *Listener) Triggered() bool {
	return l.coordinator.state.triggered.Load()
}

// Wait blocks until shutdown is triggered or ctx is canceled. It returns
// immediately when the trigger already fired. Waiting does not release the
// listener; that happens only on Close.
func (l *Listener) Wait(ctx context.Context) error {
	select {
	case <-l.coordinator.state.quit:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for shutdown trigger: %w", ctx.Err())
	}
}

// Close releases the listener's registration. Only the first call has any
// effect, so a deferred Close is always safe even when the listener was already
// released explicitly. Once every listener has been closed after a trigger, the
// coordinator's Wait returns. The error is always nil; the signature exists to
// satisfy io.Closer.
func (l *Listener) Close() error {
	if l.closed.CompareAndSwap(false, true) {
		l.coordinator.release()
	}
	return nil
}
