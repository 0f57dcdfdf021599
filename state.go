package drain

import (
	"sync"
	"sync/atomic"
)

// state is the shared bookkeeping behind a Coordinator: the quit flag, the live
// listener count and the channels used to wake waiters.
type state struct {
	triggered atomic.Bool
	listeners atomic.Int64

	// quit is closed when shutdown is triggered. Closing a channel wakes every
	// goroutine currently blocked on it and lets any later receive complete
	// immediately, which is exactly the broadcast listeners need.
	quit chan struct{}

	// drained is closed once shutdown has been triggered and the listener count
	// has reached zero. drainOnce guards the close because the trigger path and
	// the release path may both observe the condition.
	drained   chan struct{}
	drainOnce sync.Once
}

func newState() *state {
	return &state{
		quit:    make(chan struct{}),
		drained: make(chan struct{}),
	}
}

// register adds one live listener.
func (s *state) register() {
	s.listeners.Add(1)
}

// release removes one live listener and, if it was the last one after shutdown
// has been triggered, marks the state drained.
//
// The flag is loaded after the decrement, while trigger stores the flag before
// loading the count. Go's atomics are sequentially consistent, so whichever of
// the two operations completes the drained condition is guaranteed to observe
// the other half and close the channel. There is no window in which the
// condition holds but nobody notices.
func (s *state) release() {
	if n := s.listeners.Add(-1); n == 0 && s.triggered.Load() {
		s.markDrained()
	}
}

// trigger flips the quit flag and wakes everyone waiting on it. Only the first
// call has any effect; it reports whether this call made the transition. The
// whole operation is a compare-and-swap, a channel close and an atomic load, so
// it never blocks and never allocates.
func (s *state) trigger() bool {
	if !s.triggered.CompareAndSwap(false, true) {
		return false
	}

	close(s.quit)

	if s.listeners.Load() == 0 {
		s.markDrained()
	}

	return true
}

func (s *state) markDrained() {
	s.drainOnce.Do(func() {
		close(s.drained)
	})
}
