package drain_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	drain "github.com/meshapi/go-drain"
)

// completesWithin reports whether f returns within the given duration.
func completesWithin(d time.Duration, f func()) bool {
	done := make(chan struct{})
	go func() {
		defer close(done)
		f()
	}()

	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

func TestListenerAccounting(t *testing.T) {
	coordinator := drain.New()

	listener1 := coordinator.Listen()
	listener2 := coordinator.Listen()
	assert.Equal(t, 2, coordinator.Listeners())

	require.NoError(t, listener2.Close())
	assert.Equal(t, 1, coordinator.Listeners())

	// a second close must not decrement again.
	require.NoError(t, listener2.Close())
	assert.Equal(t, 1, coordinator.Listeners())

	require.NoError(t, listener1.Close())
	assert.Equal(t, 0, coordinator.Listeners())
}

func TestWaitWithoutTrigger(t *testing.T) {
	coordinator := drain.New()

	// listener churn alone must never resolve the wait.
	for i := 0; i < 10; i++ {
		listener := coordinator.Listen()
		require.NoError(t, listener.Close())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, coordinator.Wait(ctx), context.DeadlineExceeded)
}

func TestQuitIdempotent(t *testing.T) {
	coordinator := drain.New()
	listener := coordinator.Listen()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			coordinator.Quit()
		}()
	}
	wg.Wait()

	assert.True(t, coordinator.Triggered())

	<-listener.Done()
	require.NoError(t, listener.Close())
	require.NoError(t, coordinator.Wait(context.Background()))
}

func TestAllListenersWoken(t *testing.T) {
	coordinator := drain.New()

	const count = 64
	var woken sync.WaitGroup
	woken.Add(count)
	for i := 0; i < count; i++ {
		listener := coordinator.Listen()
		go func() {
			defer woken.Done()
			defer listener.Close()
			<-listener.Done()
		}()
	}

	coordinator.Quit()

	require.True(t, completesWithin(2*time.Second, woken.Wait), "not all listeners woke up")
	require.True(t, completesWithin(2*time.Second, func() {
		_ = coordinator.Wait(context.Background())
	}))
}

func TestListenAfterQuit(t *testing.T) {
	coordinator := drain.New()
	coordinator.Quit()

	listener := coordinator.Listen()
	defer listener.Close()

	assert.True(t, listener.Triggered())

	select {
	case <-listener.Done():
	default:
		t.Fatal("listener created after the trigger should resolve immediately")
	}

	require.NoError(t, listener.Wait(context.Background()))
}

func TestListenerWaitCanceled(t *testing.T) {
	coordinator := drain.New()
	listener := coordinator.Listen()
	defer listener.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, listener.Wait(ctx), context.DeadlineExceeded)
}

func TestWaitAfterEarlyRelease(t *testing.T) {
	coordinator := drain.New()

	listener := coordinator.Listen()
	require.NoError(t, listener.Close())

	coordinator.Quit()

	require.True(t, completesWithin(time.Second, func() {
		_ = coordinator.Wait(context.Background())
	}), "wait should resolve immediately when all listeners were released before the trigger")
}

func TestWaitBlocksUntilLastRelease(t *testing.T) {
	coordinator := drain.New()

	first := coordinator.Listen()
	second := coordinator.Listen()
	third := coordinator.Listen()

	coordinator.Quit()
	require.NoError(t, first.Close())
	require.NoError(t, second.Close())

	waitDone := make(chan struct{})
	go func() {
		defer close(waitDone)
		_ = coordinator.Wait(context.Background())
	}()

	select {
	case <-waitDone:
		t.Fatal("wait resolved with a listener still open")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, third.Close())

	select {
	case <-waitDone:
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not resolve after the last listener was released")
	}
}

func TestWaitConcurrentCallers(t *testing.T) {
	coordinator := drain.New()
	listener := coordinator.Listen()

	var resolved sync.WaitGroup
	resolved.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer resolved.Done()
			_ = coordinator.Wait(context.Background())
		}()
	}

	coordinator.Quit()
	require.NoError(t, listener.Close())

	require.True(t, completesWithin(2*time.Second, resolved.Wait), "both waiters should resolve")
}

// TestNoMissedWakeup races the last release against the trigger to hit the
// moment where the drained condition only just became true. The wait must
// resolve on every iteration regardless of which side completed the condition.
func TestNoMissedWakeup(t *testing.T) {
	for i := 0; i < 500; i++ {
		coordinator := drain.New()
		listener := coordinator.Listen()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = listener.Close()
		}()
		go func() {
			defer wg.Done()
			coordinator.Quit()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := coordinator.Wait(ctx)
		cancel()
		require.NoError(t, err, "missed wakeup on iteration %d", i)

		wg.Wait()
	}
}

func TestConcurrentListenAndQuit(t *testing.T) {
	coordinator := drain.New()

	var group errgroup.Group
	for i := 0; i < 32; i++ {
		group.Go(func() error {
			for j := 0; j < 200; j++ {
				listener := coordinator.Listen()
				// our own registration is live, so the count can never be
				// below one here.
				if n := coordinator.Listeners(); n < 1 {
					return fmt.Errorf("listener count dropped to %d with a live listener", n)
				}
				if err := listener.Close(); err != nil {
					return err
				}
			}
			return nil
		})
	}
	group.Go(func() error {
		coordinator.Quit()
		return nil
	})

	require.NoError(t, group.Wait())
	assert.Equal(t, 0, coordinator.Listeners())

	require.True(t, completesWithin(2*time.Second, func() {
		_ = coordinator.Wait(context.Background())
	}))
}

func TestSlowListeners(t *testing.T) {
	coordinator := drain.New()

	for i := 0; i < 8; i++ {
		listener := coordinator.Listen()
		go func() {
			defer listener.Close()
			<-listener.Done()

			// cleanup deliberately keeps running past the trigger.
			time.Sleep(150 * time.Millisecond)
		}()
	}

	start := time.Now()
	go func() {
		time.Sleep(100 * time.Millisecond)
		coordinator.Quit()
	}()

	require.NoError(t, coordinator.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond)
}

func TestManyListeners(t *testing.T) {
	coordinator := drain.New()

	for i := 0; i < 64; i++ {
		listener := coordinator.Listen()
		slow := i >= 32
		go func() {
			defer listener.Close()
			<-listener.Done()

			// half of the listeners hold their registration a while longer.
			if slow {
				time.Sleep(200 * time.Millisecond)
			}
		}()
	}

	start := time.Now()
	go func() {
		time.Sleep(100 * time.Millisecond)
		coordinator.Quit()
	}()

	require.NoError(t, coordinator.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}
