package drain

import (
	"context"
	"os"
	"os/signal"

	"go.uber.org/zap"
)

// Init installs the coordinator's termination signal handlers (os.Interrupt and
// SIGTERM unless overridden with WithSignals). The first signal received calls
// Quit. Calling Init more than once has no effect beyond the first call.
func (c *Coordinator) Init() {
	c.initOnce.Do(func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, c.signals...)

		go func() {
			sig := <-ch
			c.log().Info("received termination signal", zap.String("signal", sig.String()))
			c.Quit()
		}()
	})
}

// WaitForInterrupt installs the termination signal handlers and blocks until
// shutdown has been triggered, by a signal or by Quit, and every listener has
// been closed.
func (c *Coordinator) WaitForInterrupt() {
	c.Init()

	// The background context never expires, so the error is always nil.
	_ = c.Wait(context.Background())
}
