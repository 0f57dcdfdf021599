package drain

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	defaultCoordinator *Coordinator
	defaultPipeline    *Pipeline
	defaultLock        sync.Mutex
)

// Default returns the default coordinator. This method is thread-safe.
func Default() *Coordinator {
	if defaultCoordinator == nil {
		defaultLock.Lock()
		defer defaultLock.Unlock()

		// if after acquiring the lock, the coordinator is still nil, then set it.
		if defaultCoordinator == nil {
			defaultCoordinator = New()
		}
	}

	return defaultCoordinator
}

// DefaultPipeline returns the cleanup pipeline bound to the default
// coordinator. This method is thread-safe.
func DefaultPipeline() *Pipeline {
	if defaultPipeline == nil {
		coordinator := Default()

		defaultLock.Lock()
		defer defaultLock.Unlock()

		if defaultPipeline == nil {
			defaultPipeline = NewPipeline(coordinator)
		}
	}

	return defaultPipeline
}

// Listen registers interest in the shutdown trigger with the default
// coordinator and returns the listener handle.
func Listen() *Listener {
	return Default().Listen()
}

// Quit triggers shutdown on the default coordinator, waking every listener.
// Only the first call has any effect.
func Quit() {
	Default().Quit()
}

// Wait blocks until shutdown has been triggered on the default coordinator and
// every listener has been closed, or until ctx is canceled.
func Wait(ctx context.Context) error {
	return Default().Wait(ctx)
}

// Triggered reports whether shutdown has been requested on the default
// coordinator.
func Triggered() bool {
	return Default().Triggered()
}

// Init installs the default coordinator's termination signal handlers. The
// first signal received calls Quit.
func Init() {
	Default().Init()
}

// WaitForInterrupt blocks until a shutdown has been triggered, the default
// pipeline's cleanup hooks have executed and all listeners have been released.
func WaitForInterrupt() {
	DefaultPipeline().WaitForInterrupt()
}

// Trigger executes the default pipeline's cleanup hooks immediately. It does
// not quit the coordinator; use Quit to wake listeners.
func Trigger(ctx context.Context) {
	DefaultPipeline().Trigger(ctx)
}

// AddSteps adds parallel cleanup hooks to the default pipeline. These hooks
// will be executed at the same time together or along with previously added
// hooks if they are also able to run in parallel. In another word, calling
// AddSteps(a) and AddSteps(b) is same as AddSteps(a, b)
func AddSteps(hooks ...NamedHook) {
	DefaultPipeline().AddSteps(hooks...)
}

// AddSequence adds sequencial hooks to the default pipeline meaning that these
// hooks will be executed one at a time and in the same order given.
// Calling AddSequence(a) and AddSequence(b) is same as AddSequence(a, b)
func AddSequence(hooks ...NamedHook) {
	DefaultPipeline().AddSequence(hooks...)
}

// AddParallelSequence is similar to AddSequence but it will execute the hooks
// all at the same time. AddParallelSequence(a) and AddParallelSequence(b) is
// not the same as AddParallelSequence(a, b). In the former, a runs and upon
// completion, b starts whereas in the latter case a and b both get started at
// the same time.
func AddParallelSequence(hooks ...NamedHook) {
	DefaultPipeline().AddParallelSequence(hooks...)
}

// SetTimeout sets the default pipeline's timeout. This indicates that when the
// pipeline runs, the entire iteration must finish within the duration
// specified.
func SetTimeout(duration time.Duration) {
	DefaultPipeline().SetTimeout(duration)
}

// SetCompletionFunc sets a function to get called after all of the default
// pipeline's cleanup hooks have been executed. Regardless of panics or errors,
// this function will always get executed as the very last step.
func SetCompletionFunc(f func()) {
	DefaultPipeline().SetCompletionFunc(f)
}

// SetLogger sets the default coordinator's logger. If set to nil, no logs will
// be written.
func SetLogger(logger *zap.Logger) {
	Default().SetLogger(logger)
}
