package drain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pipeline runs an ordered set of cleanup hooks once shutdown is triggered.
// Hooks added through AddSteps run in parallel, hooks added through AddSequence
// run one after another, and AddParallelSequence starts a new parallel group
// that waits for all previous groups to finish.
//
// A pipeline is one shutdown task among others: Run takes a listener from its
// coordinator, waits for the trigger, executes the hooks and only then releases
// the listener. The coordinator's Wait therefore covers the pipeline the same
// way it covers every independently registered listener.
type Pipeline struct {
	coordinator *Coordinator

	steps          []pipelineStep
	timeout        time.Duration
	completionFunc func()
	lock           sync.Mutex
}

// NewPipeline creates a pipeline bound to the given coordinator. Passing nil
// binds it to the default coordinator.
func NewPipeline(coordinator *Coordinator) *Pipeline {
	if coordinator == nil {
		coordinator = Default()
	}

	return &Pipeline{coordinator: coordinator}
}

// SetTimeout sets the pipeline timeout. This indicates that when the pipeline
// runs, the entire iteration must finish within the duration specified.
//
// NOTE: If the pipeline times out, the completion function is still called and
// hooks already started keep running, but Run and Trigger return without
// waiting for the remaining steps. This policy is the pipeline's own; the
// coordinator it is bound to never enforces a deadline.
func (p *Pipeline) SetTimeout(duration time.Duration) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.timeout = duration
}

// SetCompletionFunc sets a function to get called after all of the cleanup
// hooks have been executed. Regardless of panics or errors, this function will
// always get executed as the very last step, even when the pipeline times out.
func (p *Pipeline) SetCompletionFunc(f func()) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.completionFunc = f
}

// AddSteps adds parallel cleanup hooks. These hooks will be executed at the
// same time together or along with previously added hooks if they are also able
// to run in parallel. In another word, calling AddSteps(a) and AddSteps(b) is
// same as AddSteps(a, b)
func (p *Pipeline) AddSteps(hooks ...NamedHook) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.add(hooks, true)
}

// AddSequence adds sequencial hooks meaning that these hooks will be executed
// one at a time and in the same order given.
// Calling AddSequence(a) and AddSequence(b) is same as AddSequence(a, b)
func (p *Pipeline) AddSequence(hooks ...NamedHook) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.add(hooks, false)
}

// AddParallelSequence is similar to AddSequence but it will execute the hooks
// all at the same time. AddParallelSequence(a) and AddParallelSequence(b) is
// not the same as AddParallelSequence(a, b). In the former, a runs and upon
// completion, b starts whereas in the latter case a and b both get started at
// the same time.
func (p *Pipeline) AddParallelSequence(hooks ...NamedHook) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.steps = append(p.steps, pipelineStep{hooks: hooks, parallel: true})
}

// add appends hooks to the last step when the parallelism status matches,
// starting a new step otherwise. Callers must hold the lock.
func (p *Pipeline) add(hooks []NamedHook, parallel bool) {
	if len(p.steps) > 0 {
		lastStep := &p.steps[len(p.steps)-1]
		if lastStep.parallel == parallel {
			lastStep.hooks = append(lastStep.hooks, hooks...)
			return
		}
	}

	p.steps = append(p.steps, pipelineStep{hooks: hooks, parallel: parallel})
}

// Run blocks until shutdown is triggered, then executes the pipeline. The
// pipeline holds a listener for its whole lifetime so that the coordinator's
// Wait does not return before the hooks have finished. Run returns ctx's error
// when ctx is canceled before the trigger fires.
func (p *Pipeline) Run(ctx context.Context) error {
	return p.run(ctx, p.coordinator.Listen())
}

func (p *Pipeline) run(ctx context.Context, listener *Listener) error {
	defer listener.Close()

	if err := listener.Wait(ctx); err != nil {
		return err
	}

	p.Trigger(ctx)

	return nil
}

// WaitForInterrupt installs the coordinator's termination signal handlers and
// blocks until a shutdown has been triggered, the pipeline has executed and
// every other listener has been released.
func (p *Pipeline) WaitForInterrupt() {
	// The listener is registered before the signal handlers so that a signal
	// arriving right away cannot drain the coordinator ahead of the pipeline.
	listener := p.coordinator.Listen()
	p.coordinator.Init()

	_ = p.run(context.Background(), listener)
	_ = p.coordinator.Wait(context.Background())
}

// Trigger executes the pipeline immediately. It acquires a lock on the pipeline
// so all changes to the pipeline get blocked until the iteration has completed.
// Errors and panics inside hooks are logged and do not stop the remaining
// steps. Trigger does not quit the coordinator; use Quit to wake listeners.
func (p *Pipeline) Trigger(ctx context.Context) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if len(p.steps) == 0 {
		return
	}

	if p.timeout != 0 {
		newCtx, cancel := context.WithTimeout(ctx, p.timeout)
		ctx = newCtx
		defer cancel()
	}

	totalHooks := 0
	for _, step := range p.steps {
		totalHooks += len(step.hooks)
	}

	logger := p.coordinator.log()
	errorCount := 0

	// The buffer lets hooks abandoned by a timeout deliver their result and
	// exit instead of blocking on the send forever.
	results := make(chan hookResult, totalHooks)

mainLoop:
	for _, step := range p.steps {
		remainingHooks := len(step.hooks)

		go func(step pipelineStep) {
			for _, hook := range step.hooks {
				if step.parallel {
					go p.runHook(ctx, hook, results)
				} else {
					p.runHook(ctx, hook, results)
				}
			}
		}(step)

		for remainingHooks > 0 {
			select {
			case result := <-results:
				if result.err != nil {
					errorCount++
					logger.Error("cleanup hook failed", zap.String("hook", result.name), zap.Error(result.err))
				} else {
					logger.Info("cleanup hook completed", zap.String("hook", result.name))
				}
				remainingHooks--
			case <-ctx.Done():
				errorCount++
				logger.Error("cleanup pipeline interrupted", zap.Error(ctx.Err()))
				break mainLoop
			}
		}
	}

	if p.completionFunc != nil {
		p.completionFunc()
	}

	if errorCount > 0 {
		logger.Error("cleanup pipeline completed", zap.Int("errors", errorCount))
	} else {
		logger.Info("cleanup pipeline completed with no errors")
	}
}

func (p *Pipeline) runHook(ctx context.Context, hook NamedHook, results chan<- hookResult) {
	var err error

	defer func() {
		if panicErr := recover(); panicErr != nil {
			results <- hookResult{name: hook.Name(), err: fmt.Errorf("panic: %v", panicErr)}
		} else {
			results <- hookResult{name: hook.Name(), err: err}
		}
	}()

	err = hook.Cleanup(ctx)
}

type pipelineStep struct {
	hooks    []NamedHook
	parallel bool
}

type hookResult struct {
	err  error
	name string
}
