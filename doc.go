// Package drain coordinates graceful process shutdown across independently
// running goroutines.
//
// The package solves one ordering problem: when a termination request arrives,
// either as an operating system signal or a manual Quit call, the process must
// stop accepting new work and give every in-flight task a chance to observe the
// request and finish its cleanup before the process exits. No central owner
// knows in advance how many tasks exist or when they finish, so the tasks
// themselves carry the accounting.
//
// Each task that wants to take part registers a listener:
//
//	listener := drain.Listen()
//	defer listener.Close()
//
//	for {
//		select {
//		case <-listener.Done():
//			// flush buffers, close connections, ...
//			return
//		case job := <-jobs:
//			process(job)
//		}
//	}
//
// Exactly one trigger path requests the shutdown, either the signal handlers
// installed by Init or a direct call:
//
//	drain.Quit()
//
// The top-level driver blocks until the trigger has fired and every listener
// has been closed:
//
//	drain.Init()
//	if err := drain.Wait(ctx); err != nil {
//		// ctx expired before the drain completed
//	}
//
// Quit is idempotent and wakes all current and future listeners; a listener
// created after the trigger resolves immediately, which matters for tasks
// spawned during shutdown. Closing a listener is the only way to release its
// registration, closing it more than once has no effect, and a listener may
// stay open for as long as its task needs after observing the trigger. Wait has
// no built-in deadline: a caller that wants one passes a context with a timeout
// and decides for itself what to do when the drain does not finish in time.
//
// There is a default coordinator available through Default() and package-level
// functions shortcut to it. Independent coordinators can be created with New,
// which also accepts options for structured logging (WithLogger), Prometheus
// metrics (WithMetrics) and the set of termination signals (WithSignals).
//
// On top of the coordination core, the package provides a cleanup pipeline for
// work that should run once shutdown begins, with sequential and parallel
// steps, panic containment and an optional timeout:
//
//	drain.AddSteps(
//		drain.HookFuncWithName("http", server.Shutdown),
//		drain.HookFuncWithName("consumer", consumer.Stop))
//	drain.AddSequence(drain.HookFuncWithName("db", db.Close))
//	drain.WaitForInterrupt()
//
// The pipeline is an ordinary listener underneath: it waits for the trigger,
// runs its hooks and releases its registration, so Wait covers it the same way
// it covers every other task.
package drain
