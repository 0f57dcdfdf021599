package drain

import (
	"context"
	"fmt"
)

// Hook describes one unit of cleanup work to run during shutdown.
type Hook interface {
	Cleanup(ctx context.Context) error
}

// NamedHook is a hook that has a specific name, used in logs.
type NamedHook interface {
	Hook

	Name() string
}

type namedHook struct {
	Hook
	name string
}

func (n namedHook) Name() string {
	return n.name
}

// HookFunc describes the function signatures that can be used as cleanup hooks.
type HookFunc interface {
	func() | func() error | func(context.Context) | func(context.Context) error
}

// HookWithName returns a named hook wrapping the given hook.
func HookWithName(name string, hook Hook) NamedHook {
	return namedHook{name: name, Hook: hook}
}

// HookFuncWithName returns a named hook for a cleanup function.
//
// Accepted function signatures:
// func ()
// func () error
// func (context.Context)
// func (context.Context) error
func HookFuncWithName[H HookFunc](name string, fn H) NamedHook {
	switch fn := any(fn).(type) {
	case func():
		return namedHook{name: name, Hook: hookFuncNoError(fn)}
	case func() error:
		return namedHook{name: name, Hook: hookFunc(fn)}
	case func(context.Context):
		return namedHook{name: name, Hook: hookFuncContextNoError(fn)}
	case func(context.Context) error:
		return namedHook{name: name, Hook: hookFuncContext(fn)}
	}

	panic(fmt.Sprintf("unexpected function signature for hook: %T", fn))
}

type (
	hookFuncNoError        func()
	hookFunc               func() error
	hookFuncContext        func(context.Context) error
	hookFuncContextNoError func(context.Context)
)

func (h hookFuncNoError) Cleanup(context.Context) error {
	h()
	return nil
}

func (h hookFunc) Cleanup(context.Context) error {
	return h()
}

func (h hookFuncContext) Cleanup(ctx context.Context) error {
	return h(ctx)
}

func (h hookFuncContextNoError) Cleanup(ctx context.Context) error {
	h(ctx)
	return nil
}
