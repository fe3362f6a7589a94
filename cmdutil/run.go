// Package cmdutil provides small helpers for hosts that drive a
// sim.Controller alongside other goroutines — grounded on engine.Engine's
// context+goroutine pattern, generalized to golang.org/x/sync/errgroup so a
// driver can wait on the controller's run loop together with sibling
// goroutines (a progress reporter, a signal watcher) and propagate the
// first error from any of them.
package cmdutil

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunWithSiblings runs controllerRun (typically a *sim.Controller.Run call
// bound to its arguments via a closure) in an errgroup alongside any extra
// goroutines, returning the first non-nil error from any of them. Every
// function, controllerRun included, receives the errgroup-derived context,
// so the first error from any one of them cancels the context the others
// see.
func RunWithSiblings(ctx context.Context, controllerRun func(context.Context) error, siblings ...func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return controllerRun(gctx) })
	for _, fn := range siblings {
		fn := fn
		g.Go(func() error { return fn(gctx) })
	}
	return g.Wait()
}
