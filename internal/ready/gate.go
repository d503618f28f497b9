// Package ready provides one-shot readiness gates used by the composition
// root in place of polling for collaborators to appear.
package ready

import (
	"context"
	"sync"
	"time"

	"mediakit/internal/domain"
)

// DefaultTimeout is the diagnostic backstop for Wait.
const DefaultTimeout = 2 * time.Second

// Gate is resolved exactly once. Waiters block until it resolves, the context
// ends, or the timeout expires.
type Gate struct {
	name    string
	timeout time.Duration

	once sync.Once
	done chan struct{}
	err  error
}

// NewGate creates an unresolved gate. A non-positive timeout uses
// DefaultTimeout.
func NewGate(name string, timeout time.Duration) *Gate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gate{name: name, timeout: timeout, done: make(chan struct{})}
}

// Resolve marks the gate ready. Later calls are ignored.
func (g *Gate) Resolve() {
	g.once.Do(func() { close(g.done) })
}

// Fail resolves the gate with an error that every waiter receives. Ignored if
// the gate already resolved.
func (g *Gate) Fail(err error) {
	g.once.Do(func() {
		g.err = err
		close(g.done)
	})
}

// Ready reports whether the gate has resolved successfully.
func (g *Gate) Ready() bool {
	select {
	case <-g.done:
		return g.err == nil
	default:
		return false
	}
}

// Done returns a channel closed on resolution.
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

// Wait blocks until the gate resolves. It returns a DependencyUnavailable
// error when the timeout passes first.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return g.err
	default:
	}

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case <-g.done:
		return g.err
	case <-timer.C:
		return domain.NewError(domain.ErrCodeDependencyUnavailable, "%s not ready after %s", g.name, g.timeout)
	case <-ctx.Done():
		return domain.WrapError(domain.ErrCodeDependencyUnavailable, ctx.Err(), "waiting for %s", g.name)
	}
}
