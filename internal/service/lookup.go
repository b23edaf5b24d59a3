package service

import (
	"context"
	"errors"
	"time"

	"github.com/fleetdesk/leaveguard/internal/domain"
)

// withTimeout runs fn under its own deadline. A collaborator that misses the
// deadline yields a DependencyTimeoutError even if it ignores ctx.
func withTimeout[T any](ctx context.Context, timeout time.Duration, dependency string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(callCtx)
		ch <- result{v: v, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, &domain.DependencyTimeoutError{Dependency: dependency, Timeout: timeout, Err: r.err}
		}
		return r.v, r.err
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, &domain.DependencyTimeoutError{Dependency: dependency, Timeout: timeout, Err: callCtx.Err()}
	}
}
