package compare

import (
	"context"
	"errors"
	"time"
)

type result[T any] struct {
	v   T
	err error
}

//withDeadline runs fn under a timeout and gives up waiting when it expires, even when fn ignores its context.
//A value fn produces after the caller gave up is handed to release so it does not leak.
func withDeadline[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error), release func(T)) (T, error) {
	var zero T

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan result[T], 1)
	go func() {
		v, err := fn(runCtx)
		done <- result[T]{v: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && runCtx.Err() != nil {
			return zero, runCtx.Err()
		}
		return r.v, r.err
	case <-runCtx.Done():
		go func() {
			if r := <-done; r.err == nil && release != nil {
				release(r.v)
			}
		}()
		return zero, runCtx.Err()
	}
}

//timedOut reports whether err comes from the per-call deadline rather than from the caller's context
func timedOut(parent context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil
}
