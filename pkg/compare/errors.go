package compare

import (
	"context"
	"errors"
	"fmt"
	"time"
)

//ErrBusy is returned when a session is asked to process while a batch is still running
var ErrBusy = errors.New("session is already processing")

//ErrClosed is returned when a batch is started on a closed session
var ErrClosed = errors.New("session is closed")

//ErrNoSample is returned by cursor moves to a position the session does not hold
var ErrNoSample = errors.New("no such sample")

//EstimationFailure means the estimator rejected one frame. The frame is kept without a skeleton and the batch goes on.
type EstimationFailure struct {
	Frame int
	Err   error
}

func (e *EstimationFailure) Error() string {
	return fmt.Sprintf("estimation failed on frame %d: %v", e.Frame, e.Err)
}

func (e *EstimationFailure) Unwrap() error { return e.Err }

//InitializationFailure means the estimator could not be created. It aborts the whole batch.
type InitializationFailure struct {
	Kind string
	Err  error
}

func (e *InitializationFailure) Error() string {
	return fmt.Sprintf("failed to initialize %s estimator: %v", e.Kind, e.Err)
}

func (e *InitializationFailure) Unwrap() error { return e.Err }

//FrameTimeoutError means a seek or an estimate did not finish before its deadline
type FrameTimeoutError struct {
	Op      string
	Frame   int
	Timeout time.Duration
}

func (e *FrameTimeoutError) Error() string {
	return fmt.Sprintf("%s of frame %d timed out after %s", e.Op, e.Frame, e.Timeout)
}

//fatal reports whether err must stop the batch instead of skipping the current frame.
//Per-call deadlines are already turned into FrameTimeoutError, a bare context error belongs to the caller.
func fatal(err error) bool {
	var initErr *InitializationFailure
	return errors.As(err, &initErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
