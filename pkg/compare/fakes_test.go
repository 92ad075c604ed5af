package compare

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chenBenjamin97/pose-compare/pkg/pose"
)

type fakeFrame struct {
	src    *fakeSource
	idx    int
	closed atomic.Bool
}

func (f *fakeFrame) Size() image.Point { return image.Pt(640, 480) }

func (f *fakeFrame) Close() error {
	if f.closed.CompareAndSwap(false, true) {
		f.src.closed.Add(1)
	}
	return nil
}

type fakeSource struct {
	name   string
	opened atomic.Int32
	closed atomic.Int32
	//seek runs before a frame is handed out, an error fails the seek
	seek func(ctx context.Context, idx int) error
}

func (s *fakeSource) Seek(ctx context.Context, idx int) (Frame, error) {
	if s.seek != nil {
		if err := s.seek(ctx, idx); err != nil {
			return nil, err
		}
	}
	s.opened.Add(1)
	return &fakeFrame{src: s, idx: idx}, nil
}

func (s *fakeSource) Close() error { return nil }

type fakeEstimator struct {
	mu    sync.Mutex
	calls map[string]int
	//estimate overrides the default torso pose, attempt counts from 1 per frame
	estimate func(ctx context.Context, f *fakeFrame, attempt int) ([]*pose.Pose, error)

	active    atomic.Int32
	maxActive atomic.Int32
	closed    atomic.Bool
	usedAfter atomic.Bool
	//afterClose counts calls made on a closed estimator
	afterClose        atomic.Int32
	closedWhileActive atomic.Bool
}

func newFakeEstimator() *fakeEstimator {
	return &fakeEstimator{calls: make(map[string]int)}
}

func callKey(src string, idx int) string {
	return fmt.Sprintf("%s/%d", src, idx)
}

func (e *fakeEstimator) Calls(src string, idx int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[callKey(src, idx)]
}

func (e *fakeEstimator) Estimate(ctx context.Context, f Frame, opts EstimateOptions) ([]*pose.Pose, error) {
	n := e.active.Add(1)
	defer e.active.Add(-1)
	for {
		m := e.maxActive.Load()
		if n <= m || e.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	if e.closed.Load() {
		e.afterClose.Add(1)
	}
	ff := f.(*fakeFrame)
	if ff.closed.Load() {
		e.usedAfter.Store(true)
	}

	e.mu.Lock()
	e.calls[callKey(ff.src.name, ff.idx)]++
	attempt := e.calls[callKey(ff.src.name, ff.idx)]
	e.mu.Unlock()

	if e.estimate != nil {
		return e.estimate(ctx, ff, attempt)
	}
	return []*pose.Pose{torsoPose(float64(ff.idx), 50, 100)}, nil
}

func (e *fakeEstimator) Close() error {
	if e.active.Load() > 0 {
		e.closedWhileActive.Store(true)
	}
	e.closed.Store(true)
	return nil
}

//torsoPose returns a pose whose COG is (cx, cy) and whose torso height is h
func torsoPose(cx, cy, h float64) *pose.Pose {
	return pose.New(
		pose.Keypoint{Name: pose.LeftShoulder, X: cx - 5, Y: cy - h/2, Score: 1},
		pose.Keypoint{Name: pose.RightShoulder, X: cx + 5, Y: cy - h/2, Score: 1},
		pose.Keypoint{Name: pose.LeftHip, X: cx - 5, Y: cy + h/2, Score: 1},
		pose.Keypoint{Name: pose.RightHip, X: cx + 5, Y: cy + h/2, Score: 1},
	)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(t *testing.T, est *fakeEstimator, mutate func(*Options)) *Session {
	t.Helper()
	opts := DefaultOptions()
	opts.FrameTimeout = time.Second
	if mutate != nil {
		mutate(&opts)
	}
	s := NewSession(func(ctx context.Context, cfg EstimatorConfig) (Estimator, error) {
		return est, nil
	}, opts, discardLogger())
	t.Cleanup(func() { s.Close() })
	return s
}
