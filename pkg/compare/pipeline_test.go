package compare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenBenjamin97/pose-compare/pkg/align"
	"github.com/chenBenjamin97/pose-compare/pkg/pose"
	"github.com/chenBenjamin97/pose-compare/pkg/utils"
)

func TestProcessRange(t *testing.T) {
	est := newFakeEstimator()
	s := newTestSession(t, est, nil)
	src := &fakeSource{name: "a"}

	var progress [][2]int
	rep, err := s.ProcessRange(context.Background(), src, utils.FrameRange{Start: 0, End: 99}, Hooks{
		Progress: func(done, total int) { progress = append(progress, [2]int{done, total}) },
	})
	require.NoError(t, err)

	assert.Equal(t, 50, rep.Requested)
	assert.Equal(t, 50, rep.Kept)
	assert.Empty(t, rep.Skipped)
	assert.Empty(t, rep.Failed)
	require.Equal(t, 50, s.Len())
	assert.False(t, s.Running())

	for i, sample := range s.Samples() {
		assert.Equal(t, i, sample.Position)
		assert.Equal(t, []int{2 * i}, sample.Frames)
		require.Len(t, sample.Poses, 1)
		assert.NotNil(t, sample.Poses[0])
		assert.Equal(t, []align.Transform{align.Identity}, sample.Transforms)
		assert.False(t, sample.Aligned)
		assert.Empty(t, sample.Errors)
	}

	require.Len(t, progress, 50)
	assert.Equal(t, [2]int{1, 50}, progress[0])
	assert.Equal(t, [2]int{50, 50}, progress[49])

	assert.Equal(t, src.opened.Load(), src.closed.Load())
	assert.EqualValues(t, 1, est.maxActive.Load())
	assert.False(t, est.usedAfter.Load())
}

func TestProcessRangeKeepsFramesWithoutDetection(t *testing.T) {
	est := newFakeEstimator()
	est.estimate = func(ctx context.Context, f *fakeFrame, attempt int) ([]*pose.Pose, error) {
		if f.idx == 4 {
			return nil, nil
		}
		return []*pose.Pose{torsoPose(0, 0, 10)}, nil
	}
	s := newTestSession(t, est, nil)

	_, err := s.ProcessRange(context.Background(), &fakeSource{name: "a"}, utils.FrameRange{Start: 0, End: 9}, Hooks{})
	require.NoError(t, err)

	require.Equal(t, 10, s.Len())
	assert.Nil(t, s.Samples()[4].Poses[0])
	assert.NotNil(t, s.Samples()[5].Poses[0])
}

func TestEstimationFailureKeepsFrameWithoutPose(t *testing.T) {
	est := newFakeEstimator()
	boom := errors.New("inference rejected")
	est.estimate = func(ctx context.Context, f *fakeFrame, attempt int) ([]*pose.Pose, error) {
		if f.idx == 10 {
			return nil, boom
		}
		return []*pose.Pose{torsoPose(0, 0, 10)}, nil
	}
	s := newTestSession(t, est, nil)

	var progressCalls int
	rep, err := s.ProcessRange(context.Background(), &fakeSource{name: "a"}, utils.FrameRange{Start: 0, End: 99}, Hooks{
		Progress: func(done, total int) { progressCalls++ },
	})
	require.NoError(t, err)

	assert.Equal(t, 50, rep.Kept)
	assert.Equal(t, 50, s.Len())
	assert.Equal(t, 50, progressCalls)
	assert.Empty(t, rep.Skipped)
	require.Len(t, rep.Failed, 1)
	assert.Equal(t, 5, rep.Failed[0].Position)
	assert.Equal(t, []int{10}, rep.Failed[0].Frames)

	var failure *EstimationFailure
	require.True(t, errors.As(rep.Failed[0].Err, &failure))
	assert.Equal(t, 10, failure.Frame)
	assert.True(t, errors.Is(rep.Failed[0].Err, boom))

	//one try plus one retry
	assert.Equal(t, 2, est.Calls("a", 10))
	assert.Equal(t, 1, est.Calls("a", 12))

	//the frame stays in place with no skeleton
	kept := s.Samples()[5]
	assert.Equal(t, 5, kept.Position)
	assert.Equal(t, []int{10}, kept.Frames)
	assert.Nil(t, kept.Poses[0])
	assert.Equal(t, []align.Transform{align.Identity}, kept.Transforms)
	require.Len(t, kept.Errors, 1)
	assert.Contains(t, kept.Errors[0], "inference rejected")
	assert.NotNil(t, s.Samples()[6].Poses[0])
}

func TestEstimationRetrySucceeds(t *testing.T) {
	est := newFakeEstimator()
	est.estimate = func(ctx context.Context, f *fakeFrame, attempt int) ([]*pose.Pose, error) {
		if f.idx == 3 && attempt == 1 {
			return nil, errors.New("transient")
		}
		return []*pose.Pose{torsoPose(0, 0, 10)}, nil
	}
	s := newTestSession(t, est, nil)

	rep, err := s.ProcessRange(context.Background(), &fakeSource{name: "a"}, utils.FrameRange{Start: 0, End: 9}, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, 10, rep.Kept)
	assert.Equal(t, 2, est.Calls("a", 3))
}

func TestRetriesDisabled(t *testing.T) {
	est := newFakeEstimator()
	est.estimate = func(ctx context.Context, f *fakeFrame, attempt int) ([]*pose.Pose, error) {
		return nil, errors.New("always")
	}
	s := newTestSession(t, est, func(o *Options) { o.Retries = 0 })

	rep, err := s.ProcessRange(context.Background(), &fakeSource{name: "a"}, utils.FrameRange{Start: 0, End: 2}, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Kept)
	assert.Len(t, rep.Failed, 3)
	assert.Equal(t, 1, est.Calls("a", 1))
}

func TestInitializationFailureAborts(t *testing.T) {
	est := newFakeEstimator()
	loadErr := errors.New("model not found")
	attempts := 0
	s := NewSession(func(ctx context.Context, cfg EstimatorConfig) (Estimator, error) {
		attempts++
		if attempts == 1 {
			return nil, loadErr
		}
		return est, nil
	}, DefaultOptions(), discardLogger())
	defer s.Close()

	src := &fakeSource{name: "a"}
	_, err := s.ProcessRange(context.Background(), src, utils.FrameRange{Start: 0, End: 9}, Hooks{})
	var initErr *InitializationFailure
	require.True(t, errors.As(err, &initErr))
	assert.Equal(t, "dnn", initErr.Kind)
	assert.True(t, errors.Is(err, loadErr))

	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Running())
	assert.EqualValues(t, 0, src.opened.Load())

	//the failed load is not cached, the next batch tries again
	_, err = s.ProcessRange(context.Background(), src, utils.FrameRange{Start: 0, End: 9}, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, 10, s.Len())
	assert.Equal(t, 2, attempts)
}

func TestEstimatorCreatedOnce(t *testing.T) {
	est := newFakeEstimator()
	created := 0
	s := NewSession(func(ctx context.Context, cfg EstimatorConfig) (Estimator, error) {
		created++
		return est, nil
	}, DefaultOptions(), discardLogger())

	for i := 0; i < 3; i++ {
		_, err := s.ProcessRange(context.Background(), &fakeSource{name: "a"}, utils.FrameRange{Start: 0, End: 4}, Hooks{})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, created)

	require.NoError(t, s.Close())
	assert.True(t, est.closed.Load())
	assert.Equal(t, 0, s.Len())
}

func TestEstimateTimeout(t *testing.T) {
	est := newFakeEstimator()
	est.estimate = func(ctx context.Context, f *fakeFrame, attempt int) ([]*pose.Pose, error) {
		if f.idx == 6 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []*pose.Pose{torsoPose(0, 0, 10)}, nil
	}
	s := newTestSession(t, est, func(o *Options) { o.FrameTimeout = 20 * time.Millisecond })
	src := &fakeSource{name: "a"}

	rep, err := s.ProcessRange(context.Background(), src, utils.FrameRange{Start: 0, End: 9}, Hooks{})
	require.NoError(t, err)

	assert.Equal(t, 10, rep.Kept)
	assert.Empty(t, rep.Skipped)
	require.Len(t, rep.Failed, 1)
	var timeout *FrameTimeoutError
	require.True(t, errors.As(rep.Failed[0].Err, &timeout))
	assert.Equal(t, "estimate", timeout.Op)
	assert.Equal(t, 6, timeout.Frame)
	assert.Nil(t, s.Samples()[6].Poses[0])

	//timeouts are not retried
	assert.Equal(t, 1, est.Calls("a", 6))
	assert.Eventually(t, func() bool { return src.opened.Load() == src.closed.Load() }, time.Second, 5*time.Millisecond)
}

func TestSeekTimeoutReleasesLateFrame(t *testing.T) {
	est := newFakeEstimator()
	src := &fakeSource{name: "a", seek: func(ctx context.Context, idx int) error {
		if idx == 2 {
			//a decoder that ignores cancellation
			time.Sleep(100 * time.Millisecond)
		}
		return nil
	}}
	s := newTestSession(t, est, func(o *Options) { o.FrameTimeout = 20 * time.Millisecond })

	rep, err := s.ProcessRange(context.Background(), src, utils.FrameRange{Start: 0, End: 4}, Hooks{})
	require.NoError(t, err)

	assert.Equal(t, 4, rep.Kept)
	require.Len(t, rep.Skipped, 1)
	var timeout *FrameTimeoutError
	require.True(t, errors.As(rep.Skipped[0].Err, &timeout))
	assert.Equal(t, "seek", timeout.Op)
	assert.Equal(t, 0, est.Calls("a", 2))
	assert.Equal(t, 2, rep.Skipped[0].Position)

	//positions follow the sampling plan, the unreadable frame leaves a gap
	positions := []int{}
	for _, sample := range s.Samples() {
		positions = append(positions, sample.Position)
	}
	assert.Equal(t, []int{0, 1, 3, 4}, positions)

	assert.Eventually(t, func() bool {
		return src.opened.Load() == 5 && src.closed.Load() == 5
	}, time.Second, 5*time.Millisecond)
}

func TestSeekFailureSkipsFrame(t *testing.T) {
	decodeErr := errors.New("corrupt packet")
	src := &fakeSource{name: "a", seek: func(ctx context.Context, idx int) error {
		if idx == 3 {
			return decodeErr
		}
		return nil
	}}
	s := newTestSession(t, newFakeEstimator(), nil)

	rep, err := s.ProcessRange(context.Background(), src, utils.FrameRange{Start: 0, End: 4}, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Kept)
	require.Len(t, rep.Skipped, 1)
	assert.True(t, errors.Is(rep.Skipped[0].Err, decodeErr))
}

func TestCanceledBatchLeavesSessionEmpty(t *testing.T) {
	s := newTestSession(t, newFakeEstimator(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := s.ProcessRange(ctx, &fakeSource{name: "a"}, utils.FrameRange{Start: 0, End: 49}, Hooks{
		Progress: func(done, total int) {
			if done == 3 {
				cancel()
			}
		},
	})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Running())
}

func TestInvalidRange(t *testing.T) {
	s := newTestSession(t, newFakeEstimator(), nil)

	_, err := s.ProcessRange(context.Background(), &fakeSource{name: "a"}, utils.FrameRange{Start: 5, End: 2}, Hooks{})
	var rangeErr *utils.InvalidRangeError
	assert.True(t, errors.As(err, &rangeErr))

	_, err = s.ComparePairs(context.Background(), &fakeSource{name: "a"}, &fakeSource{name: "b"},
		utils.FrameRange{Start: 0, End: 9}, utils.FrameRange{Start: -1, End: 9}, Hooks{})
	assert.True(t, errors.As(err, &rangeErr))
	assert.False(t, s.Running())
}

func TestBusySession(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	est := newFakeEstimator()
	var once sync.Once
	est.estimate = func(ctx context.Context, f *fakeFrame, attempt int) ([]*pose.Pose, error) {
		once.Do(func() { close(started) })
		<-release
		return nil, nil
	}
	s := newTestSession(t, est, func(o *Options) { o.FrameTimeout = 0 })

	done := make(chan error, 1)
	go func() {
		_, err := s.ProcessRange(context.Background(), &fakeSource{name: "a"}, utils.FrameRange{Start: 0, End: 2}, Hooks{})
		done <- err
	}()

	<-started
	assert.True(t, s.Running())
	_, err := s.ProcessRange(context.Background(), &fakeSource{name: "a"}, utils.FrameRange{Start: 0, End: 2}, Hooks{})
	assert.True(t, errors.Is(err, ErrBusy))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 3, s.Len())
}

func TestComparePairs(t *testing.T) {
	est := newFakeEstimator()
	est.estimate = func(ctx context.Context, f *fakeFrame, attempt int) ([]*pose.Pose, error) {
		if f.src.name == "a" {
			return []*pose.Pose{torsoPose(50, 50, 100)}, nil
		}
		return []*pose.Pose{torsoPose(200, 100, 50)}, nil
	}
	s := newTestSession(t, est, nil)
	a, b := &fakeSource{name: "a"}, &fakeSource{name: "b"}

	rep, err := s.ComparePairs(context.Background(), a, b, utils.FrameRange{Start: 0, End: 9}, utils.FrameRange{Start: 100, End: 119}, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, 10, rep.Kept)

	want, err := align.Align(torsoPose(50, 50, 100), torsoPose(200, 100, 50))
	require.NoError(t, err)

	for i, sample := range s.Samples() {
		assert.Equal(t, []int{i, 100 + 2*i}, sample.Frames)
		require.Len(t, sample.Poses, 2)
		assert.True(t, sample.Aligned)
		assert.Equal(t, []align.Transform{want.First, want.Second}, sample.Transforms)
	}
	assert.Equal(t, 1.0, want.First.Scale)
	assert.Equal(t, 2.0, want.Second.Scale)

	assert.EqualValues(t, 1, est.maxActive.Load())
	assert.Equal(t, a.opened.Load(), a.closed.Load())
	assert.Equal(t, b.opened.Load(), b.closed.Load())
}

func TestComparePairsWithoutTorsoKeepsRawPositions(t *testing.T) {
	est := newFakeEstimator()
	est.estimate = func(ctx context.Context, f *fakeFrame, attempt int) ([]*pose.Pose, error) {
		p := torsoPose(50, 50, 100)
		if f.src.name == "b" {
			delete(p.Keypoints, pose.RightHip)
		}
		return []*pose.Pose{p}, nil
	}
	s := newTestSession(t, est, nil)

	_, err := s.ComparePairs(context.Background(), &fakeSource{name: "a"}, &fakeSource{name: "b"},
		utils.FrameRange{Start: 0, End: 4}, utils.FrameRange{Start: 0, End: 4}, Hooks{})
	require.NoError(t, err)

	for _, sample := range s.Samples() {
		assert.False(t, sample.Aligned)
		assert.Equal(t, []align.Transform{align.Identity, align.Identity}, sample.Transforms)
		assert.NotNil(t, sample.Poses[0])
		assert.NotNil(t, sample.Poses[1])
	}
}

func TestComparePairsKeepsPairWhenOneSideFails(t *testing.T) {
	est := newFakeEstimator()
	est.estimate = func(ctx context.Context, f *fakeFrame, attempt int) ([]*pose.Pose, error) {
		if f.src.name == "b" && f.idx == 2 {
			return nil, errors.New("rejected")
		}
		return []*pose.Pose{torsoPose(0, 0, 10)}, nil
	}
	s := newTestSession(t, est, nil)
	a, b := &fakeSource{name: "a"}, &fakeSource{name: "b"}

	rep, err := s.ComparePairs(context.Background(), a, b,
		utils.FrameRange{Start: 0, End: 4}, utils.FrameRange{Start: 0, End: 4}, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, 5, rep.Kept)
	assert.Empty(t, rep.Skipped)
	require.Len(t, rep.Failed, 1)
	assert.Equal(t, 2, rep.Failed[0].Position)
	assert.Equal(t, []int{2}, rep.Failed[0].Frames)

	pair := s.Samples()[2]
	assert.NotNil(t, pair.Poses[0])
	assert.Nil(t, pair.Poses[1])
	assert.False(t, pair.Aligned)
	assert.Equal(t, []align.Transform{align.Identity, align.Identity}, pair.Transforms)
	assert.Equal(t, "", pair.Errors[0])
	assert.Contains(t, pair.Errors[1], "rejected")
	assert.True(t, s.Samples()[3].Aligned)

	assert.Eventually(t, func() bool {
		return a.opened.Load() == a.closed.Load() && b.opened.Load() == b.closed.Load()
	}, time.Second, 5*time.Millisecond)
}

func TestHooksAndEncode(t *testing.T) {
	est := newFakeEstimator()
	s := newTestSession(t, est, func(o *Options) {
		o.Encode = func(f Frame) ([]byte, error) {
			ff := f.(*fakeFrame)
			return []byte(fmt.Sprintf("%s-%d", ff.src.name, ff.idx)), nil
		}
	})

	var seen []int
	_, err := s.ComparePairs(context.Background(), &fakeSource{name: "a"}, &fakeSource{name: "b"},
		utils.FrameRange{Start: 0, End: 2}, utils.FrameRange{Start: 10, End: 12}, Hooks{
			OnSample: func(sample Sample, frames []Frame) {
				require.Len(t, frames, 2)
				for _, f := range frames {
					assert.False(t, f.(*fakeFrame).closed.Load())
				}
				seen = append(seen, sample.Position)
			},
		})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, seen)
	sample := s.Samples()[1]
	assert.Equal(t, [][]byte{[]byte("a-1"), []byte("b-11")}, sample.Images)
}

func TestCursor(t *testing.T) {
	s := newTestSession(t, newFakeEstimator(), nil)

	_, ok := s.Current()
	assert.False(t, ok)

	_, err := s.ProcessRange(context.Background(), &fakeSource{name: "a"}, utils.FrameRange{Start: 10, End: 14}, Hooks{})
	require.NoError(t, err)

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, []int{10}, cur.Frames)

	_, ok = s.Prev()
	assert.False(t, ok)
	assert.Equal(t, 0, s.Cursor())

	next, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, 1, next.Position)

	last, err := s.Seek(4)
	require.NoError(t, err)
	assert.Equal(t, []int{14}, last.Frames)

	_, ok = s.Next()
	assert.False(t, ok)
	assert.Equal(t, 4, s.Cursor())

	_, err = s.Seek(5)
	assert.True(t, errors.Is(err, ErrNoSample))
	_, err = s.Seek(-1)
	assert.True(t, errors.Is(err, ErrNoSample))
	assert.Equal(t, 4, s.Cursor())

	prev, ok := s.Prev()
	require.True(t, ok)
	assert.Equal(t, 3, prev.Position)
}

func TestWithDeadlineReleasesAbandonedValue(t *testing.T) {
	released := make(chan int, 1)
	_, err := withDeadline(context.Background(), 10*time.Millisecond, func(ctx context.Context) (int, error) {
		time.Sleep(50 * time.Millisecond)
		return 7, nil
	}, func(v int) { released <- v })

	assert.True(t, timedOut(context.Background(), err))
	select {
	case v := <-released:
		assert.Equal(t, 7, v)
	case <-time.After(time.Second):
		t.Fatal("abandoned value was never released")
	}
}

func TestWithDeadlineParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := withDeadline(ctx, time.Second, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}, nil)
	assert.False(t, timedOut(ctx, err))
	assert.True(t, fatal(err))
}

func TestSkipJSONCarriesReason(t *testing.T) {
	b, err := json.Marshal(Skip{Position: 2, Frames: []int{4, 9}, Err: &EstimationFailure{Frame: 4, Err: errors.New("boom")}})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, float64(2), got["position"])
	assert.Equal(t, []any{float64(4), float64(9)}, got["frames"])
	assert.Contains(t, got["error"], "boom")
}

func TestComparePairsSlowEstimatorKeepsFullBudget(t *testing.T) {
	const timeout = 200 * time.Millisecond
	est := newFakeEstimator()
	est.estimate = func(ctx context.Context, f *fakeFrame, attempt int) ([]*pose.Pose, error) {
		//slower than half the budget, a pair's second call must not pay for the first
		time.Sleep(timeout * 6 / 10)
		return []*pose.Pose{torsoPose(50, 50, 100)}, nil
	}
	s := newTestSession(t, est, func(o *Options) { o.FrameTimeout = timeout })

	rep, err := s.ComparePairs(context.Background(), &fakeSource{name: "a"}, &fakeSource{name: "b"},
		utils.FrameRange{Start: 0, End: 2}, utils.FrameRange{Start: 0, End: 2}, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Kept)
	assert.Empty(t, rep.Failed)
	for _, sample := range s.Samples() {
		assert.True(t, sample.Aligned)
	}
	assert.EqualValues(t, 1, est.maxActive.Load())

	rep, err = s.ProcessRange(context.Background(), &fakeSource{name: "a"}, utils.FrameRange{Start: 0, End: 2}, Hooks{})
	require.NoError(t, err)
	assert.Empty(t, rep.Failed)
}

func TestAbandonedEstimateDoesNotStealNextBudget(t *testing.T) {
	const timeout = 100 * time.Millisecond
	est := newFakeEstimator()
	est.estimate = func(ctx context.Context, f *fakeFrame, attempt int) ([]*pose.Pose, error) {
		if f.idx == 1 {
			//ignores its context and overruns the deadline
			time.Sleep(timeout * 3 / 2)
		}
		return []*pose.Pose{torsoPose(0, 0, 10)}, nil
	}
	s := newTestSession(t, est, func(o *Options) { o.FrameTimeout = timeout })

	rep, err := s.ProcessRange(context.Background(), &fakeSource{name: "a"}, utils.FrameRange{Start: 0, End: 3}, Hooks{})
	require.NoError(t, err)
	require.Len(t, rep.Failed, 1)
	assert.Equal(t, []int{1}, rep.Failed[0].Frames)
	assert.NotNil(t, s.Samples()[2].Poses[0])
	assert.EqualValues(t, 1, est.maxActive.Load())
	assert.False(t, est.usedAfter.Load())
}

func TestCloseStopsRunningBatch(t *testing.T) {
	est := newFakeEstimator()
	started := make(chan struct{})
	var once sync.Once
	est.estimate = func(ctx context.Context, f *fakeFrame, attempt int) ([]*pose.Pose, error) {
		once.Do(func() { close(started) })
		time.Sleep(10 * time.Millisecond)
		return []*pose.Pose{torsoPose(0, 0, 10)}, nil
	}
	s := newTestSession(t, est, nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.ProcessRange(context.Background(), &fakeSource{name: "a"}, utils.FrameRange{Start: 0, End: 20}, Hooks{})
		done <- err
	}()

	<-started
	require.NoError(t, s.Close())

	//Close returned, so the batch is over and the estimator is released
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("batch still running after Close")
	}
	assert.True(t, est.closed.Load())
	assert.EqualValues(t, 0, est.afterClose.Load())
	assert.False(t, est.closedWhileActive.Load())
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Running())

	_, err := s.ProcessRange(context.Background(), &fakeSource{name: "a"}, utils.FrameRange{Start: 0, End: 2}, Hooks{})
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestMaxFramesIsCapped(t *testing.T) {
	s := newTestSession(t, newFakeEstimator(), func(o *Options) { o.MaxFrames = 500 })
	assert.Equal(t, utils.MaxSampledFrames, s.Options().MaxFrames)

	rep, err := s.ProcessRange(context.Background(), &fakeSource{name: "a"}, utils.FrameRange{Start: 0, End: 999}, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, utils.MaxSampledFrames, rep.Requested)
}
