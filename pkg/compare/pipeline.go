package compare

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/chenBenjamin97/pose-compare/pkg/align"
	"github.com/chenBenjamin97/pose-compare/pkg/pose"
	"github.com/chenBenjamin97/pose-compare/pkg/utils"
)

//ProcessRange samples r, detects the pose on every sampled frame of src and keeps the results as the
//session's samples. A frame that cannot be read is skipped, a frame whose estimate fails is kept without a
//skeleton. An estimator that cannot be created or a done ctx aborts the batch and leaves the session empty.
func (s *Session) ProcessRange(ctx context.Context, src Source, r utils.FrameRange, hooks Hooks) (Report, error) {
	indices, err := utils.SampleFrames(r, s.opts.MaxFrames)
	if err != nil {
		return Report{}, err
	}
	ctx, err = s.begin(ctx)
	if err != nil {
		return Report{}, err
	}

	plan := make([][]int, len(indices))
	for i, idx := range indices {
		plan[i] = []int{idx}
	}
	return s.run(ctx, "ProcessRange", []Source{src}, plan, hooks)
}

//ComparePairs samples r1 and r2 phase aligned, detects both poses of every pair and aligns them onto a
//common reference. Both frames of a pair are seeked concurrently, a pair is skipped when either side cannot be read.
func (s *Session) ComparePairs(ctx context.Context, src1, src2 Source, r1, r2 utils.FrameRange, hooks Hooks) (Report, error) {
	pairs, err := utils.SamplePairs(r1, r2, s.opts.MaxFrames)
	if err != nil {
		return Report{}, err
	}
	ctx, err = s.begin(ctx)
	if err != nil {
		return Report{}, err
	}

	plan := make([][]int, len(pairs))
	for i, p := range pairs {
		plan[i] = []int{p.First, p.Second}
	}
	return s.run(ctx, "ComparePairs", []Source{src1, src2}, plan, hooks)
}

func (s *Session) run(ctx context.Context, op string, sources []Source, plan [][]int, hooks Hooks) (Report, error) {
	rep := Report{Requested: len(plan), Skipped: []Skip{}, Failed: []Skip{}}

	//the model is loaded before the first seek so a broken setup fails fast
	est, err := s.estimator(ctx)
	if err != nil {
		s.finish(nil)
		s.log.Error(op+": Error, aborting batch", "err", err)
		return rep, err
	}

	samples := make([]Sample, 0, len(plan))
	for i, frames := range plan {
		if err := ctx.Err(); err != nil {
			s.finish(nil)
			return rep, err
		}

		sample, failures, err := s.processPosition(ctx, est, i, sources, frames, hooks)
		if err != nil {
			if fatal(err) {
				s.finish(nil)
				s.log.Error(op+": Error, aborting batch", "position", i, "err", err)
				return rep, err
			}
			s.log.Warn(op+": skipping position", "position", i, "frames", frames, "err", err)
			rep.Skipped = append(rep.Skipped, Skip{Position: i, Frames: frames, Err: err})
		} else {
			samples = append(samples, sample)
		}
		for side, ferr := range failures {
			if ferr == nil {
				continue
			}
			s.log.Warn(op+": no skeleton for frame", "position", i, "frame", frames[side], "err", ferr)
			rep.Failed = append(rep.Failed, Skip{Position: i, Frames: []int{frames[side]}, Err: ferr})
		}
		hooks.progress(i+1, len(plan))
	}

	rep.Kept = len(samples)
	s.finish(samples)
	s.log.Info(op+": done", "requested", rep.Requested, "kept", rep.Kept, "skipped", len(rep.Skipped), "failed", len(rep.Failed))
	return rep, nil
}

//processPosition handles one sampled position: seek, estimate, align, then hand the sample to the hooks.
//failures holds the estimate error per frame, those frames are kept with a nil pose.
//Frames are released before it returns, unless an abandoned estimate still reads them.
func (s *Session) processPosition(ctx context.Context, est Estimator, position int, sources []Source, frames []int, hooks Hooks) (Sample, []error, error) {
	imgs, err := s.seekAll(ctx, sources, frames)
	if err != nil {
		return Sample{}, nil, err
	}

	var inflight sync.WaitGroup
	poses, failures, err := s.estimateAll(ctx, est, imgs, frames, &inflight)
	if err != nil || anyError(failures) {
		defer func() {
			go func() {
				inflight.Wait()
				closeAll(imgs)
			}()
		}()
	} else {
		defer closeAll(imgs)
	}
	if err != nil {
		return Sample{}, nil, err
	}

	sample := Sample{
		Position:   position,
		Frames:     frames,
		Sizes:      make([]image.Point, len(frames)),
		Poses:      poses,
		Transforms: make([]align.Transform, len(frames)),
	}
	for i := range sample.Transforms {
		sample.Sizes[i] = imgs[i].Size()
		sample.Transforms[i] = align.Identity
	}
	if anyError(failures) {
		sample.Errors = make([]string, len(frames))
		for i, ferr := range failures {
			if ferr != nil {
				sample.Errors[i] = ferr.Error()
			}
		}
	}
	if len(poses) == 2 {
		s.alignSample(&sample)
	}

	if s.opts.Encode != nil {
		sample.Images = make([][]byte, len(imgs))
		for i, f := range imgs {
			b, err := s.opts.Encode(f)
			if err != nil {
				s.log.Warn("encode: dropping frame image", "frame", frames[i], "err", err)
				continue
			}
			sample.Images[i] = b
		}
	}

	hooks.sample(sample, imgs)
	return sample, failures, nil
}

func anyError(errs []error) bool {
	for _, err := range errs {
		if err != nil {
			return true
		}
	}
	return false
}

func (s *Session) alignSample(sample *Sample) {
	p1, p2 := sample.Poses[0], sample.Poses[1]
	if p1 == nil || p2 == nil {
		return
	}
	a, err := align.Align(p1, p2)
	if err != nil {
		var missing *pose.MissingKeypointError
		if errors.As(err, &missing) {
			s.log.Debug("align: keeping raw positions", "frames", sample.Frames, "err", err)
			return
		}
		s.log.Warn("align: Error, keeping raw positions", "frames", sample.Frames, "err", err)
		return
	}
	sample.Transforms = []align.Transform{a.First, a.Second}
	sample.Aligned = true
}

//seekAll seeks every source concurrently and waits for all of them
func (s *Session) seekAll(ctx context.Context, sources []Source, frames []int) ([]Frame, error) {
	imgs := make([]Frame, len(frames))
	var g errgroup.Group
	for i := range frames {
		i := i
		g.Go(func() error {
			f, err := s.seek(ctx, sources[i], frames[i])
			imgs[i] = f
			return err
		})
	}
	if err := g.Wait(); err != nil {
		closeAll(imgs)
		return nil, err
	}
	return imgs, nil
}

func (s *Session) seek(ctx context.Context, src Source, idx int) (Frame, error) {
	f, err := withDeadline(ctx, s.opts.FrameTimeout, func(ctx context.Context) (Frame, error) {
		return src.Seek(ctx, idx)
	}, func(f Frame) {
		if f != nil {
			f.Close()
		}
	})
	switch {
	case err == nil:
		return f, nil
	case timedOut(ctx, err):
		return nil, &FrameTimeoutError{Op: "seek", Frame: idx, Timeout: s.opts.FrameTimeout}
	case fatal(err):
		return nil, err
	default:
		return nil, fmt.Errorf("failed to seek frame %d: %w", idx, err)
	}
}

//estimateAll runs the estimates of one position concurrently, the estimator semaphore serializes the calls.
//A fatal error is returned as err, any other failure is reported per frame.
func (s *Session) estimateAll(ctx context.Context, est Estimator, imgs []Frame, frames []int, inflight *sync.WaitGroup) ([]*pose.Pose, []error, error) {
	poses := make([]*pose.Pose, len(imgs))
	errs := make([]error, len(imgs))
	var g errgroup.Group
	for i := range imgs {
		i := i
		g.Go(func() error {
			poses[i], errs[i] = s.estimate(ctx, est, imgs[i], frames[i], inflight)
			return nil
		})
	}
	g.Wait()

	for _, err := range errs {
		if err != nil && fatal(err) {
			return nil, nil, err
		}
	}
	return poses, errs, nil
}

//estimate detects the top pose on f, retrying plain failures up to Options.Retries times.
//The deadline only starts once the call holds the estimator, waiting for it is bounded by ctx alone.
func (s *Session) estimate(ctx context.Context, est Estimator, f Frame, idx int, inflight *sync.WaitGroup) (*pose.Pose, error) {
	var last error
	for attempt := 0; attempt <= max(0, s.opts.Retries); attempt++ {
		if attempt > 0 {
			s.log.Debug("estimate: retrying", "frame", idx, "attempt", attempt, "err", last)
		}

		if err := s.calls.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		inflight.Add(1)
		poses, err := withDeadline(ctx, s.opts.FrameTimeout, func(ctx context.Context) ([]*pose.Pose, error) {
			defer inflight.Done()
			defer s.calls.Release(1)
			return est.Estimate(ctx, f, s.opts.Estimate)
		}, nil)

		switch {
		case err == nil:
			if len(poses) == 0 {
				return nil, nil
			}
			return poses[0], nil
		case timedOut(ctx, err):
			return nil, &FrameTimeoutError{Op: "estimate", Frame: idx, Timeout: s.opts.FrameTimeout}
		case fatal(err):
			return nil, err
		}
		last = err
	}
	return nil, &EstimationFailure{Frame: idx, Err: last}
}

func closeAll(frames []Frame) {
	for _, f := range frames {
		if f != nil {
			f.Close()
		}
	}
}
