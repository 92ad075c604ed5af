package compare

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/chenBenjamin97/pose-compare/pkg/align"
	"github.com/chenBenjamin97/pose-compare/pkg/pose"
	"github.com/chenBenjamin97/pose-compare/pkg/utils"
)

//Options tunes a session's pipeline
type Options struct {
	Estimator EstimatorConfig
	Estimate  EstimateOptions
	//MaxFrames caps how many positions a batch samples, never above utils.MaxSampledFrames
	MaxFrames int
	//FrameTimeout bounds every seek and every estimate, 0 disables it
	FrameTimeout time.Duration
	//Retries is how many extra attempts a failed estimate gets, timeouts are never retried
	Retries int
	//Encode, when set, keeps an encoded copy of every sample's frames for later display
	Encode func(Frame) ([]byte, error)
}

//DefaultOptions mirrors the stock estimator setup: one BlazePose full pose per frame, 50 frames, 1 retry
func DefaultOptions() Options {
	return Options{
		Estimator: EstimatorConfig{
			Kind:      "dnn",
			Model:     utils.DefaultModel,
			Quality:   utils.DefaultModelQuality,
			Smoothing: true,
		},
		Estimate:     EstimateOptions{MaxPoses: 1, ScoreThreshold: utils.VisibilityThreshold},
		MaxFrames:    utils.MaxSampledFrames,
		FrameTimeout: 10 * time.Second,
		Retries:      1,
	}
}

//Sample is what the pipeline retained for one sampled position: one frame for a single range, two for a comparison.
//Position is the index in the batch's sampling plan, the same numbering Skip uses.
type Sample struct {
	Position int   `json:"position"`
	Frames   []int `json:"frames"`
	//Sizes holds the resolution of every frame, poses are in these pixel coordinates
	Sizes []image.Point `json:"sizes"`
	//Poses holds one entry per frame, nil when nothing was detected
	Poses []*pose.Pose `json:"poses"`
	//Transforms holds the alignment per frame, identity unless Aligned
	Transforms []align.Transform `json:"transforms"`
	Aligned    bool              `json:"aligned"`
	//Errors holds why estimation failed per frame, empty for frames that went through. Unset when none failed.
	Errors []string `json:"errors,omitempty"`
	Images [][]byte `json:"-"`
}

//Skip records a failure at a sampled position. Position indexes the sampling plan.
type Skip struct {
	Position int   `json:"position"`
	Frames   []int `json:"frames"`
	Err      error `json:"-"`
}

//MarshalJSON adds the skip reason as a message
func (s Skip) MarshalJSON() ([]byte, error) {
	type plain Skip
	var msg string
	if s.Err != nil {
		msg = s.Err.Error()
	}
	return json.Marshal(struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain(s), msg})
}

//Report summarizes a finished batch
type Report struct {
	Requested int `json:"requested"`
	Kept      int `json:"kept"`
	//Skipped lists positions left out because a frame could not be read
	Skipped []Skip `json:"skipped"`
	//Failed lists frames whose estimate failed, their position is kept without a skeleton on that side
	Failed []Skip `json:"failed"`
}

//Session is the explicit context every pipeline call runs in
type Session struct {
	ID uuid.UUID

	opts    Options
	factory EstimatorFactory
	log     *slog.Logger

	//initMu guards est, calls admits one Estimate at a time, abandoned calls keep it until they return
	initMu sync.Mutex
	est    Estimator
	calls  *semaphore.Weighted

	mu      sync.Mutex
	running bool
	closed  bool
	//cancel and done belong to the running batch
	cancel  context.CancelFunc
	done    chan struct{}
	samples []Sample
	cursor  int
}

//NewSession returns an idle session. The estimator is only created by the first batch.
func NewSession(factory EstimatorFactory, opts Options, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxFrames > utils.MaxSampledFrames {
		opts.MaxFrames = utils.MaxSampledFrames
	}
	id := uuid.New()
	return &Session{
		ID:      id,
		opts:    opts,
		factory: factory,
		log:     logger.With("session", id.String()),
		calls:   semaphore.NewWeighted(1),
	}
}

//Options returns the options the session was created with
func (s *Session) Options() Options {
	return s.opts
}

//Running reports whether a batch is in progress
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

//begin marks the session running and returns the batch's context, which Close cancels
func (s *Session) begin(ctx context.Context) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.running {
		return nil, ErrBusy
	}
	s.running = true
	s.samples = nil
	s.cursor = 0

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	return ctx, nil
}

//finish publishes the batch's samples, nil leaves the session empty after an aborted batch.
//A closed session publishes nothing.
func (s *Session) finish(samples []Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if !s.closed {
		s.samples = samples
		s.cursor = 0
	}
	s.cancel()
	s.cancel = nil
	close(s.done)
	s.done = nil
}

//Len returns how many samples the session holds
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

//Samples returns a copy of the retained samples
func (s *Session) Samples() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sample(nil), s.samples...)
}

//Cursor returns the position of the current sample
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

//Current returns the sample under the cursor
func (s *Session) Current() (Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor >= len(s.samples) {
		return Sample{}, false
	}
	return s.samples[s.cursor], true
}

//Seek moves the cursor to n
func (s *Session) Seek(n int) (Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 || n >= len(s.samples) {
		return Sample{}, fmt.Errorf("sample %d of %d: %w", n, len(s.samples), ErrNoSample)
	}
	s.cursor = n
	return s.samples[n], nil
}

//Next moves the cursor forward, ok is false at the last sample and the cursor stays
func (s *Session) Next() (Sample, bool) {
	return s.step(1)
}

//Prev moves the cursor back, ok is false at the first sample and the cursor stays
func (s *Session) Prev() (Sample, bool) {
	return s.step(-1)
}

func (s *Session) step(delta int) (Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.cursor + delta
	if n < 0 || n >= len(s.samples) {
		return Sample{}, false
	}
	s.cursor = n
	return s.samples[n], true
}

//estimator returns the cached estimator, creating it on first use
func (s *Session) estimator(ctx context.Context) (Estimator, error) {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.est != nil {
		return s.est, nil
	}
	if s.factory == nil {
		return nil, &InitializationFailure{Kind: s.opts.Estimator.Kind, Err: fmt.Errorf("no estimator factory")}
	}

	start := time.Now()
	est, err := s.factory(ctx, s.opts.Estimator)
	if err != nil {
		return nil, &InitializationFailure{Kind: s.opts.Estimator.Kind, Err: err}
	}
	s.log.Info("estimator: loaded", "kind", s.opts.Estimator.Kind, "model", s.opts.Estimator.Model,
		"quality", s.opts.Estimator.Quality, "took", time.Since(start))
	s.est = est
	return est, nil
}

//Close cancels a running batch and waits for it to return, drops the samples and releases the cached
//estimator once no call, abandoned ones included, is using it. A closed session accepts no new batch.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.samples = nil
	s.cursor = 0
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	s.initMu.Lock()
	defer s.initMu.Unlock()
	if err := s.calls.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer s.calls.Release(1)
	if s.est == nil {
		return nil
	}
	err := s.est.Close()
	s.est = nil
	return err
}
