package compare

import (
	"context"
	"image"

	"github.com/chenBenjamin97/pose-compare/pkg/pose"
)

//Frame is one decoded video frame. The pipeline owns every frame it gets and closes it when done.
type Frame interface {
	Size() image.Point
	Close() error
}

//Source gives random access to the frames of one video
type Source interface {
	//Seek blocks until frame idx is decoded or ctx is done
	Seek(ctx context.Context, idx int) (Frame, error)
	Close() error
}

//EstimateOptions are passed on every estimator call
type EstimateOptions struct {
	MaxPoses       int     `mapstructure:"max-poses" json:"maxPoses"`
	FlipHorizontal bool    `mapstructure:"flip-horizontal" json:"flipHorizontal"`
	ScoreThreshold float64 `mapstructure:"score-threshold" json:"scoreThreshold"`
}

//Estimator detects poses on a frame. It returns zero or one pose since multi person tracking is not supported.
type Estimator interface {
	Estimate(ctx context.Context, f Frame, opts EstimateOptions) ([]*pose.Pose, error)
	Close() error
}

//EstimatorConfig selects and tunes the estimator a session creates
type EstimatorConfig struct {
	//Kind picks the implementation: "dnn" (OpenCV network) or "command" (external process)
	Kind         string `mapstructure:"kind" json:"kind"`
	Model        string `mapstructure:"model" json:"model"`
	Quality      string `mapstructure:"quality" json:"quality"`
	Smoothing    bool   `mapstructure:"smoothing" json:"smoothing"`
	Segmentation bool   `mapstructure:"segmentation" json:"segmentation"`
	ModelPath    string `mapstructure:"model-path" json:"modelPath"`
	Command      string `mapstructure:"command" json:"command"`
}

//EstimatorFactory creates the estimator described by cfg, loading its model
type EstimatorFactory func(ctx context.Context, cfg EstimatorConfig) (Estimator, error)

//Hooks lets callers follow a batch while it runs. Both fields are optional.
type Hooks struct {
	//Progress is called after every sampled position, skipped or not
	Progress func(done, total int)
	//OnSample is called with every kept sample while its frames are still open.
	//Frames must not be retained, they are closed right after the call.
	OnSample func(s Sample, frames []Frame)
}

func (h Hooks) progress(done, total int) {
	if h.Progress != nil {
		h.Progress(done, total)
	}
}

func (h Hooks) sample(s Sample, frames []Frame) {
	if h.OnSample != nil {
		h.OnSample(s, frames)
	}
}
