package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"gocv.io/x/gocv"

	"github.com/chenBenjamin97/pose-compare/pkg/compare"
	"github.com/chenBenjamin97/pose-compare/pkg/pose"
)

const (
	//KindDNN runs an OpenPose style heatmap network through OpenCV's dnn module
	KindDNN = "dnn"
	//KindCommand runs an external model process, see CommandEstimator
	KindCommand = "command"
)

//NewEstimatorFactory returns the factory sessions use to create their estimator by kind
func NewEstimatorFactory(logger *slog.Logger) compare.EstimatorFactory {
	return func(ctx context.Context, cfg compare.EstimatorConfig) (compare.Estimator, error) {
		switch strings.ToLower(cfg.Kind) {
		case KindDNN, "":
			est, err := LoadHeatmapEstimator(cfg)
			if err != nil {
				return nil, err
			}
			return est, nil
		case KindCommand:
			est, err := StartCommandEstimator(ctx, cfg, logger)
			if err != nil {
				return nil, err
			}
			return est, nil
		default:
			return nil, fmt.Errorf("unknown estimator kind '%s'", cfg.Kind)
		}
	}
}

type heatmapPart struct {
	index int
	name  pose.Name
}

//openPoseParts maps the COCO body parts of an OpenPose heatmap model to schema names.
//Index 1 (neck) has no counterpart and is left out.
var openPoseParts = []heatmapPart{
	{0, pose.Nose},
	{2, pose.RightShoulder},
	{3, pose.RightElbow},
	{4, pose.RightWrist},
	{5, pose.LeftShoulder},
	{6, pose.LeftElbow},
	{7, pose.LeftWrist},
	{8, pose.RightHip},
	{9, pose.RightKnee},
	{10, pose.RightAnkle},
	{11, pose.LeftHip},
	{12, pose.LeftKnee},
	{13, pose.LeftAnkle},
	{14, pose.RightEye},
	{15, pose.LeftEye},
	{16, pose.RightEar},
	{17, pose.LeftEar},
}

//inputSide returns the network input side for a model quality tier
func inputSide(quality string) (int, error) {
	switch strings.ToLower(quality) {
	case "lite":
		return 256, nil
	case "full", "":
		return 368, nil
	case "heavy":
		return 480, nil
	default:
		return 0, fmt.Errorf("unknown model quality '%s'", quality)
	}
}

//HeatmapEstimator finds a single pose by taking the peak of every body part heatmap.
//The network is loaded once and reused, calls must not overlap.
type HeatmapEstimator struct {
	net  gocv.Net
	size image.Point
	//minConfidence is the heatmap peak below which a part counts as not found
	minConfidence float64
}

//LoadHeatmapEstimator loads the network at cfg.ModelPath (e.g. OpenPose's graph_opt.pb)
func LoadHeatmapEstimator(cfg compare.EstimatorConfig) (*HeatmapEstimator, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("LoadHeatmapEstimator: no model path configured")
	}
	side, err := inputSide(cfg.Quality)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNet(cfg.ModelPath, "")
	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("LoadHeatmapEstimator: could not load model '%s'", cfg.ModelPath)
	}
	return &HeatmapEstimator{net: net, size: image.Pt(side, side), minConfidence: 0.1}, nil
}

//Estimate returns zero or one pose for f, which must be a *MatFrame
func (e *HeatmapEstimator) Estimate(ctx context.Context, f compare.Frame, opts compare.EstimateOptions) ([]*pose.Pose, error) {
	mf, ok := f.(*MatFrame)
	if !ok {
		return nil, fmt.Errorf("heatmap estimator cannot read frames of type %T", f)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blob := gocv.BlobFromImage(mf.Mat, 1, e.size, gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()
	e.net.SetInput(blob, "")
	prob := e.net.Forward("")
	defer prob.Close()

	s := prob.Size()
	if len(s) != 4 {
		return nil, fmt.Errorf("unexpected network output shape %v", s)
	}
	nparts, h, w := s[1], s[2], s[3]
	frameSize := mf.Size()

	p := pose.New()
	for _, part := range openPoseParts {
		if part.index >= nparts {
			continue
		}
		heatmap, err := prob.FromPtr(h, w, gocv.MatTypeCV32F, 0, part.index)
		if err != nil {
			return nil, fmt.Errorf("failed to read heatmap %d: %w", part.index, err)
		}
		_, conf, _, pt := gocv.MinMaxLoc(heatmap)
		heatmap.Close()

		if float64(conf) <= e.minConfidence {
			continue
		}
		x, y := heatmapToFrame(pt, image.Pt(w, h), frameSize)
		if opts.FlipHorizontal {
			x = float64(frameSize.X) - x
		}
		p.Set(pose.Keypoint{Name: part.name, X: x, Y: y, Score: min(1, float64(conf))})
	}

	if len(p.Keypoints) == 0 || meanScore(p) < opts.ScoreThreshold {
		return nil, nil
	}
	return []*pose.Pose{p}, nil
}

func (e *HeatmapEstimator) Close() error {
	return e.net.Close()
}

//heatmapToFrame maps a heatmap cell to the center of the frame area it covers, clamped to the frame
func heatmapToFrame(pt, heatmap, frame image.Point) (float64, float64) {
	x := (float64(pt.X) + 0.5) * float64(frame.X) / float64(heatmap.X)
	y := (float64(pt.Y) + 0.5) * float64(frame.Y) / float64(heatmap.Y)
	return clamp(x, 0, float64(frame.X)), clamp(y, 0, float64(frame.Y))
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}

func meanScore(p *pose.Pose) float64 {
	if len(p.Keypoints) == 0 {
		return 0
	}
	sum := 0.0
	for _, kp := range p.Keypoints {
		sum += kp.Score
	}
	return sum / float64(len(p.Keypoints))
}
