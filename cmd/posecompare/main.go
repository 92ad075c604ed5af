//posecompare runs one range or a comparison of two ranges offline and writes every sample as images:
//the aligned frame with its skeleton per side, plus front and side plots of the 3D poses.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/cheggaaa/pb/v3"
	"github.com/lmittmann/tint"

	"github.com/chenBenjamin97/pose-compare/pkg/compare"
	"github.com/chenBenjamin97/pose-compare/pkg/config"
	"github.com/chenBenjamin97/pose-compare/pkg/pose"
	"github.com/chenBenjamin97/pose-compare/pkg/render"
	"github.com/chenBenjamin97/pose-compare/pkg/scene"
	"github.com/chenBenjamin97/pose-compare/pkg/utils"
	"github.com/chenBenjamin97/pose-compare/pkg/video"
)

const progressTemplate = `{{ string . "prefix" }} {{counters . "%s/%s" "%s/?"}} {{bar . }} {{percent . }} {{etime . "%s elapsed"}}`

type args struct {
	video1, video2 string
	r1, r2         utils.FrameRange
	out            string
	configDir      string
	noPlots        bool
}

func parseArgs() args {
	var a args
	flag.StringVar(&a.video1, "video1", "", "first video file (required)")
	flag.IntVar(&a.r1.Start, "start1", 0, "first frame of the first video")
	flag.IntVar(&a.r1.End, "end1", 0, "last frame of the first video")
	flag.StringVar(&a.video2, "video2", "", "second video file, compares both when set")
	flag.IntVar(&a.r2.Start, "start2", 0, "first frame of the second video")
	flag.IntVar(&a.r2.End, "end2", 0, "last frame of the second video")
	flag.StringVar(&a.out, "out", "output_frames", "output directory")
	flag.StringVar(&a.configDir, "config", ".", "directory holding config.yaml")
	flag.BoolVar(&a.noPlots, "no-plots", false, "skip the 3D plots")
	flag.Parse()

	if a.video1 == "" {
		fmt.Fprintln(os.Stderr, "Usage: posecompare -video1 path -start1 N -end1 N [-video2 path -start2 N -end2 N] [-out dir]")
		flag.PrintDefaults()
		os.Exit(2)
	}
	return a
}

func main() {
	a := parseArgs()

	level := new(slog.LevelVar)
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	)

	config.LoadDotEnv(logger)
	cfg, err := config.Load(a.configDir)
	if err != nil {
		logger.Error("Error: Could not load configuration", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel())

	if err := os.MkdirAll(a.out, 0766); err != nil {
		logger.Error("Error: Could not create output directory", "dir", a.out, "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, a, cfg, logger); err != nil {
		logger.Error("Error: comparison failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, a args, cfg *config.Config, logger *slog.Logger) error {
	src1, err := video.OpenCapture(a.video1, cfg.Sampling.FPS)
	if err != nil {
		return err
	}
	defer src1.Close()

	var src2 *video.Capture
	if a.video2 != "" {
		if src2, err = video.OpenCapture(a.video2, cfg.Sampling.FPS); err != nil {
			return err
		}
		defer src2.Close()
	}

	warnPastEnd(logger, a.video1, src1, a.r1)
	if src2 != nil {
		warnPastEnd(logger, a.video2, src2, a.r2)
	}

	sess := compare.NewSession(video.NewEstimatorFactory(logger), cfg.SessionOptions(), logger)
	defer sess.Close()

	var bar *pb.ProgressBar
	renderers := []*render.Renderer{
		render.NewRenderer(cfg.Render, render.DefaultProfile()),
		render.NewRenderer(cfg.Render, render.SecondProfile()),
	}
	hooks := compare.Hooks{
		Progress: func(done, total int) {
			if bar == nil {
				bar = pb.ProgressBarTemplate(progressTemplate).Start(total)
				bar.Set("prefix", "sampling")
			}
			bar.SetCurrent(int64(done))
		},
		OnSample: func(s compare.Sample, frames []compare.Frame) {
			if err := writeSample(a, cfg, renderers, s, frames); err != nil {
				logger.Warn("posecompare: could not write sample", "position", s.Position, "err", err)
			}
		},
	}

	var rep compare.Report
	if src2 == nil {
		rep, err = sess.ProcessRange(ctx, src1, a.r1, hooks)
	} else {
		rep, err = sess.ComparePairs(ctx, src1, src2, a.r1, a.r2, hooks)
	}
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	for _, skip := range rep.Skipped {
		logger.Warn("posecompare: skipped", "position", skip.Position, "frames", skip.Frames, "err", skip.Err)
	}
	for _, fail := range rep.Failed {
		logger.Warn("posecompare: no skeleton", "position", fail.Position, "frames", fail.Frames, "err", fail.Err)
	}
	logger.Info("posecompare: done", "requested", rep.Requested, "kept", rep.Kept, "failed", len(rep.Failed), "out", a.out)
	return nil
}

//warnPastEnd flags ranges running past the last frame, those positions will be skipped as seek failures
func warnPastEnd(logger *slog.Logger, name string, c *video.Capture, r utils.FrameRange) {
	if n := c.FrameCount(); n > 0 && !(utils.FrameRange{End: n - 1}).Contains(r.End) {
		logger.Warn("posecompare: range ends past the last frame", "video", name, "range", r.String(), "frames", n)
	}
}

//writeSample saves one PNG per side, and the 3D plots unless disabled.
//Files are numbered by the position in the sampling plan, so a skipped position leaves a gap
func writeSample(a args, cfg *config.Config, renderers []*render.Renderer, s compare.Sample, frames []compare.Frame) error {
	for i, f := range frames {
		mf, ok := f.(*video.MatFrame)
		if !ok {
			return fmt.Errorf("frame of type %T cannot be drawn", f)
		}

		t := s.Transforms[i]
		p := s.Poses[i]
		out := video.Overlay(mf.Mat, t, func(surface render.Surface) {
			renderers[i%len(renderers)].Render(p, surface)
		})
		label := fmt.Sprintf("frame %d  %s", s.Frames[i], utils.FrameTime(s.Frames[i], cfg.Sampling.FPS))
		if p == nil {
			label += "  no pose"
		}
		video.PlotLabel(&out, label, image.Pt(8, 8), render.Turquoise)

		path := filepath.Join(a.out, fmt.Sprintf("sample_%03d_side%d.png", s.Position, i+1))
		err := video.SavePNG(path, out)
		out.Close()
		if err != nil {
			return err
		}
	}

	if a.noPlots {
		return nil
	}

	p1 := s.Poses[0]
	var p2 *pose.Pose
	if len(s.Poses) > 1 {
		p2 = s.Poses[1]
	}
	skeletons := scene.ProjectPair(p1, p2, cfg.Render.VisibilityThreshold)
	if len(skeletons) == 0 {
		return nil
	}

	plots := scene.NewPlotScene(
		filepath.Join(a.out, fmt.Sprintf("sample_%03d_front.png", s.Position)),
		filepath.Join(a.out, fmt.Sprintf("sample_%03d_side.png", s.Position)),
	)
	plots.Title = fmt.Sprintf("sample %d", s.Position)
	return scene.Update(plots, skeletons)
}
