package api

import (
	"github.com/chenBenjamin97/pose-compare/pkg/align"
	"github.com/chenBenjamin97/pose-compare/pkg/compare"
	"github.com/chenBenjamin97/pose-compare/pkg/pose"
	"github.com/chenBenjamin97/pose-compare/pkg/render"
	"github.com/chenBenjamin97/pose-compare/pkg/scene"
	"github.com/chenBenjamin97/pose-compare/pkg/utils"
)

//SideView is what the browser draws for one side of a sample
type SideView struct {
	Frame     int             `json:"frame"`
	TimeMs    int64           `json:"timeMs"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Pose      *pose.Pose      `json:"pose"`
	Transform align.Transform `json:"transform"`
	//Overlay lists the 2D primitives of the aligned skeleton in drawing order
	Overlay []render.Primitive `json:"overlay"`
	//Image is the raw frame as JPEG, base64 in JSON
	Image []byte `json:"image,omitempty"`
	//Error explains a missing pose when estimation failed on this frame
	Error string `json:"error,omitempty"`
}

//SampleView is the response of every sample navigation route.
//Index counts kept samples and is what Samples/:n takes, Position is the slot in the sampling plan
type SampleView struct {
	Index    int            `json:"index"`
	Position int            `json:"position"`
	Total    int            `json:"total"`
	Aligned  bool           `json:"aligned"`
	Sides    []SideView     `json:"sides"`
	Scene    scene.Snapshot `json:"scene"`
}

func (s *Server) view(sample compare.Sample, index, total int) SampleView {
	v := SampleView{
		Index:    index,
		Position: sample.Position,
		Total:    total,
		Aligned:  sample.Aligned,
		Sides:    make([]SideView, len(sample.Frames)),
	}

	for i, frame := range sample.Frames {
		side := SideView{
			Frame:     frame,
			TimeMs:    utils.FrameTime(frame, s.cfg.Sampling.FPS).Milliseconds(),
			Transform: sample.Transforms[i],
			Overlay:   []render.Primitive{},
		}
		if i < len(sample.Sizes) {
			side.Width, side.Height = sample.Sizes[i].X, sample.Sizes[i].Y
		}
		if i < len(sample.Images) {
			side.Image = sample.Images[i]
		}
		if i < len(sample.Errors) {
			side.Error = sample.Errors[i]
		}

		if p := sample.Poses[i]; p != nil {
			side.Pose = p
			rec := render.NewRecorder(side.Width, side.Height)
			r := s.first
			if i == 1 {
				r = s.second
			}
			r.RenderAligned(p, sample.Transforms[i], rec)
			side.Overlay = rec.Primitives
		}
		v.Sides[i] = side
	}

	var p1, p2 *pose.Pose
	if len(sample.Poses) > 0 {
		p1 = sample.Poses[0]
	}
	if len(sample.Poses) > 1 {
		p2 = sample.Poses[1]
	}
	var js scene.JSONScene
	if err := scene.Update(&js, scene.ProjectPair(p1, p2, s.cfg.Render.VisibilityThreshold)); err != nil {
		s.log.Warn("api: Error building 3D scene", "position", sample.Position, "err", err)
	}
	v.Scene = js.Snapshot()
	return v
}
