package video

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/chenBenjamin97/pose-compare/pkg/align"
	"github.com/chenBenjamin97/pose-compare/pkg/render"
)

//MatSurface draws skeleton primitives straight onto a frame.
//Translucent primitives are drawn on a copy of the frame which is then blended back in.
type MatSurface struct {
	Mat *gocv.Mat
}

//NewMatSurface returns a surface drawing on frame
func NewMatSurface(frame *gocv.Mat) *MatSurface {
	return &MatSurface{Mat: frame}
}

func (s *MatSurface) Clear() {
	s.Mat.SetTo(gocv.NewScalar(0, 0, 0, 0))
}

func (s *MatSurface) DrawLine(a, b align.Point, st render.Stroke) {
	s.draw(st.Color, func(m *gocv.Mat, c color.RGBA) {
		//OpenCV ends thick lines with round caps
		gocv.Line(m, toPixel(a), toPixel(b), c, thickness(st.Width))
	})
}

func (s *MatSurface) DrawDisc(center align.Point, radius float64, f render.Fill) {
	s.draw(f.Color, func(m *gocv.Mat, c color.RGBA) {
		gocv.Circle(m, toPixel(center), max(1, int(math.Round(radius))), c, -1) //thickness -1 == filled circle
	})
}

func (s *MatSurface) draw(c color.RGBA, plot func(m *gocv.Mat, c color.RGBA)) {
	alpha := float64(c.A) / 255
	opaque := c
	opaque.A = 255
	if c.A == 255 {
		plot(s.Mat, opaque)
		return
	}
	if c.A == 0 {
		return
	}

	overlay := s.Mat.Clone()
	defer overlay.Close()
	plot(&overlay, opaque)
	gocv.AddWeighted(overlay, alpha, *s.Mat, 1-alpha, 0, s.Mat)
}

func toPixel(p align.Point) image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}

//thickness rounds a stroke width to OpenCV's integer thickness, never below 1
func thickness(width float64) int {
	return max(1, int(math.Round(width)))
}

//affineCoefficients returns the 2x3 row major matrix of t: x' = s*x + s*tx, y' = s*y + s*ty
func affineCoefficients(t align.Transform) [6]float64 {
	return [6]float64{
		t.Scale, 0, t.Scale * t.TranslateX,
		0, t.Scale, t.Scale * t.TranslateY,
	}
}

//WarpFrame redraws frame through t, the way the aligned skeleton is drawn over it.
//The result has the frame's size, the caller closes it.
func WarpFrame(frame gocv.Mat, t align.Transform) gocv.Mat {
	dst := gocv.NewMat()
	if t.IsIdentity() {
		frame.CopyTo(&dst)
		return dst
	}

	coeffs := affineCoefficients(t)
	m := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	defer m.Close()
	for i, v := range coeffs {
		m.SetDoubleAt(i/3, i%3, v)
	}
	gocv.WarpAffine(frame, &dst, m, image.Pt(frame.Cols(), frame.Rows()))
	return dst
}

//PlotLabel writes text in a filled box whose top left corner is at pt
func PlotLabel(frame *gocv.Mat, text string, pt image.Point, background color.RGBA) {
	whiteRGB := color.RGBA{255, 255, 255, 0}

	size := gocv.GetTextSize(text, gocv.FontHersheyPlain, 1.2, 2)
	textBackgroundRect := image.Rect(pt.X, pt.Y, pt.X+size.X+10, pt.Y+size.Y+12)
	gocv.Rectangle(frame, textBackgroundRect, background, -1) //thickness -1 == filled rectangle
	gocv.PutText(frame, text, image.Pt(pt.X+5, pt.Y+size.Y+6), gocv.FontHersheyPlain, 1.2, whiteRGB, 2)
}

//Overlay draws the raw frame warped by t, then the pose skeleton through the same transform.
//It is what the comparison view shows for one side of a sample.
func Overlay(frame gocv.Mat, t align.Transform, draw func(render.Surface)) gocv.Mat {
	out := WarpFrame(frame, t)
	draw(render.Transformed(NewMatSurface(&out), t))
	return out
}

//SavePNG writes frame to path
func SavePNG(path string, frame gocv.Mat) error {
	if ok := gocv.IMWrite(path, frame); !ok {
		return fmt.Errorf("SavePNG: could not write '%s'", path)
	}
	return nil
}
