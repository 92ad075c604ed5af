package render

import (
	"image/color"

	"github.com/chenBenjamin97/pose-compare/pkg/align"
)

//Stroke styles a line segment
type Stroke struct {
	Color    color.RGBA `json:"color"`
	Width    float64    `json:"width"`
	RoundCap bool       `json:"roundCap"`
}

//Fill styles a filled disc
type Fill struct {
	Color color.RGBA `json:"color"`
}

//Surface is the minimal 2D drawing capability the skeleton renderer needs.
//Colors carry their opacity in the alpha channel, RGB is not premultiplied.
type Surface interface {
	Clear()
	DrawLine(a, b align.Point, s Stroke)
	DrawDisc(center align.Point, radius float64, f Fill)
}

type transformed struct {
	Surface
	t align.Transform
}

//Transformed returns a surface that maps every coordinate through t before drawing on s.
//Widths and radii are scaled too, like a translate-then-scale on a canvas context.
func Transformed(s Surface, t align.Transform) Surface {
	if t.IsIdentity() {
		return s
	}
	return &transformed{Surface: s, t: t}
}

func (ts *transformed) DrawLine(a, b align.Point, s Stroke) {
	s.Width *= ts.t.Scale
	ts.Surface.DrawLine(ts.t.Apply(a), ts.t.Apply(b), s)
}

func (ts *transformed) DrawDisc(center align.Point, radius float64, f Fill) {
	ts.Surface.DrawDisc(ts.t.Apply(center), radius*ts.t.Scale, f)
}
