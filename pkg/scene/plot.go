package scene

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	plotMargin    = 0.05
	minPlotExtent = 0.1
)

//View picks the two view space axes an orthographic plot shows
type View int

const (
	//Front looks down -Z: horizontal X, vertical Y
	Front View = iota
	//Side looks down +X: horizontal Z, vertical Y
	Side
)

func (v View) String() string {
	if v == Side {
		return "side"
	}
	return "front"
}

func (v View) project(x, y, z float64) (float64, float64) {
	if v == Side {
		return z, y
	}
	return x, y
}

//PlotScene draws every update as orthographic PNG views, one file per view
type PlotScene struct {
	//Paths maps each view to the file it is saved to
	Paths map[View]string
	Title string
	Size  vg.Length
}

//NewPlotScene returns a scene writing the front and side views to the given files
func NewPlotScene(frontPath, sidePath string) *PlotScene {
	return &PlotScene{
		Paths: map[View]string{Front: frontPath, Side: sidePath},
		Size:  6 * vg.Inch,
	}
}

func (s *PlotScene) UpdateScene(points [][]Point, lines [][]Segment) error {
	for view, path := range s.Paths {
		p, err := s.plot(view, points, lines)
		if err != nil {
			return err
		}
		if err := p.Save(s.Size, s.Size, path); err != nil {
			return fmt.Errorf("failed to save %s view to '%s': %w", view, path, err)
		}
	}
	return nil
}

func (s *PlotScene) plot(view View, points [][]Point, lines [][]Segment) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = s.Title
	if view == Side {
		p.X.Label.Text = "z"
	} else {
		p.X.Label.Text = "x"
	}
	p.Y.Label.Text = "y"
	p.Add(plotter.NewGrid())

	for _, set := range lines {
		for _, seg := range set {
			ax, ay := view.project(seg.A.X, seg.A.Y, seg.A.Z)
			bx, by := view.project(seg.B.X, seg.B.Y, seg.B.Z)
			l, err := plotter.NewLine(plotter.XYs{{X: ax, Y: ay}, {X: bx, Y: by}})
			if err != nil {
				return nil, fmt.Errorf("failed to plot segment: %w", err)
			}
			l.LineStyle.Color = seg.Color
			l.LineStyle.Width = vg.Points(2)
			p.Add(l)
		}
	}

	for _, set := range points {
		if len(set) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(set))
		for i, pt := range set {
			xys[i].X, xys[i].Y = view.project(pt.Position.X, pt.Position.Y, pt.Position.Z)
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("failed to plot points: %w", err)
		}
		sc.GlyphStyle.Color = set[0].Color
		sc.GlyphStyle.Radius = vg.Points(2.5)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(sc)
	}

	//same unit length on both axes so the skeleton is not stretched
	if lo, hi, ok := Bounds(points); ok {
		xmin, ymin := view.project(lo.X, lo.Y, lo.Z)
		xmax, ymax := view.project(hi.X, hi.Y, hi.Z)
		p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = pad(square(xmin, xmax, ymin, ymax))
	}

	return p, nil
}

//pad widens a square box by plotMargin of its side, a lone point gets a minimal box
func pad(xmin, xmax, ymin, ymax float64) (float64, float64, float64, float64) {
	m := (xmax - xmin) * plotMargin
	if m == 0 {
		m = minPlotExtent
	}
	return xmin - m, xmax + m, ymin - m, ymax + m
}

func square(xmin, xmax, ymin, ymax float64) (float64, float64, float64, float64) {
	w, h := xmax-xmin, ymax-ymin
	if w > h {
		pad := (w - h) / 2
		return xmin, xmax, ymin - pad, ymax + pad
	}
	pad := (h - w) / 2
	return xmin - pad, xmax + pad, ymin, ymax
}
