package scene

import (
	"errors"
	"image/color"

	"github.com/golang/geo/r3"

	"github.com/chenBenjamin97/pose-compare/pkg/pose"
)

//ErrNoDepth is returned when a pose has neither world keypoints nor image keypoints with depth
var ErrNoDepth = errors.New("pose has no 3D keypoints")

//Point is one projected keypoint
type Point struct {
	Name     pose.Name  `json:"name"`
	Position r3.Vector  `json:"position"`
	Color    color.RGBA `json:"color"`
}

//Segment is one projected skeleton edge
type Segment struct {
	A     r3.Vector  `json:"a"`
	B     r3.Vector  `json:"b"`
	Group pose.Group `json:"group"`
	Color color.RGBA `json:"color"`
}

//Skeleton is the projected geometry of one pose
type Skeleton struct {
	Points   []Point   `json:"points"`
	Segments []Segment `json:"segments"`
}

var (
	//FirstColor is the 3D color of the first pose of a comparison
	FirstColor = color.RGBA{R: 0x40, G: 0xE0, B: 0xD0, A: 0xFF}
	//SecondColor is the 3D color of the second pose of a comparison
	SecondColor = color.RGBA{R: 0xFF, G: 0x6C, B: 0xD6, A: 0xFF}
)

//ToView maps a raw keypoint position to a right handed view with Y up and the subject facing +Z
//No alignment is applied, the COG/torso normalization only concerns the 2D overlay
func ToView(kp pose.Keypoint) r3.Vector {
	return r3.Vector{X: kp.X, Y: -kp.Y, Z: -kp.Z}
}

func depthKeypoints(p *pose.Pose) (map[pose.Name]pose.Keypoint, error) {
	if !p.Has3D() {
		return nil, ErrNoDepth
	}
	if len(p.World) > 0 {
		return p.World, nil
	}
	out := make(map[pose.Name]pose.Keypoint)
	for name, kp := range p.Keypoints {
		if kp.HasZ {
			out[name] = kp
		}
	}
	return out, nil
}

//Project maps p into view space. Points and segments follow the same strict visibility rule as
//the 2D renderer, segments come from the shared connection graph
func Project(p *pose.Pose, c color.RGBA, threshold float64) (Skeleton, error) {
	kps, err := depthKeypoints(p)
	if err != nil {
		return Skeleton{}, err
	}

	sk := Skeleton{Points: []Point{}, Segments: []Segment{}}
	for _, name := range pose.Names() {
		kp, ok := kps[name]
		if !ok || !kp.Visible(threshold) {
			continue
		}
		sk.Points = append(sk.Points, Point{Name: name, Position: ToView(kp), Color: c})
	}

	for _, conn := range pose.Connections {
		a, ok := kps[conn.A]
		if !ok {
			continue
		}
		b, ok := kps[conn.B]
		if !ok {
			continue
		}
		if !a.Visible(threshold) || !b.Visible(threshold) {
			continue
		}
		sk.Segments = append(sk.Segments, Segment{A: ToView(a), B: ToView(b), Group: conn.Group, Color: c})
	}

	return sk, nil
}

//ProjectPair projects one or two poses, the first in FirstColor and the second in SecondColor
//A nil pose or one without depth is left out, so the result has zero to two skeletons
func ProjectPair(p1, p2 *pose.Pose, threshold float64) []Skeleton {
	out := make([]Skeleton, 0, 2)
	if sk, err := Project(p1, FirstColor, threshold); err == nil {
		out = append(out, sk)
	}
	if sk, err := Project(p2, SecondColor, threshold); err == nil {
		out = append(out, sk)
	}
	return out
}

//Bounds returns the axis aligned box around every point of the sets
func Bounds(points [][]Point) (lo, hi r3.Vector, ok bool) {
	for _, set := range points {
		for _, p := range set {
			v := p.Position
			if !ok {
				lo, hi, ok = v, v, true
				continue
			}
			lo = r3.Vector{X: min(lo.X, v.X), Y: min(lo.Y, v.Y), Z: min(lo.Z, v.Z)}
			hi = r3.Vector{X: max(hi.X, v.X), Y: max(hi.Y, v.Y), Z: max(hi.Z, v.Z)}
		}
	}
	return lo, hi, ok
}
