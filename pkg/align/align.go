package align

import (
	"math"

	"github.com/chenBenjamin97/pose-compare/pkg/pose"
)

//Point is a 2D position in image coordinates
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

//Transform translates then uniformly scales: x' = (x + TranslateX) * Scale
type Transform struct {
	TranslateX float64 `json:"translateX"`
	TranslateY float64 `json:"translateY"`
	Scale      float64 `json:"scale"`
}

//Identity leaves every point where it is
var Identity = Transform{Scale: 1}

//Apply maps an image point through the transform
func (t Transform) Apply(p Point) Point {
	return Point{
		X: (p.X + t.TranslateX) * t.Scale,
		Y: (p.Y + t.TranslateY) * t.Scale,
	}
}

//IsIdentity reports whether the transform leaves points unchanged
func (t Transform) IsIdentity() bool {
	return t == Identity
}

//CenterOfGravity is the mean position of both shoulders and both hips. Scores are not checked,
//only presence
func CenterOfGravity(p *pose.Pose) (Point, error) {
	var sum Point
	for _, name := range pose.TorsoNames {
		kp, err := p.Require(name)
		if err != nil {
			return Point{}, err
		}
		sum.X += kp.X
		sum.Y += kp.Y
	}
	return Point{X: sum.X / 4, Y: sum.Y / 4}, nil
}

//TorsoHeight is the vertical distance between the shoulder midpoint and the hip midpoint
func TorsoHeight(p *pose.Pose) (float64, error) {
	var ys [4]float64
	for i, name := range pose.TorsoNames {
		kp, err := p.Require(name)
		if err != nil {
			return 0, err
		}
		ys[i] = kp.Y
	}
	shoulders := (ys[0] + ys[1]) / 2
	hips := (ys[2] + ys[3]) / 2
	return math.Abs(shoulders - hips), nil
}

//Scales returns the factors that bring torso heights h1 and h2 to max(h1, h2)
//A zero height cannot be measured against, that side keeps scale 1
func Scales(h1, h2 float64) (float64, float64) {
	target := math.Max(h1, h2)
	return scaleTo(target, h1), scaleTo(target, h2)
}

func scaleTo(target, h float64) float64 {
	if h <= 0 || target <= 0 {
		return 1
	}
	return target / h
}

//Alignment is the pair of transforms for one comparison step, along with the measurements
//they were derived from
type Alignment struct {
	First   Transform `json:"first"`
	Second  Transform `json:"second"`
	COG1    Point     `json:"cog1"`
	COG2    Point     `json:"cog2"`
	Height1 float64   `json:"height1"`
	Height2 float64   `json:"height2"`
}

//Align computes the transforms for two poses. Both transforms are meant to be applied to the
//pose's skeleton and to the raw frame it was detected on
func Align(p1, p2 *pose.Pose) (Alignment, error) {
	cog1, err := CenterOfGravity(p1)
	if err != nil {
		return Alignment{}, err
	}
	cog2, err := CenterOfGravity(p2)
	if err != nil {
		return Alignment{}, err
	}
	h1, err := TorsoHeight(p1)
	if err != nil {
		return Alignment{}, err
	}
	h2, err := TorsoHeight(p2)
	if err != nil {
		return Alignment{}, err
	}

	s1, s2 := Scales(h1, h2)

	return Alignment{
		First: Transform{
			TranslateX: (cog2.X - cog1.X*s1) / 2,
			TranslateY: (cog2.Y - cog1.Y*s1) / 2,
			Scale:      s1,
		},
		Second: Transform{
			TranslateX: (cog1.X - cog2.X*s2) / 2,
			TranslateY: (cog1.Y - cog2.Y*s2) / 2,
			Scale:      s2,
		},
		COG1:    cog1,
		COG2:    cog2,
		Height1: h1,
		Height2: h2,
	}, nil
}
