package render

import (
	"fmt"
	"sort"

	"github.com/chenBenjamin97/pose-compare/pkg/align"
)

//PrimitiveKind tells a line from a disc
type PrimitiveKind string

const (
	LineKind PrimitiveKind = "line"
	DiscKind PrimitiveKind = "disc"
)

//Primitive is one recorded drawing call
type Primitive struct {
	Kind   PrimitiveKind `json:"kind"`
	A      align.Point   `json:"a"`
	B      align.Point   `json:"b,omitempty"`
	Radius float64       `json:"radius,omitempty"`
	Stroke *Stroke       `json:"stroke,omitempty"`
	Fill   *Fill         `json:"fill,omitempty"`
}

func (p Primitive) key() string {
	switch p.Kind {
	case LineKind:
		return fmt.Sprintf("line %v %v %+v", p.A, p.B, *p.Stroke)
	default:
		return fmt.Sprintf("disc %v %v %+v", p.A, p.Radius, *p.Fill)
	}
}

//Recorder is a Surface that keeps every drawing call instead of rasterizing it.
//The HTTP API sends recorded primitives to the browser, which replays them on a canvas.
type Recorder struct {
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Primitives []Primitive `json:"primitives"`
}

//NewRecorder returns an empty recorder sized to the source frame
func NewRecorder(width, height int) *Recorder {
	return &Recorder{Width: width, Height: height, Primitives: []Primitive{}}
}

func (r *Recorder) Clear() {
	r.Primitives = r.Primitives[:0]
}

func (r *Recorder) DrawLine(a, b align.Point, s Stroke) {
	r.Primitives = append(r.Primitives, Primitive{Kind: LineKind, A: a, B: b, Stroke: &s})
}

func (r *Recorder) DrawDisc(center align.Point, radius float64, f Fill) {
	r.Primitives = append(r.Primitives, Primitive{Kind: DiscKind, A: center, Radius: radius, Fill: &f})
}

//Lines returns the recorded line primitives
func (r *Recorder) Lines() []Primitive {
	return r.filter(LineKind)
}

//Discs returns the recorded disc primitives
func (r *Recorder) Discs() []Primitive {
	return r.filter(DiscKind)
}

func (r *Recorder) filter(kind PrimitiveKind) []Primitive {
	out := make([]Primitive, 0, len(r.Primitives))
	for _, p := range r.Primitives {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

//Set returns an order independent description of everything drawn, equal for equal drawings
func (r *Recorder) Set() []string {
	keys := make([]string, len(r.Primitives))
	for i, p := range r.Primitives {
		keys[i] = p.key()
	}
	sort.Strings(keys)
	return keys
}
