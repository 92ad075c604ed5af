package scene

import "sync"

//Scene is a 3D renderer: it redraws everything from the point and line sets it is given
type Scene interface {
	UpdateScene(points [][]Point, lines [][]Segment) error
}

//Update splits skeletons into the point and line sets a Scene takes
func Update(s Scene, skeletons []Skeleton) error {
	points := make([][]Point, len(skeletons))
	lines := make([][]Segment, len(skeletons))
	for i, sk := range skeletons {
		points[i] = sk.Points
		lines[i] = sk.Segments
	}
	return s.UpdateScene(points, lines)
}

//JSONScene keeps the last update so it can be serialized for the browser viewer
type JSONScene struct {
	mu     sync.Mutex
	points [][]Point
	lines  [][]Segment
}

//Snapshot is a serializable copy of a JSONScene
type Snapshot struct {
	Points [][]Point   `json:"points"`
	Lines  [][]Segment `json:"lines"`
}

func (s *JSONScene) UpdateScene(points [][]Point, lines [][]Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = points
	s.lines = lines
	return nil
}

//Snapshot returns what the scene currently shows
func (s *JSONScene) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{Points: s.points, Lines: s.lines}
	if snap.Points == nil {
		snap.Points = [][]Point{}
	}
	if snap.Lines == nil {
		snap.Lines = [][]Segment{}
	}
	return snap
}
