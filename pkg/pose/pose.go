package pose

import "fmt"

//Keypoint is a single detected landmark. Z is only meaningful when HasZ is set.
type Keypoint struct {
	Name  Name    `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z,omitempty"`
	HasZ  bool    `json:"hasZ,omitempty"`
	Score float64 `json:"score"`
}

//Pose holds the keypoints detected for one subject on one frame.
//Keypoints are in image coordinates, World (optional) holds the model's 3D estimate.
type Pose struct {
	Keypoints map[Name]Keypoint `json:"keypoints"`
	World     map[Name]Keypoint `json:"world,omitempty"`
}

//New builds a pose from a list of keypoints, a later keypoint with the same name replaces an earlier one
func New(kps ...Keypoint) *Pose {
	p := &Pose{Keypoints: make(map[Name]Keypoint, len(kps))}
	for _, kp := range kps {
		p.Keypoints[kp.Name] = kp
	}
	return p
}

//Set stores kp under its name
func (p *Pose) Set(kp Keypoint) {
	if p.Keypoints == nil {
		p.Keypoints = make(map[Name]Keypoint)
	}
	p.Keypoints[kp.Name] = kp
}

//SetWorld stores a 3D keypoint under its name
func (p *Pose) SetWorld(kp Keypoint) {
	if p.World == nil {
		p.World = make(map[Name]Keypoint)
	}
	kp.HasZ = true
	p.World[kp.Name] = kp
}

//Get returns the image space keypoint for name, ok is false when the model did not return it
func (p *Pose) Get(name Name) (Keypoint, bool) {
	if p == nil {
		return Keypoint{}, false
	}
	kp, ok := p.Keypoints[name]
	return kp, ok
}

//Require is Get but fails with MissingKeypointError when the keypoint is absent
func (p *Pose) Require(name Name) (Keypoint, error) {
	kp, ok := p.Get(name)
	if !ok {
		return Keypoint{}, &MissingKeypointError{Name: name}
	}
	return kp, nil
}

//Visible reports whether kp's score is strictly above threshold
func (kp Keypoint) Visible(threshold float64) bool {
	return kp.Score > threshold
}

//Has3D reports whether the pose carries 3D coordinates, either world keypoints or image keypoints with depth
func (p *Pose) Has3D() bool {
	if p == nil {
		return false
	}
	if len(p.World) > 0 {
		return true
	}
	for _, kp := range p.Keypoints {
		if kp.HasZ {
			return true
		}
	}
	return false
}

//MissingKeypointError is returned when an operation needs a keypoint the detection does not contain
type MissingKeypointError struct {
	Name Name
}

func (e *MissingKeypointError) Error() string {
	return fmt.Sprintf("missing keypoint '%s'", e.Name)
}
