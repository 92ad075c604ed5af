package pose

import "fmt"

//Name is one of the 33 landmarks of the full body model. Values follow the model's output order.
type Name int

const (
	Nose Name = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex

	//NumNames is the size of the keypoint set
	NumNames int = iota
)

var names = [NumNames]string{
	"nose",
	"left_eye_inner",
	"left_eye",
	"left_eye_outer",
	"right_eye_inner",
	"right_eye",
	"right_eye_outer",
	"left_ear",
	"right_ear",
	"mouth_left",
	"mouth_right",
	"left_shoulder",
	"right_shoulder",
	"left_elbow",
	"right_elbow",
	"left_wrist",
	"right_wrist",
	"left_pinky",
	"right_pinky",
	"left_index",
	"right_index",
	"left_thumb",
	"right_thumb",
	"left_hip",
	"right_hip",
	"left_knee",
	"right_knee",
	"left_ankle",
	"right_ankle",
	"left_heel",
	"right_heel",
	"left_foot_index",
	"right_foot_index",
}

var byName = func() map[string]Name {
	m := make(map[string]Name, NumNames)
	for i, s := range names {
		m[s] = Name(i)
	}
	return m
}()

func (n Name) String() string {
	if !n.Valid() {
		return fmt.Sprintf("Name(%d)", int(n))
	}
	return names[n]
}

//Valid reports whether n belongs to the keypoint set
func (n Name) Valid() bool {
	return n >= 0 && int(n) < NumNames
}

//ParseName returns the Name for a model landmark label such as "left_shoulder"
func ParseName(s string) (Name, error) {
	if n, ok := byName[s]; ok {
		return n, nil
	}
	return 0, fmt.Errorf("unknown keypoint name '%s'", s)
}

//Names returns every keypoint name in model order
func Names() []Name {
	out := make([]Name, NumNames)
	for i := range out {
		out[i] = Name(i)
	}
	return out
}

func (n Name) MarshalText() ([]byte, error) {
	if !n.Valid() {
		return nil, fmt.Errorf("invalid keypoint name %d", int(n))
	}
	return []byte(names[n]), nil
}

func (n *Name) UnmarshalText(b []byte) error {
	parsed, err := ParseName(string(b))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
