package pose

//Group is a styling region of the skeleton. It never changes which primitives are drawn.
type Group int

const (
	Face Group = iota
	Torso
	LeftArm
	RightArm
	LeftLeg
	RightLeg
)

var groupNames = [...]string{"face", "torso", "left-arm", "right-arm", "left-leg", "right-leg"}

func (g Group) String() string {
	if g < 0 || int(g) >= len(groupNames) {
		return "unknown"
	}
	return groupNames[g]
}

func (g Group) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

//Connection is a skeletal edge between two keypoints
type Connection struct {
	A     Name  `json:"a"`
	B     Name  `json:"b"`
	Group Group `json:"group"`
}

//Connections is the skeleton graph shared by every rendering path
var Connections = []Connection{
	{Nose, LeftEye, Face},
	{LeftEye, LeftEar, Face},
	{Nose, RightEye, Face},
	{RightEye, RightEar, Face},

	{LeftShoulder, RightShoulder, Torso},
	{LeftShoulder, LeftHip, Torso},
	{RightShoulder, RightHip, Torso},
	{LeftHip, RightHip, Torso},

	{LeftShoulder, LeftElbow, LeftArm},
	{LeftElbow, LeftWrist, LeftArm},

	{RightShoulder, RightElbow, RightArm},
	{RightElbow, RightWrist, RightArm},
	{RightWrist, RightPinky, RightArm},
	{RightWrist, RightIndex, RightArm},
	{RightWrist, RightThumb, RightArm},
	{RightPinky, RightIndex, RightArm},
	{RightIndex, RightThumb, RightArm},

	{LeftHip, LeftKnee, LeftLeg},
	{LeftKnee, LeftAnkle, LeftLeg},
	{LeftAnkle, LeftHeel, LeftLeg},
	{LeftHeel, LeftFootIndex, LeftLeg},
	{LeftAnkle, LeftFootIndex, LeftLeg},

	{RightHip, RightKnee, RightLeg},
	{RightKnee, RightAnkle, RightLeg},
	{RightAnkle, RightHeel, RightLeg},
	{RightHeel, RightFootIndex, RightLeg},
	{RightAnkle, RightFootIndex, RightLeg},
}

//TorsoNames are the four keypoints used as the alignment anchor
var TorsoNames = [4]Name{LeftShoulder, RightShoulder, LeftHip, RightHip}

//GroupOf returns the styling group of a keypoint.
//The right shoulder belongs to the right arm so the highlighted limb starts at the shoulder joint.
func GroupOf(n Name) Group {
	switch n {
	case Nose, LeftEyeInner, LeftEye, LeftEyeOuter, RightEyeInner, RightEye, RightEyeOuter,
		LeftEar, RightEar, MouthLeft, MouthRight:
		return Face
	case RightShoulder, RightElbow, RightWrist, RightPinky, RightIndex, RightThumb:
		return RightArm
	case LeftElbow, LeftWrist, LeftPinky, LeftIndex, LeftThumb:
		return LeftArm
	case LeftKnee, LeftAnkle, LeftHeel, LeftFootIndex:
		return LeftLeg
	case RightKnee, RightAnkle, RightHeel, RightFootIndex:
		return RightLeg
	default:
		return Torso
	}
}
