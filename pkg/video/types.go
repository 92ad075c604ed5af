package video

import (
	"sort"

	"github.com/chenBenjamin97/pose-compare/pkg/pose"
)

//estimateRequest is one line written to the estimator process' standard input
type estimateRequest struct {
	ID             int     `json:"id"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	JPEG           []byte  `json:"jpeg"`
	MaxPoses       int     `json:"maxPoses"`
	FlipHorizontal bool    `json:"flipHorizontal"`
	ScoreThreshold float64 `json:"scoreThreshold"`
}

//wireKeypoint is a keypoint as the estimator process prints it
type wireKeypoint struct {
	Name  string   `json:"name"`
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Z     *float64 `json:"z,omitempty"`
	Score float64  `json:"score"`
}

type wirePose struct {
	Score       float64        `json:"score"`
	Keypoints   []wireKeypoint `json:"keypoints"`
	Keypoints3D []wireKeypoint `json:"keypoints3D"`
}

//estimateResponse is one line read from the estimator process' standard output.
//The process announces a loaded model with a single {"ready":true} line before any answer.
type estimateResponse struct {
	ID    int        `json:"id"`
	Ready bool       `json:"ready,omitempty"`
	Poses []wirePose `json:"poses"`
	Error string     `json:"error,omitempty"`
}

//toPose converts a wire pose, keypoints with a name outside the schema are dropped
func (wp wirePose) toPose() (p *pose.Pose, unknown []string) {
	p = pose.New()
	for _, wk := range wp.Keypoints {
		name, err := pose.ParseName(wk.Name)
		if err != nil {
			unknown = append(unknown, wk.Name)
			continue
		}
		kp := pose.Keypoint{Name: name, X: wk.X, Y: wk.Y, Score: wk.Score}
		if wk.Z != nil {
			kp.Z, kp.HasZ = *wk.Z, true
		}
		p.Set(kp)
	}
	for _, wk := range wp.Keypoints3D {
		name, err := pose.ParseName(wk.Name)
		if err != nil {
			unknown = append(unknown, wk.Name)
			continue
		}
		kp := pose.Keypoint{Name: name, X: wk.X, Y: wk.Y, Score: wk.Score}
		if wk.Z != nil {
			kp.Z = *wk.Z
		}
		p.SetWorld(kp)
	}
	return p, unknown
}

//posesOf keeps the highest scored poses first, at most limit of them (limit <= 0 keeps all)
func posesOf(resp estimateResponse, limit int) ([]*pose.Pose, []string) {
	wire := append([]wirePose(nil), resp.Poses...)
	sort.SliceStable(wire, func(i, j int) bool { return wire[i].Score > wire[j].Score })
	if limit > 0 && len(wire) > limit {
		wire = wire[:limit]
	}

	out := make([]*pose.Pose, 0, len(wire))
	var unknown []string
	for _, wp := range wire {
		p, u := wp.toPose()
		unknown = append(unknown, u...)
		out = append(out, p)
	}
	return out, unknown
}
