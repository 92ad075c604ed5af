package utils

import (
	"fmt"
	"math"
	"time"
)

//FrameRange is an inclusive range of frame indices of one video source
type FrameRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

//Len returns how many frames the range covers
func (r FrameRange) Len() int {
	return r.End - r.Start + 1
}

//Contains returns true if frame index i is inside the range
func (r FrameRange) Contains(i int) bool {
	return i >= r.Start && i <= r.End
}

//Validate returns an InvalidRangeError if the range is inverted or starts before frame 0
func (r FrameRange) Validate() error {
	if r.Start < 0 {
		return &InvalidRangeError{Range: r, Reason: "start frame is negative"}
	}
	if r.End < r.Start {
		return &InvalidRangeError{Range: r, Reason: "end frame is before start frame"}
	}
	return nil
}

func (r FrameRange) String() string {
	return fmt.Sprintf("[%d,%d]", r.Start, r.End)
}

//InvalidRangeError is returned when a frame range or a sample cap cannot be sampled
type InvalidRangeError struct {
	Range  FrameRange
	Max    int
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid frame range %s: %s", e.Range, e.Reason)
}

func checkCap(r FrameRange, limit int) error {
	if limit <= 0 {
		return &InvalidRangeError{Range: r, Max: limit, Reason: fmt.Sprintf("sample cap %d must be positive", limit)}
	}
	return nil
}

//SampleFrames returns min(limit, r.Len()) evenly spaced frame indices of r, starting at r.Start.
//The step is max(1, floor((end-start)/limit)), so a long range is spread over its whole length
//while a short one is sampled frame by frame.
func SampleFrames(r FrameRange, limit int) ([]int, error) {
	if err := checkCap(r, limit); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	count := r.Len()
	if count > limit {
		count = limit
	}

	step := (r.End - r.Start) / limit
	if step < 1 {
		step = 1
	}

	frames := make([]int, count)
	for i := range frames {
		frames[i] = r.Start + i*step
	}

	return frames, nil
}

//FramePair is one comparison step: a frame of the first source and a frame of the second
type FramePair struct {
	First  int `json:"first"`
	Second int `json:"second"`
}

//SamplePairs samples two ranges of possibly different lengths into min(limit, len1, len2) pairs.
//Pair i takes the frame at the same fractional position i/total of each range, so two clips of
//different duration are compared phase aligned instead of by wall clock offset.
func SamplePairs(r1, r2 FrameRange, limit int) ([]FramePair, error) {
	if err := checkCap(r1, limit); err != nil {
		return nil, err
	}
	if err := r1.Validate(); err != nil {
		return nil, err
	}
	if err := r2.Validate(); err != nil {
		return nil, err
	}

	len1, len2 := r1.Len(), r2.Len()
	total := limit
	if len1 < total {
		total = len1
	}
	if len2 < total {
		total = len2
	}

	pairs := make([]FramePair, total)
	for i := range pairs {
		//integer division is floor for non negative operands
		pairs[i] = FramePair{
			First:  r1.Start + i*len1/total,
			Second: r2.Start + i*len2/total,
		}
	}

	return pairs, nil
}

//FrameTime returns the playback offset of frame index i at fps frames per second
func FrameTime(i, fps int) time.Duration {
	return time.Duration(i) * time.Second / time.Duration(fps)
}

//FrameAt returns the frame index shown at playback offset d, the inverse of FrameTime
func FrameAt(d time.Duration, fps int) int {
	return int(math.Floor(d.Seconds() * float64(fps)))
}
