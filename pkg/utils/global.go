package utils

//MaxSampledFrames is the cap on how many frames one range (or one pair of ranges) is sampled into
const MaxSampledFrames = 50

//AssumedFPS is the frame rate used for every frame index <-> time conversion
const AssumedFPS = 30

//VisibilityThreshold is the score a keypoint must strictly exceed to be drawn
const VisibilityThreshold = 0.3

//DefaultModel is the pose model used when the configuration does not name one
const DefaultModel = "BlazePose"

//DefaultModelQuality is the model tier used when the configuration does not name one
const DefaultModelQuality = "full"

//VideoExtensions lists the upload formats the frame source can decode
var VideoExtensions = []string{".mp4", ".mov", ".avi", ".webm", ".mkv"}
