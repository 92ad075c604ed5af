package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"gocv.io/x/gocv"

	"github.com/chenBenjamin97/pose-compare/pkg/compare"
	"github.com/chenBenjamin97/pose-compare/pkg/utils"
)

//MatFrame is a decoded frame backed by an OpenCV matrix
type MatFrame struct {
	Mat gocv.Mat
}

func (f *MatFrame) Size() image.Point {
	return image.Pt(f.Mat.Cols(), f.Mat.Rows())
}

func (f *MatFrame) Close() error {
	return f.Mat.Close()
}

//EncodeJPEG returns the frame as a JPEG image
func (f *MatFrame) EncodeJPEG() ([]byte, error) {
	img, err := f.Mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

//EncodeJPEG encodes any frame that knows how to, it is the Encode hook sessions use to keep sample images
func EncodeJPEG(f compare.Frame) ([]byte, error) {
	enc, ok := f.(interface{ EncodeJPEG() ([]byte, error) })
	if !ok {
		return nil, fmt.Errorf("frame of type %T cannot be encoded", f)
	}
	return enc.EncodeJPEG()
}

//Capture is a seekable video file source. Seeks are serialized since a capture has a single read head.
type Capture struct {
	path string
	fps  int

	mu  sync.Mutex
	cap *gocv.VideoCapture
}

//OpenCapture opens the video at path. Frame indices are converted to playback time with fps.
func OpenCapture(path string, fps int) (*Capture, error) {
	if fps <= 0 {
		fps = utils.AssumedFPS
	}
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("OpenCapture: could not open '%s': %w", path, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("OpenCapture: could not open '%s'", path)
	}
	return &Capture{path: path, fps: fps, cap: cap}, nil
}

//FrameCount returns the number of frames the container reports, 0 when unknown
func (c *Capture) FrameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cap == nil {
		return 0
	}
	return int(c.cap.Get(gocv.VideoCaptureFrameCount))
}

//Seek moves the read head to frame idx and decodes it
func (c *Capture) Seek(ctx context.Context, idx int) (compare.Frame, error) {
	if idx < 0 {
		return nil, fmt.Errorf("negative frame index %d", idx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cap == nil {
		return nil, errors.New("capture is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msec := float64(utils.FrameTime(idx, c.fps).Milliseconds())
	c.cap.Set(gocv.VideoCapturePosMsec, msec)

	mat := gocv.NewMat()
	if ok := c.cap.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("no frame at %d (%.0fms) in '%s'", idx, msec, c.path)
	}

	//the caller may have given up while the decoder was busy
	if err := ctx.Err(); err != nil {
		mat.Close()
		return nil, err
	}
	return &MatFrame{Mat: mat}, nil
}

func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cap == nil {
		return nil
	}
	err := c.cap.Close()
	c.cap = nil
	return err
}
