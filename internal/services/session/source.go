package session

import (
	"fmt"
	"strconv"

	"gocv.io/x/gocv"
)

// Source yields frames until it is exhausted.
type Source interface {
	// Read fills frame and reports whether a frame was produced.
	Read(frame *gocv.Mat) bool
	Close() error
}

// CaptureSource reads from a camera device, video file or stream URL.
type CaptureSource struct {
	capture *gocv.VideoCapture
	id      string
}

// OpenCaptureSource opens id as a device index when it is numeric and as a
// file or URL otherwise.
func OpenCaptureSource(id string) (*CaptureSource, error) {
	var device interface{} = id
	if index, err := strconv.Atoi(id); err == nil {
		device = index
	}

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open video capture %s: %w", id, err)
	}

	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video capture %s is not opened", id)
	}

	return &CaptureSource{capture: capture, id: id}, nil
}

// Read grabs the next frame.
func (s *CaptureSource) Read(frame *gocv.Mat) bool {
	return s.capture.Read(frame)
}

// Close releases the capture device.
func (s *CaptureSource) Close() error {
	return s.capture.Close()
}
