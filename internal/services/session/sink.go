package session

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/hybridgroup/mjpeg"
	"gocv.io/x/gocv"
)

// Sink consumes composited frames and may ask the session to stop.
type Sink interface {
	Emit(frame gocv.Mat) error
	ShouldTerminate() bool
	Close() error
}

// quitKey stops the session when pressed in the preview window.
const quitKey = 'q'

// WindowSink shows frames in a desktop window.
type WindowSink struct {
	window *gocv.Window
	quit   atomic.Bool
}

// NewWindowSink opens a preview window with the given title.
func NewWindowSink(title string) *WindowSink {
	return &WindowSink{window: gocv.NewWindow(title)}
}

// Emit shows the frame and polls the keyboard once.
func (s *WindowSink) Emit(frame gocv.Mat) error {
	s.window.IMShow(frame)
	if key := s.window.WaitKey(1); key&0xFF == quitKey {
		s.quit.Store(true)
	}
	return nil
}

// ShouldTerminate reports whether the quit key was pressed.
func (s *WindowSink) ShouldTerminate() bool {
	return s.quit.Load()
}

// Close destroys the window.
func (s *WindowSink) Close() error {
	return s.window.Close()
}

// StreamSink publishes frames as an MJPEG stream for browsers.
type StreamSink struct {
	stream *mjpeg.Stream
}

// NewStreamSink creates a sink feeding stream.
func NewStreamSink(stream *mjpeg.Stream) *StreamSink {
	return &StreamSink{stream: stream}
}

// Emit encodes the frame as JPEG and pushes it to connected viewers.
func (s *StreamSink) Emit(frame gocv.Mat) error {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	s.stream.UpdateJPEG(buf.GetBytes())
	return nil
}

// ShouldTerminate is always false; viewers cannot stop a session.
func (s *StreamSink) ShouldTerminate() bool { return false }

// Close is a no-op. The stream outlives sessions so viewers stay connected across restarts.
func (s *StreamSink) Close() error { return nil }

// MultiSink fans frames out to several sinks.
type MultiSink []Sink

// Emit sends the frame to every sink and joins their errors.
func (m MultiSink) Emit(frame gocv.Mat) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ShouldTerminate is true when any sink asks to stop.
func (m MultiSink) ShouldTerminate() bool {
	for _, s := range m {
		if s.ShouldTerminate() {
			return true
		}
	}
	return false
}

// Close closes every sink.
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
