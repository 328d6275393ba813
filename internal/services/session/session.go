// Package session runs the capture, detect and render loop for one video source.
package session

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"firewatch/internal/dto"
	"firewatch/internal/logger"
	"firewatch/internal/models"
	"firewatch/internal/services/ai"
	"firewatch/internal/services/alert"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// StopReason says why Run returned.
type StopReason string

const (
	StopSourceExhausted StopReason = "source_exhausted"
	StopTerminated      StopReason = "terminated"
)

// Default loop parameters.
const (
	DefaultPredictionInterval  = 10
	DefaultConfidenceThreshold = 0.5
	DefaultTargetLabel         = "fire"
)

// Detector finds objects in a frame.
type Detector interface {
	Detect(frame gocv.Mat, threshold float64) ([]dto.DetectionResult, error)
}

// Renderer draws detections and the alert warning.
type Renderer interface {
	RenderBoxes(frame *gocv.Mat, detections []dto.DetectionResult) error
	RenderWarning(frame gocv.Mat) gocv.Mat
}

// Alerter starts the alarm. Only the first call has any effect.
type Alerter interface {
	Trigger(ctx context.Context, alert models.Alert) bool
}

// SnapshotRecorder keeps annotated frames that had detections.
type SnapshotRecorder interface {
	Record(camera, sessionID string, frame gocv.Mat, detections []dto.DetectionResult)
}

// Config holds the per-session loop parameters.
type Config struct {
	Camera              string
	Source              string
	PredictionInterval  int
	ConfidenceThreshold float64
	TargetLabel         string
}

// Session is one pass over a video source with its own frame counter and
// alert latch.
type Session struct {
	id        string
	cfg       Config
	source    Source
	sink      Sink
	detector  Detector
	renderer  Renderer
	alerter   Alerter
	snapshots SnapshotRecorder
	logger    *logger.Logger

	latch     alert.Latch
	frames    atomic.Int64
	running   atomic.Bool
	startedAt time.Time
}

// New creates a session. snapshots may be nil.
func New(cfg Config, source Source, sink Sink, detector Detector, renderer Renderer, alerter Alerter, snapshots SnapshotRecorder, log *logger.Logger) *Session {
	if cfg.PredictionInterval <= 0 {
		cfg.PredictionInterval = DefaultPredictionInterval
	}
	if cfg.TargetLabel == "" {
		cfg.TargetLabel = DefaultTargetLabel
	}

	return &Session{
		id:        uuid.NewString(),
		cfg:       cfg,
		source:    source,
		sink:      sink,
		detector:  detector,
		renderer:  renderer,
		alerter:   alerter,
		snapshots: snapshots,
		logger:    log,
		startedAt: time.Now(),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Camera returns the name of the source this session reads.
func (s *Session) Camera() string { return s.cfg.Camera }

// Frames returns how many frames have been read.
func (s *Session) Frames() int64 { return s.frames.Load() }

// AlertActive reports whether the alert latch has been set.
func (s *Session) AlertActive() bool { return s.latch.Active() }

// StartedAt returns the session creation time.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Status returns a snapshot of the session counters. Safe to call while Run is active.
func (s *Session) Status() dto.SessionStatus {
	return dto.SessionStatus{
		ID:          s.id,
		Camera:      s.cfg.Camera,
		Source:      s.cfg.Source,
		Frames:      s.frames.Load(),
		AlertActive: s.latch.Active(),
		StartedAt:   s.startedAt,
		Running:     s.running.Load(),
	}
}

// Run processes frames until the source runs out, the sink asks to stop
// or ctx is cancelled. The source is closed on return.
func (s *Session) Run(ctx context.Context) StopReason {
	s.running.Store(true)
	defer s.running.Store(false)
	defer func() {
		if err := s.source.Close(); err != nil {
			s.logger.Warning("[%s] Failed to close source: %v", s.cfg.Camera, err)
		}
	}()

	frame := gocv.NewMat()
	defer frame.Close()

	s.logger.Info("[%s] Session %s started (every %d frames, conf %.2f)",
		s.cfg.Camera, s.id, s.cfg.PredictionInterval, s.cfg.ConfidenceThreshold)

	for {
		if ok := s.source.Read(&frame); !ok || frame.Empty() {
			s.logger.Info("[%s] Source exhausted after %d frames", s.cfg.Camera, s.frames.Load())
			return StopSourceExhausted
		}

		s.processFrame(ctx, &frame)

		select {
		case <-ctx.Done():
			return StopTerminated
		default:
		}
		if s.sink.ShouldTerminate() {
			s.logger.Info("[%s] Termination requested by sink", s.cfg.Camera)
			return StopTerminated
		}
	}
}

func (s *Session) processFrame(ctx context.Context, frame *gocv.Mat) {
	n := s.frames.Add(1)

	var detections []dto.DetectionResult
	if n%int64(s.cfg.PredictionInterval) == 0 {
		detections = s.detect(*frame)
	}

	for _, det := range detections {
		if det.Label != s.cfg.TargetLabel {
			continue
		}
		if s.latch.Activate() {
			s.alerter.Trigger(ctx, s.newAlert(det, n))
		}
	}

	if len(detections) > 0 {
		if err := s.renderer.RenderBoxes(frame, detections); err != nil {
			s.logger.Warning("[%s] Failed to draw detections: %v", s.cfg.Camera, err)
		}
		if s.snapshots != nil {
			s.snapshots.Record(s.cfg.Camera, s.id, *frame, detections)
		}
	}

	out := *frame
	if s.latch.Active() {
		out = s.renderer.RenderWarning(*frame)
		defer out.Close()
	}

	if err := s.sink.Emit(out); err != nil {
		s.logger.Warning("[%s] Failed to emit frame %d: %v", s.cfg.Camera, n, err)
	}
}

// detect runs the detector and turns failures into an empty result.
func (s *Session) detect(frame gocv.Mat) (detections []dto.DetectionResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("[%s] Detector panic: %v\n%s", s.cfg.Camera, r, debug.Stack())
			detections = nil
		}
	}()

	detections, err := s.detector.Detect(frame, s.cfg.ConfidenceThreshold)
	if err != nil {
		s.logger.Warning("[%s] Detection skipped (%s): %v", s.cfg.Camera, failureKind(err), err)
		return nil
	}
	return detections
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, ai.ErrNetworkNotLoaded):
		return "network not loaded"
	case errors.Is(err, ai.ErrEmptyFrame):
		return "empty frame"
	case errors.Is(err, ai.ErrInference):
		return "inference"
	}
	return "detector"
}

func (s *Session) newAlert(det dto.DetectionResult, frameIndex int64) models.Alert {
	return models.Alert{
		AlertID:     uuid.NewString(),
		SessionID:   s.id,
		Camera:      s.cfg.Camera,
		Label:       det.Label,
		Confidence:  det.Confidence,
		FrameIndex:  frameIndex,
		X1:          det.Box.Min.X,
		Y1:          det.Box.Min.Y,
		X2:          det.Box.Max.X,
		Y2:          det.Box.Max.Y,
		TriggeredAt: time.Now(),
	}
}

// String implements fmt.Stringer for log lines.
func (s *Session) String() string {
	return fmt.Sprintf("%s/%s", s.cfg.Camera, s.id)
}
