// Package ai wraps the object detection network.
package ai

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"firewatch/internal/config"
	"firewatch/internal/dto"
	"firewatch/internal/logger"

	"gocv.io/x/gocv"
)

// Detector failure kinds.
var (
	ErrNetworkNotLoaded = errors.New("detection network not loaded")
	ErrEmptyFrame       = errors.New("empty frame")
	ErrInference        = errors.New("inference failed")
	ErrUnknownTarget    = errors.New("target label not in label table")
)

// Supported network output layouts.
const (
	FormatYOLO = "yolo"
	FormatSSD  = "ssd"
)

// DetectorService runs the detection network over frames. It is safe for
// concurrent use; inference calls are serialized.
type DetectorService struct {
	mu           sync.Mutex
	net          gocv.Net
	loaded       bool
	format       string
	inputSize    int
	nmsThreshold float64
	labels       Labels
	modelPath    string
	configPath   string
	logger       *logger.Logger
}

// NewDetectorService loads labels and the network. Labels are required:
// guessing a class table would map model indices onto the wrong names.
// A network that fails to load is logged and every later Detect returns
// ErrNetworkNotLoaded.
func NewDetectorService(cfg *config.Config, log *logger.Logger) (*DetectorService, error) {
	labels, err := LoadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, fmt.Errorf("could not load labels from %s: %w", cfg.LabelsPath, err)
	}
	if !labels.Contains(cfg.TargetLabel) {
		return nil, fmt.Errorf("%w: %q is not one of %v", ErrUnknownTarget, cfg.TargetLabel, []string(labels))
	}

	s := &DetectorService{
		format:       cfg.ModelFormat,
		inputSize:    cfg.ModelInputSize,
		nmsThreshold: cfg.NMSThreshold,
		labels:       labels,
		modelPath:    cfg.ModelPath,
		configPath:   cfg.ModelConfigPath,
		logger:       log,
	}
	if s.inputSize <= 0 {
		s.inputSize = 640
	}

	if err := s.initializeNet(); err != nil {
		log.Warning("Could not initialize detection network: %v", err)
	}
	return s, nil
}

// initializeNet reads the network from the model (and optional config) file.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}
	if s.configPath != "" {
		if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", s.configPath)
		}
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network from %s", s.modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.loaded = true
	s.logger.Info("Detection network initialized (%s, %d classes)", s.format, len(s.labels))
	return nil
}

// Labels returns the class names known to the detector.
func (s *DetectorService) Labels() Labels {
	return s.labels
}

// Detect runs the network on frame and returns detections with confidence
// at or above threshold, in frame pixel coordinates.
func (s *DetectorService) Detect(frame gocv.Mat, threshold float64) ([]dto.DetectionResult, error) {
	if frame.Empty() {
		return nil, ErrEmptyFrame
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return nil, ErrNetworkNotLoaded
	}

	var blob gocv.Mat
	if s.format == FormatSSD {
		blob = gocv.BlobFromImage(frame, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	} else {
		blob = gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(s.inputSize, s.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	}
	defer blob.Close()

	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return nil, fmt.Errorf("%w: empty network output", ErrInference)
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}

	if s.format == FormatSSD {
		return decodeSSD(data, frame.Cols(), frame.Rows(), threshold, s.labels), nil
	}

	dims := output.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("%w: unexpected output shape %v", ErrInference, dims)
	}
	return decodeYOLO(data, dims[1], dims[2], s.inputSize, frame.Cols(), frame.Rows(), threshold, s.nmsThreshold, s.labels), nil
}

// Close releases the network.
func (s *DetectorService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil
	}
	s.loaded = false
	return s.net.Close()
}
