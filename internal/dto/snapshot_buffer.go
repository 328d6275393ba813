package dto

import "time"

// BufferedSnapshot holds an encoded annotated frame and its detections before flushing to disk.
type BufferedSnapshot struct {
	Timestamp  time.Time
	Camera     string
	SessionID  string
	Detections []DetectionResult
	Data       []byte
}
