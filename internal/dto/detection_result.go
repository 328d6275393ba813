package dto

import "image"

// DetectionResult is one box returned by the detector for a single frame.
// Box spans (x1,y1)-(x2,y2) in frame pixel coordinates.
type DetectionResult struct {
	ClassID    int
	Label      string
	Confidence float64
	Box        image.Rectangle
}
