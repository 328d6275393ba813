// Package overlay draws detection boxes and the fire warning onto frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"firewatch/internal/dto"

	"gocv.io/x/gocv"
)

// BoxColor is blue for boxes and labels (gocv converts RGBA to BGR).
var BoxColor = color.RGBA{R: 0, G: 0, B: 255, A: 0}

const (
	boxThickness  = 2
	textScale     = 0.5
	textThickness = 2
	labelOffsetY  = 10
)

// Label returns the caption drawn above a detection box.
func Label(confidence float64) string {
	return fmt.Sprintf("Conf: %.2f", confidence)
}

// RenderBoxes draws every detection onto frame in the order given.
// With no detections the frame is left untouched.
func RenderBoxes(frame *gocv.Mat, detections []dto.DetectionResult) error {
	for _, det := range detections {
		if err := gocv.Rectangle(frame, det.Box, BoxColor, boxThickness); err != nil {
			return fmt.Errorf("failed to draw rectangle: %w", err)
		}

		pt := image.Pt(det.Box.Min.X, det.Box.Min.Y-labelOffsetY)
		if err := gocv.PutText(frame, Label(det.Confidence), pt, gocv.FontHersheySimplex, textScale, BoxColor, textThickness); err != nil {
			return fmt.Errorf("failed to draw text: %w", err)
		}
	}
	return nil
}

// Corners returns the four corner regions of a width x height frame that
// a warning of size (width/4, height/4) covers: top-left, top-right,
// bottom-left, bottom-right.
func Corners(width, height int) []image.Rectangle {
	cw, ch := width/4, height/4
	return []image.Rectangle{
		image.Rect(0, 0, cw, ch),
		image.Rect(width-cw, 0, width, ch),
		image.Rect(0, height-ch, cw, height),
		image.Rect(width-cw, height-ch, width, height),
	}
}

// RenderWarning returns a copy of frame with warning stamped into all four
// corners, resized to a quarter of width and height. The input frame is
// never modified. If the corner size is zero or warning is empty the copy
// is returned unchanged. The caller owns the returned Mat.
func RenderWarning(frame gocv.Mat, warning gocv.Mat, width, height int) gocv.Mat {
	out := frame.Clone()

	cw, ch := width/4, height/4
	if cw <= 0 || ch <= 0 || warning.Empty() || width > out.Cols() || height > out.Rows() {
		return out
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(warning, &resized, image.Pt(cw, ch), 0, 0, gocv.InterpolationLinear)
	if resized.Empty() {
		return out
	}

	stamp := resized
	if resized.Type() != out.Type() {
		converted := gocv.NewMat()
		defer converted.Close()
		if err := convertLike(resized, &converted, out.Channels()); err != nil {
			return out
		}
		stamp = converted
	}

	for _, corner := range Corners(width, height) {
		region := out.Region(corner)
		stamp.CopyTo(&region)
		region.Close()
	}

	return out
}

// convertLike brings a warning image to the frame's channel count.
func convertLike(src gocv.Mat, dst *gocv.Mat, channels int) error {
	switch {
	case src.Channels() == 4 && channels == 3:
		return gocv.CvtColor(src, dst, gocv.ColorBGRAToBGR)
	case src.Channels() == 1 && channels == 3:
		return gocv.CvtColor(src, dst, gocv.ColorGrayToBGR)
	case src.Channels() == 3 && channels == 4:
		return gocv.CvtColor(src, dst, gocv.ColorBGRToBGRA)
	}
	return fmt.Errorf("unsupported warning image type %v for %d channels", src.Type(), channels)
}

// Compositor holds the warning image shared by every session.
type Compositor struct {
	warning gocv.Mat
}

// NewCompositor loads the warning image from path.
func NewCompositor(path string) (*Compositor, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("warning image not found: %w", err)
	}

	warning := gocv.IMRead(path, gocv.IMReadColor)
	if warning.Empty() {
		warning.Close()
		return nil, fmt.Errorf("failed to decode warning image %s", path)
	}
	return &Compositor{warning: warning}, nil
}

// NewCompositorFromMat wraps an already loaded warning image. The compositor takes ownership.
func NewCompositorFromMat(warning gocv.Mat) *Compositor {
	return &Compositor{warning: warning}
}

// RenderBoxes draws detections onto frame.
func (c *Compositor) RenderBoxes(frame *gocv.Mat, detections []dto.DetectionResult) error {
	return RenderBoxes(frame, detections)
}

// RenderWarning returns a copy of frame with the warning in its corners.
func (c *Compositor) RenderWarning(frame gocv.Mat) gocv.Mat {
	return RenderWarning(frame, c.warning, frame.Cols(), frame.Rows())
}

// Close releases the warning image.
func (c *Compositor) Close() error {
	return c.warning.Close()
}
