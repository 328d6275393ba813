package overlay

import (
	"bytes"
	"image"
	"testing"

	"firewatch/internal/dto"

	"gocv.io/x/gocv"
)

func blackFrame(rows, cols int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC3)
}

func TestLabel(t *testing.T) {
	tests := []struct {
		conf     float64
		expected string
	}{
		{0.5, "Conf: 0.50"},
		{0.876, "Conf: 0.88"},
		{1, "Conf: 1.00"},
	}
	for _, tt := range tests {
		if got := Label(tt.conf); got != tt.expected {
			t.Errorf("Label(%v) = %q, expected %q", tt.conf, got, tt.expected)
		}
	}
}

func TestRenderBoxes_NoDetectionsLeavesFrameIdentical(t *testing.T) {
	frame := blackFrame(120, 160)
	defer frame.Close()
	before := frame.ToBytes()

	if err := RenderBoxes(&frame, nil); err != nil {
		t.Fatalf("RenderBoxes failed: %v", err)
	}

	if !bytes.Equal(before, frame.ToBytes()) {
		t.Error("Frame changed without detections")
	}
}

func TestRenderBoxes_DrawsBlueRectangle(t *testing.T) {
	frame := blackFrame(200, 200)
	defer frame.Close()

	dets := []dto.DetectionResult{
		{Label: "fire", Confidence: 0.9, Box: image.Rect(40, 60, 120, 150)},
	}
	if err := RenderBoxes(&frame, dets); err != nil {
		t.Fatalf("RenderBoxes failed: %v", err)
	}

	// left edge of the box, well below the label
	px := frame.GetVecbAt(100, 40)
	if px[0] != 255 || px[1] != 0 || px[2] != 0 {
		t.Errorf("Expected blue BGR pixel on box edge, got %v", px)
	}

	inside := frame.GetVecbAt(100, 80)
	if inside[0] != 0 || inside[1] != 0 || inside[2] != 0 {
		t.Errorf("Box interior should stay untouched, got %v", inside)
	}
}

func TestCorners(t *testing.T) {
	got := Corners(640, 480)
	expected := []image.Rectangle{
		image.Rect(0, 0, 160, 120),
		image.Rect(480, 0, 640, 120),
		image.Rect(0, 360, 160, 480),
		image.Rect(480, 360, 640, 480),
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("corner %d = %v, expected %v", i, got[i], expected[i])
		}
	}
}

func TestRenderWarning_StampsFourCorners(t *testing.T) {
	frame := blackFrame(480, 640)
	defer frame.Close()
	before := frame.ToBytes()

	warning := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 255, 0), 200, 200, gocv.MatTypeCV8UC3)
	defer warning.Close()

	out := RenderWarning(frame, warning, 640, 480)
	defer out.Close()

	if !bytes.Equal(before, frame.ToBytes()) {
		t.Fatal("Input frame must not be modified")
	}

	red := []image.Point{
		{0, 0}, {159, 119},
		{480, 0}, {639, 119},
		{0, 360}, {159, 479},
		{480, 360}, {639, 479},
	}
	for _, p := range red {
		px := out.GetVecbAt(p.Y, p.X)
		if px[2] != 255 || px[0] != 0 {
			t.Errorf("Expected warning pixel at %v, got %v", p, px)
		}
	}

	untouched := []image.Point{{160, 0}, {320, 240}, {479, 479}, {0, 120}}
	for _, p := range untouched {
		px := out.GetVecbAt(p.Y, p.X)
		if px[0] != 0 || px[1] != 0 || px[2] != 0 {
			t.Errorf("Expected untouched pixel at %v, got %v", p, px)
		}
	}
}

func TestRenderWarning_DegenerateSizeIsNoop(t *testing.T) {
	frame := blackFrame(2, 2)
	defer frame.Close()

	warning := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 255, 0), 10, 10, gocv.MatTypeCV8UC3)
	defer warning.Close()

	out := RenderWarning(frame, warning, 2, 2)
	defer out.Close()

	if !bytes.Equal(frame.ToBytes(), out.ToBytes()) {
		t.Error("Frames smaller than 4x4 must come back unchanged")
	}
}

func TestRenderWarning_EmptyWarningIsNoop(t *testing.T) {
	frame := blackFrame(100, 100)
	defer frame.Close()

	warning := gocv.NewMat()
	defer warning.Close()

	out := RenderWarning(frame, warning, 100, 100)
	defer out.Close()

	if !bytes.Equal(frame.ToBytes(), out.ToBytes()) {
		t.Error("Empty warning image must leave the copy unchanged")
	}
}

func TestCompositor_RenderWarningUsesFrameSize(t *testing.T) {
	warning := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 8, 8, gocv.MatTypeCV8UC3)
	c := NewCompositorFromMat(warning)
	defer c.Close()

	frame := blackFrame(40, 80)
	defer frame.Close()

	out := c.RenderWarning(frame)
	defer out.Close()

	if px := out.GetVecbAt(39, 79); px[0] != 255 {
		t.Errorf("Expected bottom-right corner stamped, got %v", px)
	}
	if px := out.GetVecbAt(20, 40); px[0] != 0 {
		t.Errorf("Expected centre untouched, got %v", px)
	}
}

func TestNewCompositor_MissingFile(t *testing.T) {
	if _, err := NewCompositor(t.TempDir() + "/missing.png"); err == nil {
		t.Error("Expected error for missing warning image")
	}
}
