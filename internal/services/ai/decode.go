package ai

import (
	"image"
	"sort"

	"firewatch/internal/dto"
)

// ssdStride is the number of values per SSD detection row:
// [batch, class, confidence, x1, y1, x2, y2] with normalized coordinates.
const ssdStride = 7

// decodeSSD turns a flattened [1,1,N,7] SSD output into detections in frame pixels.
func decodeSSD(data []float32, frameW, frameH int, threshold float64, labels Labels) []dto.DetectionResult {
	var results []dto.DetectionResult
	for i := 0; i+ssdStride <= len(data); i += ssdStride {
		confidence := float64(data[i+2])
		if confidence < threshold {
			continue
		}

		classID := int(data[i+1])
		box := clampBox(image.Rect(
			int(data[i+3]*float32(frameW)),
			int(data[i+4]*float32(frameH)),
			int(data[i+5]*float32(frameW)),
			int(data[i+6]*float32(frameH)),
		), frameW, frameH)
		if box.Empty() {
			continue
		}

		results = append(results, dto.DetectionResult{
			ClassID:    classID,
			Label:      labels.Name(classID),
			Confidence: confidence,
			Box:        box,
		})
	}
	return results
}

// decodeYOLO turns a flattened YOLOv8 output of shape [1, 4+classes, anchors]
// into detections. Boxes are (cx, cy, w, h) in network input pixels and are
// scaled back to the frame before non-maximum suppression.
func decodeYOLO(data []float32, attrs, anchors int, inputSize, frameW, frameH int, threshold, nmsThreshold float64, labels Labels) []dto.DetectionResult {
	if attrs <= 4 || anchors <= 0 || len(data) < attrs*anchors || inputSize <= 0 {
		return nil
	}

	sx := float32(frameW) / float32(inputSize)
	sy := float32(frameH) / float32(inputSize)
	at := func(attr, anchor int) float32 { return data[attr*anchors+anchor] }

	var candidates []dto.DetectionResult
	for i := 0; i < anchors; i++ {
		best, bestScore := -1, float32(0)
		for c := 4; c < attrs; c++ {
			if s := at(c, i); s > bestScore {
				best, bestScore = c-4, s
			}
		}
		if best < 0 || float64(bestScore) < threshold {
			continue
		}

		cx, cy, w, h := at(0, i)*sx, at(1, i)*sy, at(2, i)*sx, at(3, i)*sy
		box := clampBox(image.Rect(int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2)), frameW, frameH)
		if box.Empty() {
			continue
		}

		candidates = append(candidates, dto.DetectionResult{
			ClassID:    best,
			Label:      labels.Name(best),
			Confidence: float64(bestScore),
			Box:        box,
		})
	}

	return suppress(candidates, nmsThreshold)
}

// suppress applies greedy per-class non-maximum suppression. The result is
// ordered by descending confidence.
func suppress(dets []dto.DetectionResult, iouThreshold float64) []dto.DetectionResult {
	sort.SliceStable(dets, func(i, j int) bool { return dets[i].Confidence > dets[j].Confidence })

	kept := make([]dto.DetectionResult, 0, len(dets))
	for _, d := range dets {
		overlaps := false
		for _, k := range kept {
			if k.ClassID == d.ClassID && iou(k.Box, d.Box) > iouThreshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, d)
		}
	}
	return kept
}

func iou(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - ia
	if union <= 0 {
		return 0
	}
	return ia / union
}

func clampBox(r image.Rectangle, w, h int) image.Rectangle {
	return r.Canon().Intersect(image.Rect(0, 0, w, h))
}
