package postprocess

import (
	"image"

	"github.com/nvr-ai/go-linecount/images"
)

// Filter decodes raw detector outputs into pixel-space detections whose best
// class score is strictly greater than confThreshold.
//
// The best class of a row is the first maximum among its class-score columns;
// the reserved objectness column does not take part in scoring. Geometry is
// scaled by the frame size and truncated to whole pixels before the top-left
// corner is derived, so a box is exactly reproducible from its center and size.
//
// Malformed outputs contribute no detections. Results keep scan order
// (output order, then row order).
//
// Arguments:
//   - outputs: The raw tensors for one frame, one per detection head.
//   - frame: The frame size (X = width, Y = height) in pixels.
//   - confThreshold: The minimum score, exclusive.
//
// Returns:
//   - []Result: Surviving candidates, unsorted.
func Filter(outputs []Output, frame image.Point, confThreshold float32) []Result {
	var results []Result

	for _, out := range outputs {
		if !out.Valid() {
			continue
		}

		for i := 0; i < out.Rows; i++ {
			row := out.Row(i)

			classID, score := bestClass(row[ColFirstClass:])
			if score <= confThreshold {
				continue
			}

			centerX := int(row[ColCenterX] * float32(frame.X))
			centerY := int(row[ColCenterY] * float32(frame.Y))
			width := int(row[ColWidth] * float32(frame.X))
			height := int(row[ColHeight] * float32(frame.Y))
			left := centerX - width/2
			top := centerY - height/2

			results = append(results, Result{
				Box:    images.RectFromLTWH(left, top, width, height),
				Center: images.Point{X: centerX, Y: centerY},
				Score:  score,
				Class:  classID,
			})
		}
	}

	return results
}

// bestClass returns the index and value of the first maximum score.
func bestClass(scores []float32) (int, float32) {
	classID := 0
	maxScore := scores[0]
	for j := 1; j < len(scores); j++ {
		if scores[j] > maxScore {
			maxScore = scores[j]
			classID = j
		}
	}
	return classID, maxScore
}
