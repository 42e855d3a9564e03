// Package postprocess - Turns raw detector output into suppressed, pixel-space detections.
package postprocess

import "github.com/nvr-ai/go-linecount/images"

// Result represents a single detection result.
type Result struct {
	// The bounding box of the result, in frame pixels.
	Box images.Rect
	// The box center as decoded from the detector output.
	Center images.Point
	// The confidence score of the result.
	Score float32
	// The predicted class index of the result.
	Class int
}
