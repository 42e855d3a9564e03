// Package images - Pixel-space geometry shared by the post-processing and counting stages.
package images

import (
	"image"

	"github.com/chewxy/math32"
)

// Rect is a lightweight bounding box.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1, Y1, X2, Y2 int
}

// Point is a pixel coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// RectFromLTWH builds a Rect from a left/top corner and a size.
//
// Arguments:
//   - left: The left edge in pixels.
//   - top: The top edge in pixels.
//   - width: The width in pixels.
//   - height: The height in pixels.
//
// Returns:
//   - Rect: The rectangle spanning [left, left+width) x [top, top+height).
func RectFromLTWH(left, top, width, height int) Rect {
	return Rect{X1: left, Y1: top, X2: left + width, Y2: top + height}
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() int {
	return r.X2 - r.X1
}

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() int {
	return r.Y2 - r.Y1
}

// Area returns the rectangle area in pixels. Degenerate rectangles have zero area.
func (r Rect) Area() int {
	if r.X2 <= r.X1 || r.Y2 <= r.Y1 {
		return 0
	}
	return r.Width() * r.Height()
}

// Center returns the integer center of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X1 + r.Width()/2, Y: r.Y1 + r.Height()/2}
}

// ToRectangle converts to an image.Rectangle for drawing with gocv.
func (r Rect) ToRectangle() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// Distance returns the euclidean distance between two points.
func (p Point) Distance(o Point) float32 {
	dx := float32(p.X - o.X)
	dy := float32(p.Y - o.Y)
	return math32.Sqrt(dx*dx + dy*dy)
}

// HorizontalDistance returns |p.X - o.X|.
func (p Point) HorizontalDistance(o Point) float32 {
	return math32.Abs(float32(p.X - o.X))
}

// CalculateIoU returns the Intersection over Union of two rectangles.
//
// IoU = area(r ∩ o) / area(r ∪ o). Rectangles that do not overlap, or only touch
// along an edge, score 0.
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0 representing the IoU score.
//
// Example Usage:
// ```go
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//	iou := CalculateIoU(rect1, rect2) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	// Inclusion-exclusion.
	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}

	return float32(interArea) / float32(unionArea)
}
