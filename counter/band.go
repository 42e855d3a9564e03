package counter

// Band is the horizontal strip of frame rows in which a detection center
// counts as crossing the line.
type Band struct {
	// Center is the row of the counting line.
	Center int `json:"center"`
	// HalfHeight is the distance from Center to either edge, inclusive.
	HalfHeight int `json:"half_height"`
}

// NewBand places the counting line divisor-th of the frame height above the
// bottom edge, using integer arithmetic: center = height - height/divisor.
//
// Arguments:
//   - height: The frame height in pixels.
//   - divisor: The fraction of the height the line sits above the bottom edge.
//   - halfHeight: The band half-height in pixels.
//
// Returns:
//   - Band: The counting band for frames of that height.
func NewBand(height, divisor, halfHeight int) Band {
	return Band{
		Center:     height - height/divisor,
		HalfHeight: halfHeight,
	}
}

// Top returns the first row of the band.
func (b Band) Top() int {
	return b.Center - b.HalfHeight
}

// Bottom returns the last row of the band.
func (b Band) Bottom() int {
	return b.Center + b.HalfHeight
}

// Contains reports whether row y lies in [Top, Bottom].
func (b Band) Contains(y int) bool {
	return y >= b.Top() && y <= b.Bottom()
}
