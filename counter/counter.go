// Package counter - Counts vehicles whose detections cross a horizontal line
// near the bottom of the frame.
//
// A Counter is one counting session. Frames must be fed in capture order from a
// single goroutine: the dedup state always refers to the previous frame.
package counter

import (
	"image"

	"github.com/nvr-ai/go-linecount/images"
	"github.com/nvr-ai/go-linecount/models"
	"github.com/nvr-ai/go-linecount/models/postprocess"
	"github.com/pkg/errors"
)

// ErrClassOutOfRange is returned when a detection carries a class id that is not
// in the label list. It means the model and the labels do not match, and the
// session should stop.
var ErrClassOutOfRange = errors.New("class id out of label range")

// Counts holds one running total per vehicle category, indexed by
// models.VehicleCategory.
type Counts [models.NumVehicleCategories]uint64

// Get returns the total for a category, or 0 for VehicleNone.
func (c Counts) Get(category models.VehicleCategory) uint64 {
	if !category.Valid() {
		return 0
	}
	return c[category]
}

// Total returns the sum over all categories.
func (c Counts) Total() uint64 {
	var total uint64
	for _, n := range c {
		total += n
	}
	return total
}

// Annotated is a detection together with the counter's verdict on it.
type Annotated struct {
	postprocess.Result
	// InBand is true when the detection center lies inside the counting band.
	InBand bool `json:"in_band"`
	// Counted is true when the detection was in the band and not a repeat of a
	// previous-frame band member. It is set for every class, counted or not.
	Counted bool `json:"counted"`
	// Category is the vehicle category of the class, or VehicleNone.
	Category models.VehicleCategory `json:"category"`
}

// Crossing is one counter increment.
type Crossing struct {
	Frame    uint64                 `json:"frame"`
	Category models.VehicleCategory `json:"category"`
	Class    int                    `json:"class"`
	Score    float32                `json:"score"`
	Center   images.Point           `json:"center"`
}

// FrameResult is the outcome of counting one frame.
type FrameResult struct {
	// Frame is the zero-based index of the frame within the session.
	Frame uint64 `json:"frame"`
	// Detections are the input detections in input order.
	Detections []Annotated `json:"detections"`
	// Counts is the running totals after this frame.
	Counts Counts `json:"counts"`
	// Band is the counting band used for this frame.
	Band Band `json:"band"`
	// Crossings are the increments made on this frame.
	Crossings []Crossing `json:"crossings"`
}

// Counter is a line-crossing counting session. It is not safe for concurrent
// use.
type Counter struct {
	config Config
	counts Counts
	frame  uint64

	band       Band
	bandHeight int

	// previous holds the horizontal centers of the last frame's band members.
	previous []int
	current  []int
}

// New creates a counting session with all counts at zero.
//
// Arguments:
//   - config: The band, dedup and label settings.
//
// Returns:
//   - *Counter: The session.
//   - error: If the configuration is invalid.
func New(config Config) (*Counter, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid counter config")
	}
	return &Counter{
		config:     config,
		bandHeight: -1,
	}, nil
}

// Config returns the session configuration.
func (c *Counter) Config() Config {
	return c.config
}

// Counts returns a snapshot of the running totals.
func (c *Counter) Counts() Counts {
	return c.counts
}

// Frames returns the number of frames processed so far.
func (c *Counter) Frames() uint64 {
	return c.frame
}

// BandFor returns the counting band for frames of the given height.
func (c *Counter) BandFor(height int) Band {
	if height != c.bandHeight {
		c.band = NewBand(height, c.config.BandDivisor, c.config.BandHalfHeight)
		c.bandHeight = height
	}
	return c.band
}

// Process counts one frame of suppressed detections.
//
// Every detection whose center row lies in the band is checked against the
// previous frame's band members under the configured Policy. A detection that
// is not a repeat is marked Counted and, if its class is a vehicle, increments
// that category by one.
//
// The frame is applied atomically: if any class id is out of range, nothing is
// counted and the dedup state is left as it was.
//
// Arguments:
//   - frame: The frame size (X = width, Y = height) in pixels.
//   - detections: The detections that survived suppression, in selection order.
//
// Returns:
//   - FrameResult: The annotated detections, counts and crossings of this frame.
//   - error: ErrClassOutOfRange when a class id is not in the label list.
func (c *Counter) Process(frame image.Point, detections []postprocess.Result) (FrameResult, error) {
	for _, d := range detections {
		if d.Class < 0 || d.Class >= c.config.NumClasses {
			return FrameResult{}, errors.Wrapf(ErrClassOutOfRange, "frame %d: class %d with %d labels",
				c.frame, d.Class, c.config.NumClasses)
		}
	}

	band := c.BandFor(frame.Y)
	result := FrameResult{
		Frame:      c.frame,
		Band:       band,
		Detections: make([]Annotated, 0, len(detections)),
	}

	current := c.current[:0]
	for _, d := range detections {
		a := Annotated{
			Result:   d,
			Category: models.VehicleCategoryOf(d.Class),
		}

		if band.Contains(d.Center.Y) {
			a.InBand = true
			a.Counted = !c.isRepeat(d.Center)
			current = append(current, d.Center.X)
		}

		if a.Counted && a.Category.Valid() {
			c.counts[a.Category]++
			result.Crossings = append(result.Crossings, Crossing{
				Frame:    c.frame,
				Category: a.Category,
				Class:    d.Class,
				Score:    d.Score,
				Center:   d.Center,
			})
		}

		result.Detections = append(result.Detections, a)
	}

	switch c.config.Policy {
	case PolicyPreviousFrame:
		c.previous, c.current = current, c.previous[:0]
	default:
		c.previous = c.previous[:0]
		c.current = current[:0]
	}

	c.frame++
	result.Counts = c.counts
	return result, nil
}

// isRepeat reports whether center matches a band member of the previous frame.
func (c *Counter) isRepeat(center images.Point) bool {
	for _, x := range c.previous {
		if center.HorizontalDistance(images.Point{X: x, Y: center.Y}) <= c.config.Tolerance {
			return true
		}
	}
	return false
}

// Reset zeroes the counts and forgets the previous frame.
func (c *Counter) Reset() {
	c.counts = Counts{}
	c.frame = 0
	c.previous = c.previous[:0]
	c.current = c.current[:0]
}
