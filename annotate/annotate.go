// Package annotate - Draws detections, the reference line and the running
// vehicle counts onto frames.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/nvr-ai/go-linecount/counter"
	"github.com/nvr-ai/go-linecount/models"
	"gocv.io/x/gocv"
)

// Colors, as RGBA.
var (
	// CountedColor outlines a detection that was counted on this frame.
	CountedColor = color.RGBA{R: 50, G: 178, B: 255, A: 255}
	// DetectedColor outlines every other detection.
	DetectedColor = color.RGBA{R: 0, G: 255, B: 13, A: 255}
	// TextColor is used for the counters, labels and the reference line.
	TextColor = color.RGBA{A: 255}
	// LabelBackground is the fill behind a detection label.
	LabelBackground = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	// BandColor outlines the counting band when enabled.
	BandColor = color.RGBA{R: 255, G: 0, B: 255, A: 255}
)

const (
	font            = gocv.FontHersheySimplex
	boxThickness    = 3
	lineThickness   = 2
	counterScale    = 1.0
	counterStartY   = 40
	counterStepY    = 25
	counterX        = 20
	labelScale      = 0.75
	labelMeasure    = 0.5
	labelPadding    = 40
	referenceFactor = 6
)

// Config for an Annotator.
type Config struct {
	// ShowBand outlines the counting band in addition to the reference line.
	ShowBand bool `json:"show_band" yaml:"show_band"`
}

// Annotator draws counting results onto frames.
type Annotator struct {
	classes *models.OutputClassSet
	config  Config
}

// New creates an Annotator that names detections using classes.
func New(classes *models.OutputClassSet, config Config) *Annotator {
	return &Annotator{classes: classes, config: config}
}

// Draw renders one frame's counting result in place: the reference line, the
// optional band, every detection and the counter overlay.
//
// Arguments:
//   - frame: The frame to draw on.
//   - result: The counter output for this frame.
func (a *Annotator) Draw(frame *gocv.Mat, result counter.FrameResult) {
	width := frame.Cols()
	height := frame.Rows()

	y := ReferenceLineY(height)
	gocv.Line(frame, image.Pt(0, y), image.Pt(width, y), TextColor, lineThickness)

	if a.config.ShowBand {
		band := image.Rect(0, result.Band.Top(), width, result.Band.Bottom())
		gocv.Rectangle(frame, band, BandColor, 1)
	}

	for _, d := range result.Detections {
		a.drawDetection(frame, d)
	}

	for i, text := range CounterLines(result.Counts) {
		gocv.PutText(frame, text, image.Pt(counterX, counterStartY+i*counterStepY), font, counterScale, TextColor, lineThickness)
	}
}

func (a *Annotator) drawDetection(frame *gocv.Mat, d counter.Annotated) {
	gocv.Rectangle(frame, d.Box.ToRectangle(), BoxColor(d.Counted), boxThickness)

	label := Label(a.classes, d.Class, d.Score)
	size, baseline := gocv.GetTextSizeWithBaseline(label, font, labelMeasure, 1)
	origin := LabelOrigin(d.Box.X1, d.Box.Y1, size.Y)
	backing := image.Rect(
		origin.X,
		origin.Y-int(math.Round(1.5*float64(size.Y))),
		origin.X+size.X+labelPadding,
		origin.Y+baseline,
	)
	gocv.Rectangle(frame, backing, LabelBackground, -1)
	gocv.PutText(frame, label, origin, font, labelScale, TextColor, 1)
}

// BoxColor returns the outline color of a detection.
func BoxColor(counted bool) color.RGBA {
	if counted {
		return CountedColor
	}
	return DetectedColor
}

// Label formats a detection caption as "name:0.93", or just the score when the
// class has no name.
func Label(classes *models.OutputClassSet, class int, score float32) string {
	text := fmt.Sprintf("%.2f", score)
	if classes == nil {
		return text
	}
	name, err := classes.Name(class)
	if err != nil {
		return text
	}
	return name + ":" + text
}

// LabelOrigin returns the text baseline of a label anchored at a box corner,
// pushed down so the label stays inside the frame.
func LabelOrigin(left, top, textHeight int) image.Point {
	return image.Pt(left, max(top, textHeight))
}

// CounterLines returns the overlay text, one line per vehicle category.
func CounterLines(counts counter.Counts) []string {
	return []string{
		fmt.Sprintf("cars: %d", counts.Get(models.VehicleCar)),
		fmt.Sprintf("motors: %d", counts.Get(models.VehicleMotorcycle)),
		fmt.Sprintf("buses: %d", counts.Get(models.VehicleBus)),
		fmt.Sprintf("trucks: %d", counts.Get(models.VehicleTruck)),
	}
}

// ReferenceLineY returns the row of the drawn reference line. It does not gate
// counting.
func ReferenceLineY(height int) int {
	return height - height/referenceFactor
}
