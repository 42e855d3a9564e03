// Package pipeline - The frame loop: capture, detect, filter, suppress, count,
// annotate and write, one frame at a time.
package pipeline

import (
	"context"
	"image"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/google/uuid"
	"github.com/nvr-ai/go-linecount/annotate"
	"github.com/nvr-ai/go-linecount/capture"
	"github.com/nvr-ai/go-linecount/counter"
	"github.com/nvr-ai/go-linecount/detector"
	"github.com/nvr-ai/go-linecount/metrics"
	"github.com/nvr-ai/go-linecount/models/postprocess"
	"github.com/nvr-ai/go-linecount/profiler"
	"github.com/nvr-ai/go-linecount/store"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Stage names used for profiling and metrics.
const (
	StageDetect   = "detect"
	StageFilter   = "filter"
	StageNMS      = "nms"
	StageCount    = "count"
	StageAnnotate = "annotate"
	StageWrite    = "write"
)

// Config holds the post-processing thresholds.
type Config struct {
	// ConfThreshold is the minimum best-class score, exclusive.
	ConfThreshold float32 `json:"conf_threshold" yaml:"conf_threshold"`
	// NMS configures suppression.
	NMS postprocess.NMSConfig `json:"nms" yaml:"nms"`
}

// DefaultConfig returns a confidence threshold of 0.5 and an NMS overlap
// threshold of 0.4.
func DefaultConfig() Config {
	return Config{
		ConfThreshold: 0.5,
		NMS:           postprocess.DefaultNMSConfig(),
	}
}

// Options wires the collaborators of a pipeline. Source, Detector and Counter
// are required.
type Options struct {
	Source    capture.Source
	Detector  detector.Detector
	Counter   *counter.Counter
	Annotator *annotate.Annotator
	Sinks     []Sink
	Log       logs.Log
	Profiler  *profiler.Profiler
	Metrics   *metrics.Metrics
	Store     *store.Store
	// Session is the store session crossings are recorded under.
	Session uuid.UUID
}

// Summary describes a finished run.
type Summary struct {
	Frames  uint64         `json:"frames"`
	Counts  counter.Counts `json:"counts"`
	Session uuid.UUID      `json:"session"`
}

// Pipeline processes the frames of one source in order.
type Pipeline struct {
	config Config
	Options
}

// New validates the options and creates a pipeline.
//
// Arguments:
//   - config: The post-processing thresholds.
//   - opts: The collaborators.
//
// Returns:
//   - *Pipeline: The pipeline.
//   - error: If a required collaborator is missing.
func New(config Config, opts Options) (*Pipeline, error) {
	if opts.Source == nil {
		return nil, errors.New("pipeline requires a source")
	}
	if opts.Detector == nil {
		return nil, errors.New("pipeline requires a detector")
	}
	if opts.Counter == nil {
		return nil, errors.New("pipeline requires a counter")
	}
	if opts.Log == nil {
		return nil, errors.New("pipeline requires a logger")
	}
	if opts.Profiler == nil {
		opts.Profiler = profiler.New(profiler.Options{})
	}
	return &Pipeline{config: config, Options: opts}, nil
}

// ProcessOutputs runs the detector outputs of one frame through the filter,
// suppression and the counter.
//
// Arguments:
//   - c: The counting session.
//   - outputs: The raw detector outputs.
//   - frame: The frame size.
//   - config: The thresholds.
//
// Returns:
//   - counter.FrameResult: The counter output.
//   - error: counter.ErrClassOutOfRange on a label mismatch.
func ProcessOutputs(c *counter.Counter, outputs []postprocess.Output, frame image.Point, config Config) (counter.FrameResult, error) {
	candidates := postprocess.Filter(outputs, frame, config.ConfThreshold)
	kept := postprocess.ApplyNMS(candidates, &config.NMS)
	return c.Process(frame, kept)
}

// Step processes one captured frame and hands it to every sink.
//
// Arguments:
//   - frame: The captured frame. Annotations are drawn onto it.
//
// Returns:
//   - counter.FrameResult: The counter output.
//   - error: A detector, counter, store or sink error. ErrStopped from a sink
//     is returned after the frame was fully applied.
func (p *Pipeline) Step(frame *gocv.Mat) (counter.FrameResult, error) {
	start := time.Now()
	size := image.Point{X: frame.Cols(), Y: frame.Rows()}

	done := p.Profiler.StartStage(StageDetect)
	outputs, err := p.Detector.Detect(*frame)
	done()
	if err != nil {
		p.observeError("detect")
		return counter.FrameResult{}, errors.Wrap(err, "detect")
	}

	done = p.Profiler.StartStage(StageFilter)
	candidates := postprocess.Filter(outputs, size, p.config.ConfThreshold)
	done()

	done = p.Profiler.StartStage(StageNMS)
	kept := postprocess.ApplyNMS(candidates, &p.config.NMS)
	done()

	done = p.Profiler.StartStage(StageCount)
	result, err := p.Counter.Process(size, kept)
	done()
	if err != nil {
		p.observeError("count")
		return counter.FrameResult{}, err
	}

	for _, c := range result.Crossings {
		p.Log.Debugf("Frame %d: %s crossed at x=%d (score %.2f)", c.Frame, c.Category, c.Center.X, c.Score)
	}

	if p.Store != nil && len(result.Crossings) > 0 {
		if err := p.Store.RecordCrossings(context.Background(), p.Session, result.Crossings); err != nil {
			p.observeError("store")
			return result, errors.Wrap(err, "record crossings")
		}
	}

	if p.Annotator != nil {
		done = p.Profiler.StartStage(StageAnnotate)
		p.Annotator.Draw(frame, result)
		done()
	}

	if p.Metrics != nil {
		p.Metrics.ObserveFrame(result, time.Since(start))
	}

	done = p.Profiler.StartStage(StageWrite)
	defer done()
	var stopped bool
	for _, sink := range p.Sinks {
		if err := sink.Write(*frame, result); err != nil {
			if errors.Is(err, ErrStopped) {
				stopped = true
				continue
			}
			p.observeError("sink")
			return result, errors.Wrap(err, "write frame")
		}
	}
	if stopped {
		return result, ErrStopped
	}
	return result, nil
}

// Run reads and processes frames until the source is exhausted, a sink asks to
// stop, ctx is cancelled or a fatal error occurs. Cancellation is checked
// between frames only, so the counts always reflect whole frames.
//
// Arguments:
//   - ctx: Cancels the run between frames.
//
// Returns:
//   - Summary: The frames processed and the final counts.
//   - error: nil at end of stream or on a stop request, ctx.Err() on
//     cancellation, otherwise the fatal error.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	frame := gocv.NewMat()
	defer frame.Close()

	p.Profiler.Start()
	defer p.Profiler.Stop()

	summary := func() Summary {
		return Summary{Frames: p.Counter.Frames(), Counts: p.Counter.Counts(), Session: p.Session}
	}

	for {
		select {
		case <-ctx.Done():
			p.Log.Infof("Stopped after %d frames", p.Counter.Frames())
			return summary(), ctx.Err()
		default:
		}

		if err := p.Source.Read(&frame); err != nil {
			if errors.Is(err, capture.ErrEndOfStream) {
				p.Log.Infof("End of stream after %d frames", p.Counter.Frames())
				return summary(), nil
			}
			p.observeError("capture")
			return summary(), errors.Wrap(err, "read frame")
		}

		if _, err := p.Step(&frame); err != nil {
			if errors.Is(err, ErrStopped) {
				p.Log.Infof("Stop requested after %d frames", p.Counter.Frames())
				return summary(), nil
			}
			return summary(), err
		}
	}
}

func (p *Pipeline) observeError(kind string) {
	if p.Metrics != nil {
		p.Metrics.ObserveError(kind)
	}
}
