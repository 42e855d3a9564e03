package pipeline

import (
	"github.com/nvr-ai/go-linecount/counter"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrStopped is returned by a sink that wants the run to end, e.g. on a key
// press in the display window.
var ErrStopped = errors.New("stop requested")

// Sink consumes annotated frames.
type Sink interface {
	Write(frame gocv.Mat, result counter.FrameResult) error
	Close() error
}

// VideoCodec and VideoFPS are used for annotated video output.
const (
	VideoCodec = "MJPG"
	VideoFPS   = 28
)

// VideoSink writes frames to a video file. The writer is opened on the first
// frame, sized to it.
type VideoSink struct {
	path   string
	writer *gocv.VideoWriter
}

// NewVideoSink creates a sink writing to path.
func NewVideoSink(path string) *VideoSink {
	return &VideoSink{path: path}
}

// Write appends frame to the video.
func (s *VideoSink) Write(frame gocv.Mat, _ counter.FrameResult) error {
	if s.writer == nil {
		w, err := gocv.VideoWriterFile(s.path, VideoCodec, VideoFPS, frame.Cols(), frame.Rows(), true)
		if err != nil {
			return errors.Wrapf(err, "open video writer %s", s.path)
		}
		s.writer = w
	}
	return s.writer.Write(frame)
}

// Close finalizes the video file.
func (s *VideoSink) Close() error {
	if s.writer == nil {
		return nil
	}
	err := s.writer.Close()
	s.writer = nil
	return err
}

// ImageSink writes each frame to the same image file; the last frame wins.
type ImageSink struct {
	path string
}

// NewImageSink creates a sink writing to path.
func NewImageSink(path string) *ImageSink {
	return &ImageSink{path: path}
}

// Write saves frame.
func (s *ImageSink) Write(frame gocv.Mat, _ counter.FrameResult) error {
	if !gocv.IMWrite(s.path, frame) {
		return errors.Errorf("write image %s", s.path)
	}
	return nil
}

// Close is a no-op.
func (s *ImageSink) Close() error {
	return nil
}

// WindowTitle is the title of the display window.
const WindowTitle = "Car counter"

// WindowSink shows frames in a window. Any key press stops the run.
type WindowSink struct {
	window *gocv.Window
}

// NewWindowSink opens the display window.
func NewWindowSink() *WindowSink {
	return &WindowSink{window: gocv.NewWindow(WindowTitle)}
}

// Write shows frame and polls the keyboard.
func (s *WindowSink) Write(frame gocv.Mat, _ counter.FrameResult) error {
	s.window.IMShow(frame)
	if s.window.WaitKey(1) >= 0 {
		return ErrStopped
	}
	return nil
}

// Close closes the window.
func (s *WindowSink) Close() error {
	return s.window.Close()
}

// CloseAll closes every sink and returns the first error.
func CloseAll(sinks []Sink) error {
	var first error
	for _, s := range sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
