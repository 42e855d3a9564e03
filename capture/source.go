package capture

import (
	"os"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrEndOfStream is returned by Source.Read when no more frames are available.
var ErrEndOfStream = errors.New("end of stream")

// Source yields frames in capture order.
type Source interface {
	// Read decodes the next frame into dst. It returns ErrEndOfStream once the
	// source is exhausted.
	Read(dst *gocv.Mat) error
	// Close releases the source.
	Close() error
}

// Open opens the source described by config.
func Open(config InputConfig) (Source, error) {
	switch config.Type {
	case InputCamera:
		vc, err := gocv.OpenVideoCapture(config.DeviceID)
		if err != nil {
			return nil, errors.Wrapf(err, "open camera %d", config.DeviceID)
		}
		return &videoSource{capture: vc}, nil
	case InputVideo:
		vc, err := gocv.OpenVideoCapture(config.Path)
		if err != nil {
			return nil, errors.Wrapf(err, "open video %s", config.Path)
		}
		return &videoSource{capture: vc}, nil
	case InputImage:
		return &imageSource{path: config.Path}, nil
	case InputDirectory:
		frames, err := LoadFrameFiles(config.Path)
		if err != nil {
			return nil, errors.Wrapf(err, "open directory %s", config.Path)
		}
		return &directorySource{frames: frames}, nil
	default:
		return nil, errors.Errorf("unknown input type %d", config.Type)
	}
}

type videoSource struct {
	capture *gocv.VideoCapture
}

func (s *videoSource) Read(dst *gocv.Mat) error {
	if !s.capture.Read(dst) || dst.Empty() {
		return ErrEndOfStream
	}
	return nil
}

func (s *videoSource) Close() error {
	return s.capture.Close()
}

// imageSource yields one frame.
type imageSource struct {
	path string
	done bool
}

func (s *imageSource) Read(dst *gocv.Mat) error {
	if s.done {
		return ErrEndOfStream
	}
	s.done = true

	img := gocv.IMRead(s.path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return errors.Errorf("read image %s", s.path)
	}
	img.CopyTo(dst)
	return nil
}

func (s *imageSource) Close() error {
	return nil
}

// directorySource decodes one still per Read.
type directorySource struct {
	frames []FrameFile
	next   int
}

func (s *directorySource) Read(dst *gocv.Mat) error {
	if s.next >= len(s.frames) {
		return ErrEndOfStream
	}
	frame := s.frames[s.next]
	s.next++

	data, err := os.ReadFile(frame.Path)
	if err != nil {
		return errors.Wrapf(err, "read frame %d", frame.Frame)
	}
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return errors.Wrapf(err, "decode frame %d", frame.Frame)
	}
	defer img.Close()
	if img.Empty() {
		return errors.Errorf("decode frame %d: empty image", frame.Frame)
	}
	img.CopyTo(dst)
	return nil
}

func (s *directorySource) Close() error {
	return nil
}
