// Package detector - Object detector adapters that turn a frame into raw YOLO
// output tensors for post-processing.
package detector

import (
	"image"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-linecount/models/postprocess"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Detector runs a model on one frame.
type Detector interface {
	// Detect returns the raw output tensors for frame, one per detection head,
	// in the row layout postprocess.Filter consumes.
	Detect(frame gocv.Mat) ([]postprocess.Output, error)
	// Close releases the model.
	Close() error
}

// Backend selects the inference engine.
type Backend string

const (
	// BackendOpenCV runs darknet or ONNX models through the OpenCV DNN module.
	BackendOpenCV Backend = "opencv"
	// BackendONNXRuntime runs exported ONNX models through ONNX Runtime.
	BackendONNXRuntime Backend = "onnxruntime"
)

// Layout describes how a model lays out its output tensor.
type Layout string

const (
	// LayoutRows is darknet style: one row per candidate of
	// [cx, cy, w, h, objectness, scores...], geometry normalized to [0,1].
	LayoutRows Layout = "rows"
	// LayoutChannelMajor is the exported YOLOv8 style [1, 4+C, N]: one channel
	// per field, geometry in model input pixels, no objectness.
	LayoutChannelMajor Layout = "channel-major"
)

// ErrUnknownBackend is returned by New for an unsupported backend.
var ErrUnknownBackend = errors.New("unknown detector backend")

// Config for a detector.
type Config struct {
	Backend Backend `json:"backend" yaml:"backend"`
	// ModelPath is the darknet .weights file or the .onnx file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// ConfigPath is the darknet .cfg file. Empty for ONNX.
	ConfigPath string `json:"config_path" yaml:"config_path"`
	// InputSize is the model input resolution. 320x320 and 608x608 are common
	// darknet sizes, 640x640 for exported YOLOv8.
	InputSize image.Point `json:"input_size" yaml:"input_size"`
	// Layout is the model output layout.
	Layout Layout `json:"layout" yaml:"layout"`
	// NumClasses is the number of class scores per candidate. Only needed to
	// size the ONNX Runtime output tensor.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
	// InputName and OutputName are the ONNX Runtime tensor names.
	InputName  string `json:"input_name" yaml:"input_name"`
	OutputName string `json:"output_name" yaml:"output_name"`
	// SharedLibPath is the onnxruntime shared library.
	SharedLibPath string `json:"shared_lib_path" yaml:"shared_lib_path"`
}

// DefaultConfig returns a darknet YOLO configuration at 320x320.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendOpenCV,
		ModelPath:     "yolov3.weights",
		ConfigPath:    "yolov3.cfg",
		InputSize:     image.Point{X: 320, Y: 320},
		Layout:        LayoutRows,
		NumClasses:    80,
		InputName:     "images",
		OutputName:    "output0",
		SharedLibPath: SharedLibPath(),
	}
}

// Validate checks the configuration for the selected backend.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model path is required")
	}
	if c.InputSize.X <= 0 || c.InputSize.Y <= 0 {
		return errors.Errorf("invalid input size %dx%d", c.InputSize.X, c.InputSize.Y)
	}
	switch c.Layout {
	case LayoutRows, LayoutChannelMajor:
	default:
		return errors.Errorf("unknown output layout %q", c.Layout)
	}
	if c.Backend == BackendONNXRuntime {
		if c.Layout != LayoutChannelMajor {
			return errors.New("onnxruntime backend requires the channel-major layout")
		}
		if c.NumClasses <= 0 {
			return errors.Errorf("class count must be positive, got %d", c.NumClasses)
		}
	}
	return nil
}

// IsDarknet reports whether the model is a darknet cfg/weights pair.
func (c Config) IsDarknet() bool {
	return strings.EqualFold(filepath.Ext(c.ConfigPath), ".cfg")
}

// New creates the detector for config.Backend.
//
// Arguments:
//   - config: The detector configuration.
//   - log: The logger.
//
// Returns:
//   - Detector: The loaded detector.
//   - error: If the configuration is invalid or the model cannot be loaded.
func New(config Config, log logs.Log) (Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid detector config")
	}

	switch config.Backend {
	case BackendOpenCV:
		return NewNet(config, log)
	case BackendONNXRuntime:
		return NewRuntime(config, log)
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", config.Backend)
	}
}

// SharedLibPath returns the default onnxruntime shared library location for
// this platform.
func SharedLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "third_party/onnxruntime.dll"
	case "darwin":
		return "third_party/libonnxruntime.dylib"
	}
	if runtime.GOARCH == "arm64" {
		return "third_party/onnxruntime_arm64.so"
	}
	return "third_party/onnxruntime.so"
}
