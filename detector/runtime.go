package detector

import (
	"image"
	"os"

	"github.com/cyclopcam/logs"
	"github.com/nfnt/resize"
	"github.com/nvr-ai/go-linecount/models/postprocess"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

// Runtime runs an exported YOLO ONNX model through ONNX Runtime.
type Runtime struct {
	session  *ort.AdvancedSession
	input    *ort.Tensor[float32]
	output   *ort.Tensor[float32]
	size     image.Point
	channels int
	anchors  int
	log      logs.Log
}

// NewRuntime initializes the ONNX Runtime environment, if needed, and creates a
// session with fixed input and output tensors.
//
// Arguments:
//   - config: The detector configuration.
//   - log: The logger.
//
// Returns:
//   - *Runtime: The session.
//   - error: If the library or model cannot be loaded.
func NewRuntime(config Config, log logs.Log) (*Runtime, error) {
	if _, err := os.Stat(config.SharedLibPath); err != nil {
		return nil, errors.Wrap(err, "onnxruntime library")
	}
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, errors.Wrap(err, "model file")
	}

	if !ort.IsInitialized() {
		ort.SetSharedLibraryPath(config.SharedLibPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrap(err, "initialize onnxruntime")
		}
	}

	channels := boxFields + config.NumClasses
	anchors := AnchorCount(config.InputSize)

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(config.InputSize.Y), int64(config.InputSize.X)))
	if err != nil {
		return nil, errors.Wrap(err, "create input tensor")
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(channels), int64(anchors)))
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "create output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "create session options")
	}
	defer options.Destroy()

	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		log.Warnf("Graph optimization level not applied: %v", err)
	}

	session, err := ort.NewAdvancedSession(
		config.ModelPath,
		[]string{config.InputName},
		[]string{config.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "create session")
	}

	log.Infof("Loaded %s with onnxruntime (%dx%d, %d classes, %d anchors)",
		config.ModelPath, config.InputSize.X, config.InputSize.Y, config.NumClasses, anchors)

	return &Runtime{
		session:  session,
		input:    input,
		output:   output,
		size:     config.InputSize,
		channels: channels,
		anchors:  anchors,
		log:      log,
	}, nil
}

// Detect resizes frame to the model input, runs the session and returns the
// single output in row layout.
func (r *Runtime) Detect(frame gocv.Mat) ([]postprocess.Output, error) {
	if frame.Empty() {
		return nil, errors.New("empty frame")
	}

	img, err := frame.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "convert frame")
	}
	if err := PrepareInput(img, r.size, r.input.GetData()); err != nil {
		return nil, err
	}

	if err := r.session.Run(); err != nil {
		return nil, errors.Wrap(err, "run session")
	}

	out, err := FromChannelMajor(r.output.GetData(), r.channels, r.anchors, r.size)
	if err != nil {
		return nil, err
	}
	return []postprocess.Output{out}, nil
}

// PrepareInput resizes img to size and writes it into dst as planar RGB
// scaled to [0,1].
//
// Arguments:
//   - img: The source image.
//   - size: The model input resolution.
//   - dst: The input tensor data, at least 3*size.X*size.Y long.
//
// Returns:
//   - error: If dst is too small.
func PrepareInput(img image.Image, size image.Point, dst []float32) error {
	plane := size.X * size.Y
	if len(dst) < plane*3 {
		return errors.Errorf("input tensor holds %d values, needs %d", len(dst), plane*3)
	}
	red := dst[0:plane]
	green := dst[plane : plane*2]
	blue := dst[plane*2 : plane*3]

	resized := resize.Resize(uint(size.X), uint(size.Y), img, resize.Bilinear)
	bounds := resized.Bounds()

	i := 0
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(b>>8) / 255.0
			i++
		}
	}
	return nil
}

// Close destroys the session and its tensors.
func (r *Runtime) Close() error {
	if r.session != nil {
		if err := r.session.Destroy(); err != nil {
			return errors.Wrap(err, "destroy session")
		}
		r.session = nil
	}
	if r.input != nil {
		r.input.Destroy()
		r.input = nil
	}
	if r.output != nil {
		r.output.Destroy()
		r.output = nil
	}
	return nil
}
