package detector

import (
	"image"
	"os"

	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-linecount/models/postprocess"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Net runs a YOLO model through the OpenCV DNN module.
type Net struct {
	net       gocv.Net
	inputSize image.Point
	layout    Layout
	log       logs.Log
	// outputNames are the unconnected output layers, resolved once at load.
	outputNames []string
}

// NewNet loads a darknet cfg/weights pair, or any model gocv.ReadNet accepts.
//
// Arguments:
//   - config: The detector configuration.
//   - log: The logger.
//
// Returns:
//   - *Net: The loaded detector.
//   - error: If the files are missing or the model has no output layers.
func NewNet(config Config, log logs.Log) (*Net, error) {
	for _, path := range []string{config.ModelPath, config.ConfigPath} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrap(err, "model file")
		}
	}

	var net gocv.Net
	if config.IsDarknet() {
		net = gocv.ReadNetFromDarknet(config.ConfigPath, config.ModelPath)
	} else {
		net = gocv.ReadNet(config.ModelPath, config.ConfigPath)
	}
	if net.Empty() {
		return nil, errors.Errorf("failed to load model %s", config.ModelPath)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendOpenCV); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "set backend")
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "set target")
	}

	names := OutputLayerNames(&net)
	if len(names) == 0 {
		net.Close()
		return nil, errors.Errorf("model %s has no output layers", config.ModelPath)
	}

	log.Infof("Loaded %s (%dx%d), output layers %v", config.ModelPath, config.InputSize.X, config.InputSize.Y, names)

	return &Net{
		net:         net,
		inputSize:   config.InputSize,
		layout:      config.Layout,
		log:         log,
		outputNames: names,
	}, nil
}

// OutputLayerNames returns the names of the layers with unconnected outputs.
func OutputLayerNames(net *gocv.Net) []string {
	ids := net.GetUnconnectedOutLayers()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		layer := net.GetLayer(id)
		names = append(names, layer.GetName())
		layer.Close()
	}
	return names
}

// OutputNames returns the cached output layer names.
func (n *Net) OutputNames() []string {
	return n.outputNames
}

// Detect runs one forward pass over frame.
//
// Arguments:
//   - frame: The BGR frame.
//
// Returns:
//   - []postprocess.Output: One output per output layer.
//   - error: If the frame is empty or an output cannot be read.
func (n *Net) Detect(frame gocv.Mat) ([]postprocess.Output, error) {
	if frame.Empty() {
		return nil, errors.New("empty frame")
	}

	blob := gocv.BlobFromImage(frame, 1.0/255.0, n.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	n.net.SetInput(blob, "")
	mats := n.net.ForwardLayers(n.outputNames)
	defer func() {
		for i := range mats {
			mats[i].Close()
		}
	}()

	outputs := make([]postprocess.Output, 0, len(mats))
	for i := range mats {
		out, err := n.outputFromMat(&mats[i])
		if err != nil {
			return nil, errors.Wrapf(err, "output %s", n.outputNames[i])
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

// outputFromMat copies a forward result out of OpenCV memory.
func (n *Net) outputFromMat(m *gocv.Mat) (postprocess.Output, error) {
	if m.Empty() {
		return postprocess.Output{}, nil
	}
	data, err := m.DataPtrFloat32()
	if err != nil {
		return postprocess.Output{}, err
	}
	owned := make([]float32, len(data))
	copy(owned, data)

	shape := m.Size()
	if n.layout == LayoutChannelMajor {
		// [1, 4+C, N]
		if len(shape) < 2 {
			return postprocess.Output{}, errors.Errorf("unexpected output shape %v", shape)
		}
		return FromChannelMajor(owned, shape[len(shape)-2], shape[len(shape)-1], n.inputSize)
	}
	return FromRows(owned, shape), nil
}

// Close releases the network.
func (n *Net) Close() error {
	return n.net.Close()
}
