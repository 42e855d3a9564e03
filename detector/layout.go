package detector

import (
	"image"

	"github.com/nvr-ai/go-linecount/models/postprocess"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// boxFields is the number of geometry channels in a channel-major output.
const boxFields = 4

// FromRows wraps a row-major darknet style output. The last dimension is the
// row width, all leading dimensions are folded into rows.
//
// Arguments:
//   - data: The tensor data.
//   - shape: The tensor shape, e.g. [N, 85] or [1, N, 85].
//
// Returns:
//   - postprocess.Output: The output. Malformed shapes yield an invalid Output
//     that Filter skips.
func FromRows(data []float32, shape []int) postprocess.Output {
	if len(shape) == 0 {
		return postprocess.Output{}
	}
	cols := shape[len(shape)-1]
	rows := 1
	for _, d := range shape[:len(shape)-1] {
		rows *= d
	}
	return postprocess.NewOutput(rows, cols, data)
}

// FromChannelMajor converts a [4+C, N] output into the row layout: one row per
// anchor of [cx, cy, w, h, 0, scores...], geometry divided by the model input
// size.
//
// Arguments:
//   - data: The tensor data, channel-major.
//   - channels: 4 + number of classes.
//   - anchors: The number of candidates.
//   - inputSize: The model input resolution the geometry is expressed in.
//
// Returns:
//   - postprocess.Output: The row-major output.
//   - error: If the data does not match the shape.
func FromChannelMajor(data []float32, channels, anchors int, inputSize image.Point) (postprocess.Output, error) {
	if channels <= boxFields || anchors < 0 || len(data) != channels*anchors {
		return postprocess.Output{}, errors.Errorf("channel-major output of %d values does not fit %dx%d",
			len(data), channels, anchors)
	}
	if anchors == 0 {
		return postprocess.NewOutput(0, postprocess.ColFirstClass+channels-boxFields, nil), nil
	}

	t := tensor.New(tensor.WithShape(channels, anchors), tensor.WithBacking(data))
	transposed, err := tensor.Transpose(t, 1, 0)
	if err != nil {
		return postprocess.Output{}, errors.Wrap(err, "transpose output")
	}
	byAnchor, ok := transposed.Data().([]float32)
	if !ok {
		return postprocess.Output{}, errors.Errorf("unexpected tensor data %T", transposed.Data())
	}

	numClasses := channels - boxFields
	cols := postprocess.ColFirstClass + numClasses
	out := make([]float32, anchors*cols)
	w := float32(inputSize.X)
	h := float32(inputSize.Y)

	for i := 0; i < anchors; i++ {
		src := byAnchor[i*channels : (i+1)*channels]
		dst := out[i*cols : (i+1)*cols]
		dst[postprocess.ColCenterX] = src[0] / w
		dst[postprocess.ColCenterY] = src[1] / h
		dst[postprocess.ColWidth] = src[2] / w
		dst[postprocess.ColHeight] = src[3] / h
		copy(dst[postprocess.ColFirstClass:], src[boxFields:])
	}

	return postprocess.NewOutput(anchors, cols, out), nil
}

// AnchorCount returns the number of candidates an anchor-free YOLO head emits
// for the input size, over strides 8, 16 and 32.
func AnchorCount(inputSize image.Point) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		n += (inputSize.X / stride) * (inputSize.Y / stride)
	}
	return n
}
