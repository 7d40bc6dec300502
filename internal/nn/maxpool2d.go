package nn

import (
	"math"

	"github.com/pkg/errors"

	"github.com/nitishmital/head-network-distillation/internal/parallel"
	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// MaxPool2D is a 2D max pooling layer.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
//	out_height = (height - kernelSize) / stride + 1
//	out_width  = (width - kernelSize) / stride + 1
//
// Backward routes each output gradient to the input position that won the max.
type MaxPool2D struct {
	kernelSize int
	stride     int

	inputShape tensor.Shape
	argmax     []int // flat input index per output element
}

// NewMaxPool2D creates a new 2D max pooling layer.
func NewMaxPool2D(kernelSize, stride int) (*MaxPool2D, error) {
	if kernelSize <= 0 || stride <= 0 {
		return nil, errors.Errorf("maxpool2d: invalid kernel size %d / stride %d", kernelSize, stride)
	}
	return &MaxPool2D{kernelSize: kernelSize, stride: stride}, nil
}

// Name returns "MaxPool2D".
func (m *MaxPool2D) Name() string {
	return "MaxPool2D"
}

// Forward applies max pooling.
func (m *MaxPool2D) Forward(input *tensor.Tensor, mode Mode) (*tensor.Tensor, error) {
	shape := input.Shape()
	if len(shape) != 4 {
		return nil, shapeErrorf("MaxPool2D", "input must be 4D [N,C,H,W], got %v", shape)
	}
	n, ch, h, w := shape[0], shape[1], shape[2], shape[3]
	hOut := (h-m.kernelSize)/m.stride + 1
	wOut := (w-m.kernelSize)/m.stride + 1
	if h < m.kernelSize || w < m.kernelSize {
		return nil, shapeErrorf("MaxPool2D", "input %dx%d smaller than kernel %d", h, w, m.kernelSize)
	}

	output := tensor.Zeros(tensor.Shape{n, ch, hOut, wOut})
	out := output.AsFloat32()
	in := input.Float32s()
	argmax := make([]int, len(out))

	parallel.ForBatch(n, ch, func(b, c int) {
		plane := (b*ch + c) * h * w
		base := (b*ch + c) * hOut * wOut
		for oh := range hOut {
			for ow := range wOut {
				best, bestIdx := float32(math.Inf(-1)), -1
				for kh := range m.kernelSize {
					for kw := range m.kernelSize {
						idx := plane + (oh*m.stride+kh)*w + ow*m.stride + kw
						if in[idx] > best || bestIdx < 0 {
							best, bestIdx = in[idx], idx
						}
					}
				}
				out[base+oh*wOut+ow] = best
				argmax[base+oh*wOut+ow] = bestIdx
			}
		}
	}, kernelConfig)

	m.argmax, m.inputShape = nil, nil
	if mode == Train {
		m.argmax, m.inputShape = argmax, shape.Clone()
	}
	return output, nil
}

// Backward scatters the gradient to the max positions.
func (m *MaxPool2D) Backward(gradOutput *tensor.Tensor) (*tensor.Tensor, error) {
	if m.argmax == nil {
		return nil, ErrNoForwardCache
	}
	gy := gradOutput.Float32s()
	if len(gy) != len(m.argmax) {
		return nil, shapeErrorf("MaxPool2D", "gradient has %d elements, output had %d", len(gy), len(m.argmax))
	}
	gradInput := tensor.Zeros(m.inputShape)
	gx := gradInput.AsFloat32()
	for i, idx := range m.argmax {
		gx[idx] += gy[i]
	}
	return gradInput, nil
}

// Parameters returns nil (MaxPool2D has no trainable parameters).
func (m *MaxPool2D) Parameters() []*Parameter {
	return nil
}
