package nn

import (
	"github.com/pkg/errors"

	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// Quantization modes understood by NewQuantize.
const (
	QuantizeFloat16 = "float16"
	QuantizeUint8   = "uint8"
)

// Quantize is a compressor layer: it re-encodes its input in a narrower type
// (IEEE half precision or per-tensor affine uint8) so that the data handed to
// the next layer is smaller. Downstream layers decode it transparently.
//
// Backward is the straight-through estimator: the gradient passes unchanged.
type Quantize struct {
	mode  string
	shape tensor.Shape
}

// NewQuantize creates a compressor for mode ("float16" or "uint8").
func NewQuantize(mode string) (*Quantize, error) {
	switch mode {
	case QuantizeFloat16, QuantizeUint8:
		return &Quantize{mode: mode}, nil
	default:
		return nil, errors.Errorf("quantize: unknown mode %q", mode)
	}
}

// Name returns "Quantize".
func (q *Quantize) Name() string {
	return "Quantize"
}

// Mode returns the target encoding.
func (q *Quantize) Mode() string {
	return q.mode
}

// Forward encodes the input.
func (q *Quantize) Forward(input *tensor.Tensor, _ Mode) (*tensor.Tensor, error) {
	q.shape = input.Shape().Clone()
	if q.mode == QuantizeFloat16 {
		return tensor.ToFloat16(input)
	}
	return tensor.QuantizeUint8(input)
}

// Backward passes the gradient through.
func (q *Quantize) Backward(gradOutput *tensor.Tensor) (*tensor.Tensor, error) {
	if q.shape == nil {
		return nil, ErrNoForwardCache
	}
	if !gradOutput.Shape().Equal(q.shape) {
		return nil, shapeErrorf("Quantize", "gradient shape %v does not match output %v", gradOutput.Shape(), q.shape)
	}
	return gradOutput, nil
}

// Parameters returns nil.
func (q *Quantize) Parameters() []*Parameter {
	return nil
}
