package nn

import (
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// Dropout zeroes each element with probability p during training and scales the
// survivors by 1/(1-p). In Eval mode the input is returned unchanged.
type Dropout struct {
	p   float32
	rng *rand.Rand

	mask  []float32
	shape tensor.Shape
}

// NewDropout creates a dropout layer. p must be in [0, 1).
func NewDropout(p float32, rng *rand.Rand) (*Dropout, error) {
	if p < 0 || p >= 1 {
		return nil, errors.Errorf("dropout: probability %g not in [0, 1)", p)
	}
	return &Dropout{p: p, rng: rng}, nil
}

// Name returns "Dropout".
func (d *Dropout) Name() string {
	return "Dropout"
}

// P returns the drop probability.
func (d *Dropout) P() float32 {
	return d.p
}

// Forward applies the dropout mask in Train mode.
func (d *Dropout) Forward(input *tensor.Tensor, mode Mode) (*tensor.Tensor, error) {
	d.mask, d.shape = nil, nil
	if mode != Train {
		return input, nil
	}

	x := input.Float32s()
	output := tensor.Zeros(input.Shape())
	y := output.AsFloat32()
	mask := make([]float32, len(x))
	scale := 1 / (1 - d.p)
	for i, v := range x {
		if d.rng.Float32() >= d.p {
			mask[i] = scale
			y[i] = v * scale
		}
	}
	d.mask, d.shape = mask, input.Shape().Clone()
	return output, nil
}

// Backward applies the same mask to the gradient.
func (d *Dropout) Backward(gradOutput *tensor.Tensor) (*tensor.Tensor, error) {
	if d.mask == nil {
		return nil, ErrNoForwardCache
	}
	if !gradOutput.Shape().Equal(d.shape) {
		return nil, shapeErrorf("Dropout", "gradient shape %v does not match output %v", gradOutput.Shape(), d.shape)
	}
	gradInput := tensor.Zeros(d.shape)
	gx := gradInput.AsFloat32()
	for i, g := range gradOutput.Float32s() {
		gx[i] = g * d.mask[i]
	}
	return gradInput, nil
}

// Parameters returns nil.
func (d *Dropout) Parameters() []*Parameter {
	return nil
}
