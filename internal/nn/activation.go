package nn

import (
	"math"

	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// elementwise is the shared body of the parameter-free activations.
//
// forward maps one input value to one output value; derivative computes the
// local gradient from the cached input and output values.
type elementwise struct {
	name       string
	forward    func(x float32) float32
	derivative func(x, y float32) float32

	input, output []float32
	shape         tensor.Shape
}

func (e *elementwise) Name() string {
	return e.name
}

func (e *elementwise) Forward(input *tensor.Tensor, mode Mode) (*tensor.Tensor, error) {
	output := tensor.Zeros(input.Shape())
	x := input.Float32s()
	y := output.AsFloat32()
	for i, v := range x {
		y[i] = e.forward(v)
	}

	e.input, e.output, e.shape = nil, nil, nil
	if mode == Train {
		e.input, e.output, e.shape = x, y, input.Shape().Clone()
	}
	return output, nil
}

func (e *elementwise) Backward(gradOutput *tensor.Tensor) (*tensor.Tensor, error) {
	if e.shape == nil {
		return nil, ErrNoForwardCache
	}
	if !gradOutput.Shape().Equal(e.shape) {
		return nil, shapeErrorf(e.name, "gradient shape %v does not match output %v", gradOutput.Shape(), e.shape)
	}
	gradInput := tensor.Zeros(e.shape)
	gx := gradInput.AsFloat32()
	for i, g := range gradOutput.Float32s() {
		gx[i] = g * e.derivative(e.input[i], e.output[i])
	}
	return gradInput, nil
}

func (e *elementwise) Parameters() []*Parameter {
	return nil
}

// ReLU applies f(x) = max(0, x).
type ReLU struct{ elementwise }

// NewReLU creates a new ReLU activation module.
func NewReLU() *ReLU {
	return &ReLU{elementwise{
		name:    "ReLU",
		forward: func(x float32) float32 { return max(x, 0) },
		derivative: func(x, _ float32) float32 {
			if x > 0 {
				return 1
			}
			return 0
		},
	}}
}

// Sigmoid applies σ(x) = 1 / (1 + exp(-x)).
type Sigmoid struct{ elementwise }

// NewSigmoid creates a new Sigmoid activation module.
func NewSigmoid() *Sigmoid {
	return &Sigmoid{elementwise{
		name:       "Sigmoid",
		forward:    func(x float32) float32 { return float32(1 / (1 + math.Exp(-float64(x)))) },
		derivative: func(_, y float32) float32 { return y * (1 - y) },
	}}
}

// Tanh applies the hyperbolic tangent.
type Tanh struct{ elementwise }

// NewTanh creates a new Tanh activation module.
func NewTanh() *Tanh {
	return &Tanh{elementwise{
		name:       "Tanh",
		forward:    func(x float32) float32 { return float32(math.Tanh(float64(x))) },
		derivative: func(_, y float32) float32 { return 1 - y*y },
	}}
}
