package nn

import (
	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// Parameters are float32 tensors (weights and biases). Backward accumulates
// into Grad until ZeroGrad is called, usually by the optimizer.
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//	w := weight.Tensor()
//	grad := weight.Grad() // nil before the first Backward
type Parameter struct {
	name   string         // Parameter name (e.g., "weight", "bias")
	tensor *tensor.Tensor // The parameter tensor
	grad   *tensor.Tensor // Accumulated gradient, same shape as tensor
}

// NewParameter creates a new trainable parameter.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// Grad returns the gradient tensor.
//
// Returns nil if no gradient has been accumulated since the last ZeroGrad.
func (p *Parameter) Grad() *tensor.Tensor {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter) SetGrad(grad *tensor.Tensor) {
	p.grad = grad
}

// AccumulateGrad adds g element-wise to the gradient, allocating it on first use.
func (p *Parameter) AccumulateGrad(g []float32) {
	if p.grad == nil {
		p.grad = tensor.Zeros(p.tensor.Shape())
	}
	dst := p.grad.AsFloat32()
	for i, v := range g {
		dst[i] += v
	}
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}
