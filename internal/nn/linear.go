package nn

import (
	"math/rand/v2"

	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [batch_size, out_features]
//
// Weights are initialized using Xavier/Glorot initialization.
// Biases are initialized to zeros.
//
// Example:
//
//	layer := nn.NewLinear(784, 128, nn.NewRNG(1))
//	output, err := layer.Forward(input, nn.Train) // [32, 784] -> [32, 128]
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features]

	input *tensor.Tensor // cached by Train-mode Forward
}

// NewLinear creates a new Linear layer.
func NewLinear(inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, rng)),
		bias:        NewParameter("bias", tensor.Zeros(tensor.Shape{outFeatures})),
	}
}

// Name returns "Linear".
func (l *Linear) Name() string {
	return "Linear"
}

// Forward computes y = x @ W.T + b.
//
// Input shape: [batch_size, in_features]
// Output shape: [batch_size, out_features]
func (l *Linear) Forward(input *tensor.Tensor, mode Mode) (*tensor.Tensor, error) {
	shape := input.Shape()
	if len(shape) != 2 {
		return nil, shapeErrorf("Linear", "expected 2D input [batch, features], got shape %v", shape)
	}
	if shape[1] != l.inFeatures {
		return nil, shapeErrorf("Linear", "expected input with %d features, got %d", l.inFeatures, shape[1])
	}

	output, err := tensor.MatMulNT(input, l.weight.Tensor())
	if err != nil {
		return nil, err
	}

	out := output.AsFloat32()
	bias := l.bias.Tensor().AsFloat32()
	for i := range shape[0] {
		row := out[i*l.outFeatures : (i+1)*l.outFeatures]
		for j, b := range bias {
			row[j] += b
		}
	}

	l.input = nil
	if mode == Train {
		l.input = input
	}
	return output, nil
}

// Backward computes dW += gy^T x, db += sum(gy) and returns dx = gy W.
func (l *Linear) Backward(gradOutput *tensor.Tensor) (*tensor.Tensor, error) {
	if l.input == nil {
		return nil, ErrNoForwardCache
	}
	batch := l.input.Shape()[0]
	if !gradOutput.Shape().Equal(tensor.Shape{batch, l.outFeatures}) {
		return nil, shapeErrorf("Linear", "gradient shape %v does not match output [%d %d]", gradOutput.Shape(), batch, l.outFeatures)
	}

	gradW, err := tensor.MatMulTN(gradOutput, l.input)
	if err != nil {
		return nil, err
	}
	l.weight.AccumulateGrad(gradW.AsFloat32())

	gy := gradOutput.Float32s()
	gradB := make([]float32, l.outFeatures)
	for i := range batch {
		for j, v := range gy[i*l.outFeatures : (i+1)*l.outFeatures] {
			gradB[j] += v
		}
	}
	l.bias.AccumulateGrad(gradB)

	return tensor.MatMul(gradOutput, l.weight.Tensor())
}

// Parameters returns [weight, bias].
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}
