// Copyright 2026 The Head Network Distillation Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand/v2"

	"github.com/nitishmital/head-network-distillation/internal/nn"
	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// Mode selects training or evaluation forward semantics.
type Mode = nn.Mode

// Forward modes.
const (
	Eval  = nn.Eval
	Train = nn.Train
)

// Module is a node of the model tree.
type Module = nn.Module

// Container is a Module with ordered, named children.
type Container = nn.Container

// Child is a named entry of a Container.
type Child = nn.Child

// Wrapper is a module decorating exactly one other module.
type Wrapper = nn.Wrapper

// Parameter represents a trainable parameter.
type Parameter = nn.Parameter

// NewParameter creates a new parameter with the given name and tensor.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return nn.NewParameter(name, t)
}

// Errors.
var (
	ErrNoForwardCache = nn.ErrNoForwardCache
	ErrDuplicateChild = nn.ErrDuplicateChild
	ErrUnknownChild   = nn.ErrUnknownChild
	ErrNilChild       = nn.ErrNilChild
	ErrShapeMismatch  = nn.ErrShapeMismatch
	ErrMissingKey     = nn.ErrMissingKey
	ErrUnexpectedKey  = nn.ErrUnexpectedKey
	ErrNotCheckpoint  = nn.ErrNotCheckpoint
)

// NewRNG returns a deterministic random source for initialization and dropout.
func NewRNG(seed uint64) *rand.Rand {
	return nn.NewRNG(seed)
}

// HasChildren reports whether m is a Container with at least one child.
func HasChildren(m Module) bool {
	return nn.HasChildren(m)
}

// Containers

// Sequential chains named children.
type Sequential = nn.Sequential

// NewSequential creates a Sequential whose children are named by position.
func NewSequential(modules ...Module) *Sequential {
	return nn.NewSequential(modules...)
}

// NewNamedSequential creates a Sequential from explicitly named children.
func NewNamedSequential(children ...Child) (*Sequential, error) {
	return nn.NewNamedSequential(children...)
}

// Layers

// Linear represents a fully connected (dense) layer.
type Linear = nn.Linear

// NewLinear creates a new linear layer with Xavier initialization.
//
// Example:
//
//	layer := nn.NewLinear(784, 128, nn.NewRNG(1))
func NewLinear(inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	return nn.NewLinear(inFeatures, outFeatures, rng)
}

// Conv2D represents a 2D convolutional layer.
type Conv2D = nn.Conv2D

// NewConv2D creates a new 2D convolutional layer with square kernels.
//
// Example:
//
//	conv, err := nn.NewConv2D(1, 32, 3, 1, 1, rng) // in=1, out=32, kernel=3x3, stride=1, padding=1
func NewConv2D(inChannels, outChannels, kernel, stride, padding int, rng *rand.Rand) (*Conv2D, error) {
	return nn.NewConv2D(inChannels, outChannels, kernel, stride, padding, rng)
}

// MaxPool2D represents a 2D max pooling layer.
type MaxPool2D = nn.MaxPool2D

// NewMaxPool2D creates a new 2D max pooling layer.
func NewMaxPool2D(kernelSize, stride int) (*MaxPool2D, error) {
	return nn.NewMaxPool2D(kernelSize, stride)
}

// Dropout zeroes inputs with probability p in Train mode.
type Dropout = nn.Dropout

// NewDropout creates a dropout layer.
func NewDropout(p float32, rng *rand.Rand) (*Dropout, error) {
	return nn.NewDropout(p, rng)
}

// Flatten reshapes [batch, ...] to [batch, n].
type Flatten = nn.Flatten

// NewFlatten creates a Flatten layer.
func NewFlatten() *Flatten {
	return nn.NewFlatten()
}

// Unflatten reshapes [batch, n] to [batch, shape...].
type Unflatten = nn.Unflatten

// NewUnflatten creates an Unflatten layer.
func NewUnflatten(shape ...int) *Unflatten {
	return nn.NewUnflatten(shape...)
}

// Quantize re-encodes its input in a narrower type.
type Quantize = nn.Quantize

// Quantization modes.
const (
	QuantizeFloat16 = nn.QuantizeFloat16
	QuantizeUint8   = nn.QuantizeUint8
)

// NewQuantize creates a compressor for mode.
func NewQuantize(mode string) (*Quantize, error) {
	return nn.NewQuantize(mode)
}

// Activations

// ReLU represents the Rectified Linear Unit activation function.
type ReLU = nn.ReLU

// NewReLU creates a new ReLU activation layer.
func NewReLU() *ReLU {
	return nn.NewReLU()
}

// Sigmoid represents the sigmoid activation function.
type Sigmoid = nn.Sigmoid

// NewSigmoid creates a new Sigmoid activation layer.
func NewSigmoid() *Sigmoid {
	return nn.NewSigmoid()
}

// Tanh represents the hyperbolic tangent activation function.
type Tanh = nn.Tanh

// NewTanh creates a new Tanh activation layer.
func NewTanh() *Tanh {
	return nn.NewTanh()
}

// Loss Functions

// CrossEntropyLoss combines log-softmax and negative log likelihood.
type CrossEntropyLoss = nn.CrossEntropyLoss

// NewCrossEntropyLoss creates a cross entropy loss.
func NewCrossEntropyLoss() *CrossEntropyLoss {
	return nn.NewCrossEntropyLoss()
}

// MSELoss is the mean squared error.
type MSELoss = nn.MSELoss

// NewMSELoss creates a mean squared error loss.
func NewMSELoss() *MSELoss {
	return nn.NewMSELoss()
}

// Accuracy returns the fraction of rows of logits whose argmax equals the label.
func Accuracy(logits *tensor.Tensor, labels []int) (float32, error) {
	return nn.Accuracy(logits, labels)
}

// Persistence

// StateDict returns the parameter tensors of the tree keyed by dotted path.
func StateDict(m Module) map[string]*tensor.Tensor {
	return nn.StateDict(m)
}

// LoadStateDict strictly copies sd into the parameters of m.
func LoadStateDict(m Module, sd map[string]*tensor.Tensor) error {
	return nn.LoadStateDict(m, sd)
}

// OptimizerState is an optimizer that can save and load its state.
type OptimizerState = nn.OptimizerState

// Checkpoint represents a training state snapshot.
type Checkpoint = nn.Checkpoint

// LoadCheckpoint restores model (and optimizer, when non-nil) from path.
func LoadCheckpoint(path string, model Module, optimizer OptimizerState) (*Checkpoint, error) {
	return nn.LoadCheckpoint(path, model, optimizer)
}
