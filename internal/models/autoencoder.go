package models

import (
	"math/rand/v2"
	"slices"

	"github.com/pkg/errors"

	"github.com/nitishmital/head-network-distillation/internal/config"
	"github.com/nitishmital/head-network-distillation/internal/nn"
	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// Autoencoder compresses inputs into a bottleneck code and reconstructs them.
//
// It is a container with two children, "encoder" and "decoder". The decoder
// ends in a Sigmoid, so reconstructions stay in the [0, 1] range of images,
// and an Unflatten back to the input shape.
type Autoencoder struct {
	encoder nn.Module
	decoder nn.Module
	shape   tensor.Shape
}

// NewAutoencoder builds the autoencoder for inputs of shape [C, H, W].
func NewAutoencoder(shape tensor.Shape, cfg *config.AutoencoderConfig, rng *rand.Rand) (*Autoencoder, error) {
	if cfg == nil {
		return nil, errors.New("autoencoder: missing configuration")
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	in := shape.NumElements()

	encoder := nn.NewSequential(nn.NewFlatten())
	width := in
	for _, h := range cfg.Hidden {
		encoder.Add(nn.NewLinear(width, h, rng))
		encoder.Add(nn.NewReLU())
		width = h
	}
	encoder.Add(nn.NewLinear(width, cfg.Bottleneck, rng))
	encoder.Add(nn.NewReLU())

	decoder := nn.NewSequential()
	width = cfg.Bottleneck
	for _, h := range slices.Backward(cfg.Hidden) {
		decoder.Add(nn.NewLinear(width, h, rng))
		decoder.Add(nn.NewReLU())
		width = h
	}
	decoder.Add(nn.NewLinear(width, in, rng))
	decoder.Add(nn.NewSigmoid())
	decoder.Add(nn.NewUnflatten(shape...))

	return &Autoencoder{
		encoder: encoder.WithName("Encoder"),
		decoder: decoder.WithName("Decoder"),
		shape:   shape.Clone(),
	}, nil
}

// Name returns "Autoencoder".
func (a *Autoencoder) Name() string {
	return "Autoencoder"
}

// Children returns the encoder and the decoder.
func (a *Autoencoder) Children() []nn.Child {
	return []nn.Child{
		{Name: "encoder", Module: a.encoder},
		{Name: "decoder", Module: a.decoder},
	}
}

// ReplaceChild replaces the encoder or the decoder.
func (a *Autoencoder) ReplaceChild(name string, m nn.Module) error {
	if m == nil {
		return errors.Wrapf(nn.ErrNilChild, "child %q", name)
	}
	switch name {
	case "encoder":
		a.encoder = m
	case "decoder":
		a.decoder = m
	default:
		return errors.Wrapf(nn.ErrUnknownChild, "child %q", name)
	}
	return nil
}

// Encode maps inputs to bottleneck codes.
func (a *Autoencoder) Encode(input *tensor.Tensor, mode nn.Mode) (*tensor.Tensor, error) {
	code, err := a.encoder.Forward(input, mode)
	if err != nil {
		return nil, errors.WithMessage(err, "encoder")
	}
	return code, nil
}

// Forward encodes and decodes input.
func (a *Autoencoder) Forward(input *tensor.Tensor, mode nn.Mode) (*tensor.Tensor, error) {
	code, err := a.Encode(input, mode)
	if err != nil {
		return nil, err
	}
	out, err := a.decoder.Forward(code, mode)
	if err != nil {
		return nil, errors.WithMessage(err, "decoder")
	}
	return out, nil
}

// Backward propagates through the decoder then the encoder.
func (a *Autoencoder) Backward(gradOutput *tensor.Tensor) (*tensor.Tensor, error) {
	grad, err := a.decoder.Backward(gradOutput)
	if err != nil {
		return nil, errors.WithMessage(err, "decoder")
	}
	grad, err = a.encoder.Backward(grad)
	if err != nil {
		return nil, errors.WithMessage(err, "encoder")
	}
	return grad, nil
}

// Parameters returns the encoder parameters followed by the decoder ones.
func (a *Autoencoder) Parameters() []*nn.Parameter {
	return append(a.encoder.Parameters(), a.decoder.Parameters()...)
}

// Reconstruct runs the autoencoder in evaluation mode. It is the input
// transform applied in front of the classifier.
func (a *Autoencoder) Reconstruct(input *tensor.Tensor) (*tensor.Tensor, error) {
	return a.Forward(input, nn.Eval)
}

// InputShape returns the per-sample shape the autoencoder was built for.
func (a *Autoencoder) InputShape() tensor.Shape {
	return a.shape
}
