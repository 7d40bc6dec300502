// Package models builds the classifiers and the input autoencoder described by
// an experiment configuration.
//
// Models are trees of named nn.Sequential containers so the profiling pass can
// walk them and every layer shows up under a readable path, for example
// "features.block1.conv".
package models

import (
	"fmt"
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/nitishmital/head-network-distillation/internal/config"
	"github.com/nitishmital/head-network-distillation/internal/nn"
)

// NewClassifier builds the classifier of cfg.
//
// MLP architecture:
//
//	flatten -> features (Linear, ReLU[, Dropout]) x len(hidden)
//	        -> [compression] -> classifier (Linear)
//
// CNN architecture:
//
//	features (Conv2D, ReLU, MaxPool2D) x len(channels)
//	        -> [compression] -> flatten
//	        -> classifier ((Linear, ReLU[, Dropout]) x len(hidden), Linear)
//
// Convolutions use "same" padding and every pooling halves the spatial size.
func NewClassifier(cfg *config.Config, rng *rand.Rand) (*nn.Sequential, error) {
	switch cfg.Model.Type {
	case config.ModelMLP:
		return newMLP(cfg, rng)
	case config.ModelCNN:
		return newCNN(cfg, rng)
	default:
		return nil, errors.Errorf("unknown model type %q", cfg.Model.Type)
	}
}

func newMLP(cfg *config.Config, rng *rand.Rand) (*nn.Sequential, error) {
	in := cfg.Shape().NumElements()
	features, width, err := denseStack(in, cfg.Model.Hidden, cfg.Model.Dropout, rng)
	if err != nil {
		return nil, err
	}

	children := []nn.Child{
		{Name: "flatten", Module: nn.NewFlatten()},
		{Name: "features", Module: features},
	}
	if children, err = appendCompression(children, cfg.Model.Compression); err != nil {
		return nil, err
	}
	children = append(children, nn.Child{Name: "classifier", Module: nn.NewLinear(width, cfg.NumClasses, rng)})
	return nn.NewNamedSequential(children...)
}

func newCNN(cfg *config.Config, rng *rand.Rand) (*nn.Sequential, error) {
	shape := cfg.Shape()
	channels, h, w := shape[0], shape[1], shape[2]
	k := cfg.Model.KernelSize

	features := nn.NewSequential()
	for i, out := range cfg.Model.Channels {
		if h < 2 || w < 2 {
			return nil, errors.Errorf("input %v too small for %d pooling blocks", shape, len(cfg.Model.Channels))
		}
		conv, err := nn.NewConv2D(channels, out, k, 1, k/2, rng)
		if err != nil {
			return nil, err
		}
		pool, err := nn.NewMaxPool2D(2, 2)
		if err != nil {
			return nil, err
		}
		block, err := nn.NewNamedSequential(
			nn.Child{Name: "conv", Module: conv},
			nn.Child{Name: "relu", Module: nn.NewReLU()},
			nn.Child{Name: "pool", Module: pool},
		)
		if err != nil {
			return nil, err
		}
		if err := features.AddNamed(fmt.Sprintf("block%d", i+1), block); err != nil {
			return nil, err
		}
		channels, h, w = out, h/2, w/2
	}

	head, width, err := denseStack(channels*h*w, cfg.Model.Hidden, cfg.Model.Dropout, rng)
	if err != nil {
		return nil, err
	}
	head.Add(nn.NewLinear(width, cfg.NumClasses, rng))

	children := []nn.Child{{Name: "features", Module: features}}
	if children, err = appendCompression(children, cfg.Model.Compression); err != nil {
		return nil, err
	}
	children = append(children,
		nn.Child{Name: "flatten", Module: nn.NewFlatten()},
		nn.Child{Name: "classifier", Module: head},
	)
	return nn.NewNamedSequential(children...)
}

// denseStack returns Linear/ReLU[/Dropout] layers for each hidden width and the
// width of its output.
func denseStack(in int, hidden []int, dropout float32, rng *rand.Rand) (*nn.Sequential, int, error) {
	stack := nn.NewSequential()
	for _, out := range hidden {
		stack.Add(nn.NewLinear(in, out, rng))
		stack.Add(nn.NewReLU())
		if dropout > 0 {
			d, err := nn.NewDropout(dropout, rng)
			if err != nil {
				return nil, 0, err
			}
			stack.Add(d)
		}
		in = out
	}
	return stack, in, nil
}

func appendCompression(children []nn.Child, mode string) ([]nn.Child, error) {
	if mode == "" {
		return children, nil
	}
	q, err := nn.NewQuantize(mode)
	if err != nil {
		return nil, err
	}
	return append(children, nn.Child{Name: "compression", Module: q}), nil
}
