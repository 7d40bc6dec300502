// Package nn implements the hierarchical model tree: modules, containers and
// the layers used by the classifier and the autoencoder compressor.
//
// This package provides:
//   - Module interface: a node with a display name, Forward and Backward
//   - Container interface: a Module with ordered, named children
//   - Layers: Linear, Conv2D, MaxPool2D, activations, Dropout, Flatten, Quantize
//   - Losses: CrossEntropyLoss, MSELoss
//   - Sequential: ordered container of named children
//   - StateDict / Checkpoint: parameter persistence
//
// Gradients are explicit: every layer caches what it needs during a Train-mode
// Forward and consumes it in Backward, accumulating parameter gradients.
package nn

import (
	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// Mode selects training or evaluation forward semantics.
//
// It is passed to every Forward call instead of living as mutable state on the
// module, so the same tree can be evaluated and trained without toggling.
type Mode int

const (
	// Eval disables stochastic regularization and gradient caches.
	Eval Mode = iota
	// Train enables dropout and caches activations for Backward.
	Train
)

// String returns the mode name.
func (m Mode) String() string {
	if m == Train {
		return "train"
	}
	return "eval"
}

// Module is the base interface for all nodes of the model tree.
//
// Every module must implement:
//   - Name: display name, fixed at construction (e.g. "Linear", "Conv2D")
//   - Forward: compute output from input
//   - Backward: propagate a gradient through the last Train-mode Forward
//   - Parameters: trainable parameters, including those of descendants
type Module interface {
	// Name returns the display name used in reports.
	Name() string

	// Forward computes the output of the module for the given input.
	//
	// Invalid input shapes are reported as errors, never as panics, so
	// callers wrapping a module can observe and propagate them.
	Forward(input *tensor.Tensor, mode Mode) (*tensor.Tensor, error)

	// Backward takes dLoss/dOutput and returns dLoss/dInput, accumulating
	// gradients into the module's parameters.
	//
	// Returns ErrNoForwardCache if the previous Forward was not in Train mode.
	Backward(gradOutput *tensor.Tensor) (*tensor.Tensor, error)

	// Parameters returns all trainable parameters of this module.
	// Returns nil for modules without parameters.
	Parameters() []*Parameter
}

// Child is a named entry of a Container.
type Child struct {
	Name   string
	Module Module
}

// Container is a Module with an ordered mapping from names to child modules.
//
// Children are returned in declaration order; names are unique among the
// direct children of one container. ReplaceChild swaps the module stored under
// an existing name without changing its position.
type Container interface {
	Module

	// Children returns the direct children in declaration order.
	Children() []Child

	// ReplaceChild replaces the child registered under name.
	//
	// Returns ErrUnknownChild if no child has that name.
	ReplaceChild(name string, m Module) error
}

// HasChildren reports whether m is a Container with at least one child.
// Nodes for which it is false are the leaves of the tree.
func HasChildren(m Module) bool {
	c, ok := m.(Container)
	return ok && len(c.Children()) > 0
}

// JoinPath joins a parent path and a child name with a dot.
func JoinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
