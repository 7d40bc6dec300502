// Copyright 2026 The Head Network Distillation Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package profile measures how many bytes enter and leave every layer of a
// model.
//
// # Overview
//
//   - Wrap: replace every leaf of a model tree with a measuring Wrapper
//   - Extract: collect per-leaf average input and output sizes in pre-order
//   - Unwrap: restore the original leaves
//
// # Basic Usage
//
//	if _, err := profile.Wrap(model, profile.PerSample()); err != nil {
//	    return err
//	}
//	for batch, ok := loader.Next(); ok; batch, ok = loader.Next() {
//	    if _, err := model.Forward(batch.Inputs, nn.Eval); err != nil {
//	        return err
//	    }
//	}
//	p, err := profile.Extract(model)
//	for i := range p.Len() {
//	    fmt.Printf("%-24s %8.0f -> %8.0f bytes\n", p.Paths[i], p.Original[i], p.Compressed[i])
//	}
//
// Restore checkpoints before wrapping; Wrap rejects trees that already hold
// a Wrapper and leaves them untouched.
package profile

import (
	"github.com/nitishmital/head-network-distillation/internal/bandwidth"
	"github.com/nitishmital/head-network-distillation/internal/nn"
	"github.com/nitishmital/head-network-distillation/internal/profile"
	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// Errors.
var (
	ErrNoSamples           = bandwidth.ErrNoSamples
	ErrNilModule           = profile.ErrNilModule
	ErrAlreadyInstrumented = profile.ErrAlreadyInstrumented
	ErrNotInstrumented     = profile.ErrNotInstrumented
)

// Recorder accumulates byte counts and sample counts.
type Recorder = bandwidth.Recorder

// Wrapper decorates one module and records its input and output sizes.
type Wrapper = profile.Wrapper

// Option configures a Wrapper.
type Option = profile.Option

// Profile is a snapshot of per-leaf average bandwidth in pre-order.
type Profile = profile.Profile

// PerSample makes wrappers average over samples instead of calls.
func PerSample() Option {
	return profile.PerSample()
}

// SerializedSize returns the number of bytes t occupies in dense form.
func SerializedSize(t *tensor.Tensor) int {
	return profile.SerializedSize(t)
}

// NewWrapper wraps a single module.
func NewWrapper(m nn.Module, opts ...Option) (*Wrapper, error) {
	return profile.NewWrapper(m, opts...)
}

// Wrap replaces every leaf below root with a Wrapper and returns them in
// pre-order.
func Wrap(root nn.Container, opts ...Option) ([]*Wrapper, error) {
	return profile.Wrap(root, opts...)
}

// Unwrap restores every wrapped leaf below root and returns how many there were.
func Unwrap(root nn.Container) (int, error) {
	return profile.Unwrap(root)
}

// Extract collects the averages of every instrumented leaf below root.
func Extract(root nn.Container) (*Profile, error) {
	return profile.Extract(root)
}

// ExtractMeasured is Extract without the unmeasured leaves, whose paths are
// returned separately.
func ExtractMeasured(root nn.Container) (*Profile, []string, error) {
	return profile.ExtractMeasured(root)
}

// Wrappers returns the wrappers below root in pre-order.
func Wrappers(root nn.Container) ([]*Wrapper, error) {
	return profile.Wrappers(root)
}
