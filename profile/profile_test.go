// Copyright 2026 The Head Network Distillation Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package profile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitishmital/head-network-distillation/nn"
	"github.com/nitishmital/head-network-distillation/profile"
	"github.com/nitishmital/head-network-distillation/tensor"
)

func TestProfileModel(t *testing.T) {
	rng := nn.NewRNG(1)
	quant, err := nn.NewQuantize(nn.QuantizeFloat16)
	require.NoError(t, err)
	model, err := nn.NewNamedSequential(
		nn.Child{Name: "encoder", Module: nn.NewSequential(nn.NewLinear(8, 4, rng), nn.NewReLU())},
		nn.Child{Name: "compression", Module: quant},
		nn.Child{Name: "head", Module: nn.NewLinear(4, 2, rng)},
	)
	require.NoError(t, err)

	wrappers, err := profile.Wrap(model, profile.PerSample())
	require.NoError(t, err)
	require.Len(t, wrappers, 4)

	_, err = profile.Extract(model)
	assert.ErrorIs(t, err, profile.ErrNoSamples)

	for _, batch := range []int{2, 6} {
		_, err := model.Forward(tensor.Zeros(tensor.Shape{batch, 8}), nn.Eval)
		require.NoError(t, err)
	}

	p, err := profile.Extract(model)
	require.NoError(t, err)
	assert.Equal(t, []string{"Linear", "ReLU", "Quantize", "Linear"}, p.Names)
	assert.Equal(t, []string{"encoder.0", "encoder.1", "compression", "head"}, p.Paths)
	assert.Equal(t, []float64{32, 16, 16, 8}, p.Original)
	assert.Equal(t, []float64{16, 16, 8, 8}, p.Compressed)

	_, err = profile.Wrap(model)
	assert.ErrorIs(t, err, profile.ErrAlreadyInstrumented)

	n, err := profile.Unwrap(model)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	_, err = profile.Extract(model)
	assert.ErrorIs(t, err, profile.ErrNotInstrumented)
}
