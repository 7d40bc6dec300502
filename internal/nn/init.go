package nn

import (
	"math"
	"math/rand/v2"

	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// NewRNG returns a deterministic random source for initialization and dropout.
func NewRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// This initialization helps maintain variance of activations across layers.
func Xavier(fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	t := tensor.Zeros(shape)
	data := t.AsFloat32()
	for i := range data {
		//nolint:gosec // math/rand is fine for weight initialization
		data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
	return t
}

// He (Kaiming) normal initialization, N(0, 2/fan_in), for ReLU networks.
func He(fanIn int, shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	std := math.Sqrt(2.0 / float64(fanIn))

	t := tensor.Zeros(shape)
	data := t.AsFloat32()
	for i := range data {
		data[i] = float32(rng.NormFloat64() * std)
	}
	return t
}
