package dataset

import (
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// Blobs generates n samples of the given shape drawn from one Gaussian blob per
// class. Each class has a random center in [0.2, 0.8]; noise is the standard
// deviation around it. Values are clamped to [0, 1] so the samples are valid
// images.
func Blobs(n, classes int, shape tensor.Shape, noise float64, rng *rand.Rand) (*Dataset, error) {
	if n < 0 || classes <= 0 {
		return nil, errors.Errorf("blobs: invalid n=%d classes=%d", n, classes)
	}
	size := shape.NumElements()
	centers := make([][]float32, classes)
	for c := range centers {
		centers[c] = make([]float32, size)
		for i := range centers[c] {
			centers[c][i] = float32(0.2 + 0.6*rng.Float64())
		}
	}

	data := make([]float32, n*size)
	labels := make([]int, n)
	for s := range n {
		label := s % classes
		labels[s] = label
		for i, center := range centers[label] {
			v := float64(center) + rng.NormFloat64()*noise
			data[s*size+i] = float32(min(max(v, 0), 1))
		}
	}
	return New(shape, data, labels, classes)
}
