// Package dataset holds labelled samples in memory and serves them as batches.
//
// Samples are float32 tensors of one fixed per-sample shape (for images
// [channels, height, width] with values in [0, 1]). Datasets are read from MNIST
// IDX files, class-per-directory image folders, or generated synthetically, and
// can be transformed sample-wise (lossy input compression) or batch-wise (an
// autoencoder applied in front of the classifier).
package dataset

import (
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// ErrEmpty is returned when an operation needs at least one sample.
var ErrEmpty = errors.New("dataset is empty")

// Dataset is an in-memory labelled dataset.
type Dataset struct {
	shape   tensor.Shape // per sample
	data    []float32    // samples back to back
	labels  []int
	classes int
}

// New creates a dataset from flat sample data. len(data) must be
// len(labels) * shape.NumElements() and every label must be in [0, classes).
func New(shape tensor.Shape, data []float32, labels []int, classes int) (*Dataset, error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrap(err, "dataset shape")
	}
	size := shape.NumElements()
	if size == 0 {
		return nil, errors.Errorf("dataset: sample shape %v has no elements", shape)
	}
	if len(data) != len(labels)*size {
		return nil, errors.Errorf("dataset: %d values for %d samples of shape %v", len(data), len(labels), shape)
	}
	for i, l := range labels {
		if l < 0 || l >= classes {
			return nil, errors.Errorf("dataset: label %d of sample %d not in [0, %d)", l, i, classes)
		}
	}
	return &Dataset{shape: shape.Clone(), data: data, labels: labels, classes: classes}, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.labels)
}

// Shape returns the per-sample shape.
func (d *Dataset) Shape() tensor.Shape {
	return d.shape
}

// Classes returns the number of classes.
func (d *Dataset) Classes() int {
	return d.classes
}

// Sample returns the values of sample i. The slice aliases the dataset.
func (d *Dataset) Sample(i int) []float32 {
	size := d.shape.NumElements()
	return d.data[i*size : (i+1)*size]
}

// Label returns the label of sample i.
func (d *Dataset) Label(i int) int {
	return d.labels[i]
}

// Batch gathers the given samples into a [len(indices), shape...] tensor.
func (d *Dataset) Batch(indices []int) (*tensor.Tensor, []int, error) {
	size := d.shape.NumElements()
	out, err := tensor.New(append(tensor.Shape{len(indices)}, d.shape...), tensor.Float32)
	if err != nil {
		return nil, nil, err
	}
	dst := out.AsFloat32()
	labels := make([]int, len(indices))
	for k, i := range indices {
		if i < 0 || i >= d.Len() {
			return nil, nil, errors.Errorf("dataset: index %d out of range [0, %d)", i, d.Len())
		}
		copy(dst[k*size:(k+1)*size], d.Sample(i))
		labels[k] = d.labels[i]
	}
	return out, labels, nil
}

// Subset returns a dataset of the given samples, copied.
func (d *Dataset) Subset(indices []int) (*Dataset, error) {
	size := d.shape.NumElements()
	data := make([]float32, 0, len(indices)*size)
	labels := make([]int, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= d.Len() {
			return nil, errors.Errorf("dataset: index %d out of range [0, %d)", i, d.Len())
		}
		data = append(data, d.Sample(i)...)
		labels = append(labels, d.labels[i])
	}
	return &Dataset{shape: d.shape.Clone(), data: data, labels: labels, classes: d.classes}, nil
}

// Split shuffles the samples with rng and moves a validRate fraction of them
// into a validation set. validRate must be in [0, 1).
func (d *Dataset) Split(validRate float64, rng *rand.Rand) (train, valid *Dataset, err error) {
	if validRate < 0 || validRate >= 1 {
		return nil, nil, errors.Errorf("dataset: validation rate %g not in [0, 1)", validRate)
	}
	order := rng.Perm(d.Len())
	nValid := int(float64(d.Len()) * validRate)
	if valid, err = d.Subset(order[:nValid]); err != nil {
		return nil, nil, err
	}
	if train, err = d.Subset(order[nValid:]); err != nil {
		return nil, nil, err
	}
	return train, valid, nil
}

// MapInputs runs f over the inputs in batches of batchSize and returns a
// dataset of its outputs with the same labels. All outputs must share one
// per-sample shape.
func (d *Dataset) MapInputs(batchSize int, f func(batch *tensor.Tensor) (*tensor.Tensor, error)) (*Dataset, error) {
	if batchSize <= 0 {
		return nil, errors.Errorf("dataset: invalid batch size %d", batchSize)
	}
	var shape tensor.Shape
	var data []float32
	for start := 0; start < d.Len(); start += batchSize {
		end := min(start+batchSize, d.Len())
		indices := make([]int, end-start)
		for k := range indices {
			indices[k] = start + k
		}
		batch, _, err := d.Batch(indices)
		if err != nil {
			return nil, err
		}
		out, err := f(batch)
		if err != nil {
			return nil, errors.WithMessagef(err, "map samples [%d, %d)", start, end)
		}
		if out.Shape().Batch() != len(indices) {
			return nil, errors.Errorf("dataset: map returned %d samples for %d", out.Shape().Batch(), len(indices))
		}
		if shape == nil {
			shape = out.Shape().PerSample()
		} else if !shape.Equal(out.Shape().PerSample()) {
			return nil, errors.Errorf("dataset: map changed sample shape from %v to %v", shape, out.Shape().PerSample())
		}
		data = append(data, out.Float32s()...)
	}
	if shape == nil {
		shape = d.shape.Clone()
	}
	return &Dataset{shape: shape, data: data, labels: append([]int(nil), d.labels...), classes: d.classes}, nil
}
