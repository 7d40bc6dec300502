// Package profile instruments a model tree to measure how many bytes enter and
// leave each leaf, and turns those measurements into a per-layer compression
// profile.
//
// The workflow is:
//
//	wrappers, err := profile.Wrap(model)       // replace every leaf with a Wrapper
//	... run Forward over the evaluation data ...
//	p, err := profile.Extract(model)           // per-leaf averages, pre-order
//
// Wrap and Unwrap mutate the tree and must not run concurrently with Forward.
package profile

import (
	"github.com/nitishmital/head-network-distillation/internal/bandwidth"
	"github.com/nitishmital/head-network-distillation/internal/nn"
	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// Option configures a Wrapper.
type Option func(*options)

type options struct {
	perSample bool
}

// PerSample makes a Wrapper count every sample of a batch instead of every
// call, so averages are bytes per sample rather than bytes per batch.
func PerSample() Option {
	return func(o *options) {
		o.perSample = true
	}
}

// SerializedSize returns the number of bytes t occupies in dense row-major
// form. It is computed from shape and element type only and never reads or
// copies the tensor data.
func SerializedSize(t *tensor.Tensor) int {
	if t == nil {
		return 0
	}
	return t.ByteSize()
}

// Wrapper decorates one module and records the serialized size of every input
// (the original bandwidth) and output (the compressed bandwidth) it sees.
//
// A Wrapper has no children of its own: the wrapped module is reachable only
// through Wrapped, so tree walks treat the Wrapper as a leaf.
type Wrapper struct {
	module     nn.Module
	perSample  bool
	original   bandwidth.Recorder
	compressed bandwidth.Recorder
}

// NewWrapper wraps m.
//
// Returns ErrNilModule for a nil module and ErrAlreadyInstrumented when m is
// itself a Wrapper.
func NewWrapper(m nn.Module, opts ...Option) (*Wrapper, error) {
	if m == nil {
		return nil, ErrNilModule
	}
	if _, ok := m.(*Wrapper); ok {
		return nil, ErrAlreadyInstrumented
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Wrapper{module: m, perSample: o.perSample}, nil
}

// Name returns the display name of the wrapped module.
func (w *Wrapper) Name() string {
	return w.module.Name()
}

// Wrapped returns the decorated module.
func (w *Wrapper) Wrapped() nn.Module {
	return w.module
}

// Forward runs the wrapped module and records input and output sizes.
//
// The output is returned as produced. If the wrapped module fails its error is
// returned unchanged and nothing is recorded.
func (w *Wrapper) Forward(input *tensor.Tensor, mode nn.Mode) (*tensor.Tensor, error) {
	inSize := SerializedSize(input)
	output, err := w.module.Forward(input, mode)
	if err != nil {
		return nil, err
	}
	outSize := SerializedSize(output)

	if w.perSample {
		samples := 1
		if input != nil {
			samples = input.Shape().Batch()
		}
		w.original.RecordN(inSize, samples)
		w.compressed.RecordN(outSize, samples)
	} else {
		w.original.Record(inSize)
		w.compressed.Record(outSize)
	}
	return output, nil
}

// Backward delegates to the wrapped module. Measurement plays no part in
// gradient computation.
func (w *Wrapper) Backward(gradOutput *tensor.Tensor) (*tensor.Tensor, error) {
	return w.module.Backward(gradOutput)
}

// Parameters returns the wrapped module's parameters.
func (w *Wrapper) Parameters() []*nn.Parameter {
	return w.module.Parameters()
}

// AverageOriginalBandwidth returns the mean input size in bytes.
// Returns bandwidth.ErrNoSamples before the first Forward.
func (w *Wrapper) AverageOriginalBandwidth() (float64, error) {
	return w.original.Average()
}

// AverageCompressedBandwidth returns the mean output size in bytes.
// Returns bandwidth.ErrNoSamples before the first Forward.
func (w *Wrapper) AverageCompressedBandwidth() (float64, error) {
	return w.compressed.Average()
}

// Samples returns the number of samples recorded so far.
func (w *Wrapper) Samples() int64 {
	return w.original.Count()
}

// Reset discards all recorded measurements.
func (w *Wrapper) Reset() {
	w.original.Reset()
	w.compressed.Reset()
}
