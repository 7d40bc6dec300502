package dataset

import (
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// Batch is one mini-batch of inputs and labels.
type Batch struct {
	Inputs *tensor.Tensor // [size, shape...]
	Labels []int
}

// Size returns the number of samples in the batch.
func (b *Batch) Size() int {
	return len(b.Labels)
}

// Loader iterates over a dataset in mini-batches. The last batch may be
// smaller. Reset starts a new pass, reshuffling when shuffling is on.
//
// Example:
//
//	loader, _ := dataset.NewLoader(train, 100, true, rng)
//	for batch, ok := loader.Next(); ok; batch, ok = loader.Next() {
//	    ...
//	}
//	loader.Reset()
type Loader struct {
	ds        *Dataset
	batchSize int
	rng       *rand.Rand // nil: sequential order
	order     []int
	pos       int
	err       error
}

// NewLoader creates a loader. rng is used only when shuffle is set.
func NewLoader(ds *Dataset, batchSize int, shuffle bool, rng *rand.Rand) (*Loader, error) {
	if ds == nil {
		return nil, errors.New("loader: nil dataset")
	}
	if batchSize <= 0 {
		return nil, errors.Errorf("loader: invalid batch size %d", batchSize)
	}
	if shuffle && rng == nil {
		return nil, errors.New("loader: shuffle needs a random source")
	}
	l := &Loader{ds: ds, batchSize: batchSize}
	if shuffle {
		l.rng = rng
	}
	l.Reset()
	return l, nil
}

// Next returns the next batch, or false at the end of the pass or on error.
func (l *Loader) Next() (*Batch, bool) {
	if l.err != nil || l.pos >= len(l.order) {
		return nil, false
	}
	end := min(l.pos+l.batchSize, len(l.order))
	inputs, labels, err := l.ds.Batch(l.order[l.pos:end])
	if err != nil {
		l.err = err
		return nil, false
	}
	l.pos = end
	return &Batch{Inputs: inputs, Labels: labels}, true
}

// Err returns the error that stopped the pass, if any.
func (l *Loader) Err() error {
	return l.err
}

// Reset rewinds the loader for a new pass.
func (l *Loader) Reset() {
	l.pos, l.err = 0, nil
	if l.rng != nil {
		l.order = l.rng.Perm(l.ds.Len())
		return
	}
	if len(l.order) != l.ds.Len() {
		l.order = make([]int, l.ds.Len())
		for i := range l.order {
			l.order[i] = i
		}
	}
}

// NumBatches returns the number of batches per pass.
func (l *Loader) NumBatches() int {
	return (l.ds.Len() + l.batchSize - 1) / l.batchSize
}

// Len returns the number of samples per pass.
func (l *Loader) Len() int {
	return l.ds.Len()
}

// Dataset returns the underlying dataset.
func (l *Loader) Dataset() *Dataset {
	return l.ds
}
