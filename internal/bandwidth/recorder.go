// Package bandwidth accumulates the byte volume of data crossing one point of
// a model and reports its mean per sample.
package bandwidth

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrNoSamples is returned by Average before the first sample is recorded.
var ErrNoSamples = errors.New("no samples recorded")

// Recorder accumulates (bytes, samples) pairs.
//
// The zero value is ready to use. A Recorder is safe for concurrent use; each
// Recorder has its own lock.
type Recorder struct {
	mu    sync.Mutex
	total int64
	count int64
}

// Record adds one sample of byteCount bytes. Zero is a valid size.
// It panics on a negative byteCount.
func (r *Recorder) Record(byteCount int) {
	r.RecordN(byteCount, 1)
}

// RecordN adds samples samples totalling byteCount bytes.
// It panics on negative arguments.
func (r *Recorder) RecordN(byteCount, samples int) {
	if byteCount < 0 || samples < 0 {
		panic(errors.Errorf("bandwidth: negative record (bytes=%d, samples=%d)", byteCount, samples))
	}
	r.mu.Lock()
	r.total += int64(byteCount)
	r.count += int64(samples)
	r.mu.Unlock()
}

// Average returns total bytes divided by the sample count.
func (r *Recorder) Average() (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return 0, ErrNoSamples
	}
	return float64(r.total) / float64(r.count), nil
}

// Total returns the cumulative byte count.
func (r *Recorder) Total() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Count returns the number of recorded samples.
func (r *Recorder) Count() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Reset clears the recorder.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.total, r.count = 0, 0
	r.mu.Unlock()
}
