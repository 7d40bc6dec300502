package profile

import (
	"github.com/pkg/errors"

	"github.com/nitishmital/head-network-distillation/internal/bandwidth"
	"github.com/nitishmital/head-network-distillation/internal/nn"
)

// Profile is a snapshot of per-leaf average bandwidth in pre-order.
//
// All slices have the same length; entry i describes one instrumented leaf:
// its display name, dotted path from the root, and average input (Original)
// and output (Compressed) size in bytes.
type Profile struct {
	Names      []string  `json:"names"`
	Paths      []string  `json:"paths"`
	Original   []float64 `json:"original"`
	Compressed []float64 `json:"compressed"`
}

// Len returns the number of entries.
func (p *Profile) Len() int {
	return len(p.Names)
}

func (p *Profile) add(path string, w *Wrapper, orig, comp float64) {
	p.Names = append(p.Names, w.Name())
	p.Paths = append(p.Paths, path)
	p.Original = append(p.Original, orig)
	p.Compressed = append(p.Compressed, comp)
}

func newProfile() *Profile {
	return &Profile{Names: []string{}, Paths: []string{}, Original: []float64{}, Compressed: []float64{}}
}

// Extract collects the averages of every instrumented leaf below root in
// pre-order, children in declaration order.
//
// It fails with an error matching bandwidth.ErrNoSamples, naming the leaf, if
// any wrapper has not been measured yet, and with ErrNotInstrumented when it
// reaches a leaf that is not a Wrapper.
func Extract(root nn.Container) (*Profile, error) {
	p := newProfile()
	err := walk(root, "", func(path string, w *Wrapper) error {
		orig, err := w.AverageOriginalBandwidth()
		if err != nil {
			return errors.WithMessagef(err, "leaf %q (%s)", path, w.Name())
		}
		comp, err := w.AverageCompressedBandwidth()
		if err != nil {
			return errors.WithMessagef(err, "leaf %q (%s)", path, w.Name())
		}
		p.add(path, w, orig, comp)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ExtractMeasured is Extract that skips wrappers without samples instead of
// failing. The paths of the skipped leaves are returned alongside the profile.
func ExtractMeasured(root nn.Container) (*Profile, []string, error) {
	p := newProfile()
	var unmeasured []string
	err := walk(root, "", func(path string, w *Wrapper) error {
		orig, err := w.AverageOriginalBandwidth()
		if errors.Is(err, bandwidth.ErrNoSamples) {
			unmeasured = append(unmeasured, path)
			return nil
		}
		if err != nil {
			return err
		}
		comp, err := w.AverageCompressedBandwidth()
		if err != nil {
			return errors.WithMessagef(err, "leaf %q (%s)", path, w.Name())
		}
		p.add(path, w, orig, comp)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return p, unmeasured, nil
}

// Wrappers returns the wrappers below root in pre-order.
func Wrappers(root nn.Container) ([]*Wrapper, error) {
	var out []*Wrapper
	err := walk(root, "", func(_ string, w *Wrapper) error {
		out = append(out, w)
		return nil
	})
	return out, err
}

// walk visits the leaves below c in pre-order. Containers with children are
// descended into; Wrappers are visited; any other leaf is an error.
func walk(c nn.Container, prefix string, visit func(path string, w *Wrapper) error) error {
	if c == nil {
		return ErrNilModule
	}
	for _, child := range c.Children() {
		path := nn.JoinPath(prefix, child.Name)
		switch m := child.Module.(type) {
		case *Wrapper:
			if err := visit(path, m); err != nil {
				return err
			}
		case nn.Container:
			if len(m.Children()) == 0 {
				return errors.Wrapf(ErrNotInstrumented, "leaf %q (%s)", path, m.Name())
			}
			if err := walk(m, path, visit); err != nil {
				return err
			}
		case nil:
			return errors.Wrapf(ErrNilModule, "child %q", path)
		default:
			return errors.Wrapf(ErrNotInstrumented, "leaf %q (%s)", path, m.Name())
		}
	}
	return nil
}
