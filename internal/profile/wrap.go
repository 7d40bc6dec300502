package profile

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/nitishmital/head-network-distillation/internal/nn"
)

// Wrap replaces every leaf below root with a Wrapper, top-down, and returns the
// new wrappers in pre-order.
//
// A leaf is any node without children. Containers with children are descended
// into and keep their identity; only the leaves are replaced, under the same
// name and position. root itself is never wrapped, so an empty root yields no
// wrappers.
//
// The whole tree is validated before anything is replaced: if any node is
// already a Wrapper the call fails with ErrAlreadyInstrumented, and a nil child
// fails with ErrNilModule, leaving the tree untouched in both cases.
func Wrap(root nn.Container, opts ...Option) ([]*Wrapper, error) {
	if root == nil {
		return nil, ErrNilModule
	}
	if err := validate(root, ""); err != nil {
		return nil, err
	}
	var wrappers []*Wrapper
	if err := wrapChildren(root, "", opts, &wrappers); err != nil {
		return nil, err
	}
	klog.V(1).Infof("instrumented %d leaves of %s", len(wrappers), root.Name())
	return wrappers, nil
}

func validate(c nn.Container, prefix string) error {
	for _, child := range c.Children() {
		path := nn.JoinPath(prefix, child.Name)
		switch m := child.Module.(type) {
		case nil:
			return errors.Wrapf(ErrNilModule, "child %q", path)
		case *Wrapper:
			return errors.Wrapf(ErrAlreadyInstrumented, "child %q", path)
		case nn.Container:
			if len(m.Children()) > 0 {
				if err := validate(m, path); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func wrapChildren(c nn.Container, prefix string, opts []Option, out *[]*Wrapper) error {
	for _, child := range c.Children() {
		path := nn.JoinPath(prefix, child.Name)
		if sub, ok := child.Module.(nn.Container); ok && len(sub.Children()) > 0 {
			if err := wrapChildren(sub, path, opts, out); err != nil {
				return err
			}
			continue
		}
		w, err := NewWrapper(child.Module, opts...)
		if err != nil {
			return errors.WithMessagef(err, "wrap %q", path)
		}
		if err := c.ReplaceChild(child.Name, w); err != nil {
			return errors.WithMessagef(err, "wrap %q", path)
		}
		klog.V(2).Infof("wrapped %s (%s)", path, w.Name())
		*out = append(*out, w)
	}
	return nil
}

// Unwrap replaces every Wrapper below root with the module it wraps and returns
// how many were removed. It is the inverse of Wrap.
func Unwrap(root nn.Container) (int, error) {
	if root == nil {
		return 0, ErrNilModule
	}
	return unwrapChildren(root, "")
}

func unwrapChildren(c nn.Container, prefix string) (int, error) {
	n := 0
	for _, child := range c.Children() {
		path := nn.JoinPath(prefix, child.Name)
		switch m := child.Module.(type) {
		case *Wrapper:
			if err := c.ReplaceChild(child.Name, m.Wrapped()); err != nil {
				return n, errors.WithMessagef(err, "unwrap %q", path)
			}
			n++
		case nn.Container:
			k, err := unwrapChildren(m, path)
			n += k
			if err != nil {
				return n, err
			}
		}
	}
	return n, nil
}
