package nn

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// Sequential is a container module that chains its children together.
//
// Each child's output becomes the next child's input. Children are named; the
// names given to NewSequential are their indices ("0", "1", ...).
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.NewFlatten(),
//	    nn.NewLinear(784, 128, rng),
//	    nn.NewReLU(),
//	    nn.NewLinear(128, 10, rng),
//	)
//
//	output, err := model.Forward(input, nn.Eval)
type Sequential struct {
	name     string
	children []Child
	index    map[string]int
}

// NewSequential creates a Sequential whose children are named by position.
func NewSequential(modules ...Module) *Sequential {
	s := &Sequential{name: "Sequential", index: make(map[string]int, len(modules))}
	for _, m := range modules {
		s.Add(m)
	}
	return s
}

// NewNamedSequential creates a Sequential from explicitly named children.
//
// Returns ErrDuplicateChild if a name repeats and ErrNilChild for nil modules.
func NewNamedSequential(children ...Child) (*Sequential, error) {
	s := &Sequential{name: "Sequential", index: make(map[string]int, len(children))}
	for _, c := range children {
		if err := s.AddNamed(c.Name, c.Module); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// WithName sets the display name of the container and returns it.
func (s *Sequential) WithName(name string) *Sequential {
	s.name = name
	return s
}

// Name returns the display name ("Sequential" unless overridden).
func (s *Sequential) Name() string {
	return s.name
}

// Add appends a module named after its position.
// Panics if m is nil or the positional name is already taken.
func (s *Sequential) Add(m Module) {
	if err := s.AddNamed(strconv.Itoa(len(s.children)), m); err != nil {
		panic(err)
	}
}

// AddNamed appends a module under name.
func (s *Sequential) AddNamed(name string, m Module) error {
	if m == nil {
		return errors.Wrapf(ErrNilChild, "child %q", name)
	}
	if _, exists := s.index[name]; exists {
		return errors.Wrapf(ErrDuplicateChild, "child %q", name)
	}
	s.index[name] = len(s.children)
	s.children = append(s.children, Child{Name: name, Module: m})
	return nil
}

// Len returns the number of children.
func (s *Sequential) Len() int {
	return len(s.children)
}

// Child returns the module registered under name.
func (s *Sequential) Child(name string) (Module, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.children[i].Module, true
}

// Children returns a copy of the children in declaration order.
func (s *Sequential) Children() []Child {
	return append([]Child(nil), s.children...)
}

// ReplaceChild replaces the module registered under name, keeping its position.
func (s *Sequential) ReplaceChild(name string, m Module) error {
	if m == nil {
		return errors.Wrapf(ErrNilChild, "child %q", name)
	}
	i, ok := s.index[name]
	if !ok {
		return errors.Wrapf(ErrUnknownChild, "child %q", name)
	}
	s.children[i].Module = m
	return nil
}

// Forward applies all children in sequence.
//
// An error from a child is returned annotated with the child's name; the
// original error stays reachable through errors.Is / errors.Cause.
func (s *Sequential) Forward(input *tensor.Tensor, mode Mode) (*tensor.Tensor, error) {
	output := input
	for _, c := range s.children {
		var err error
		output, err = c.Module.Forward(output, mode)
		if err != nil {
			return nil, errors.WithMessagef(err, "%s (%s)", c.Name, c.Module.Name())
		}
	}
	return output, nil
}

// Backward propagates the gradient through the children in reverse order.
func (s *Sequential) Backward(gradOutput *tensor.Tensor) (*tensor.Tensor, error) {
	grad := gradOutput
	for i := len(s.children) - 1; i >= 0; i-- {
		c := s.children[i]
		var err error
		grad, err = c.Module.Backward(grad)
		if err != nil {
			return nil, errors.WithMessagef(err, "%s (%s)", c.Name, c.Module.Name())
		}
	}
	return grad, nil
}

// Parameters returns the parameters of all children, in declaration order.
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, c := range s.children {
		params = append(params, c.Module.Parameters()...)
	}
	return params
}
