package nn

import (
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// Wrapper is implemented by modules that decorate exactly one other module
// without adding parameters of their own. Parameter paths look through it, so a
// model keeps the same state dict keys before and after decoration.
type Wrapper interface {
	Module
	Wrapped() Module
}

// NamedParameters returns every parameter of the tree keyed by its dotted path,
// e.g. "features.0.weight".
func NamedParameters(m Module) map[string]*Parameter {
	params := make(map[string]*Parameter)
	collectParameters(m, "", params)
	return params
}

func collectParameters(m Module, prefix string, out map[string]*Parameter) {
	if w, ok := m.(Wrapper); ok {
		collectParameters(w.Wrapped(), prefix, out)
		return
	}
	if c, ok := m.(Container); ok && len(c.Children()) > 0 {
		for _, child := range c.Children() {
			collectParameters(child.Module, JoinPath(prefix, child.Name), out)
		}
		return
	}
	for _, p := range m.Parameters() {
		out[JoinPath(prefix, p.Name())] = p
	}
}

// StateDict returns the parameter tensors of the tree keyed by dotted path.
// The tensors are shared with the model, not copied.
func StateDict(m Module) map[string]*tensor.Tensor {
	params := NamedParameters(m)
	sd := make(map[string]*tensor.Tensor, len(params))
	for name, p := range params {
		sd[name] = p.Tensor()
	}
	return sd
}

// LoadStateDict copies tensors from sd into the parameters of m.
//
// Loading is strict: every parameter must be present with a matching shape and
// no extra keys are allowed. Nothing is modified unless the whole dict matches.
func LoadStateDict(m Module, sd map[string]*tensor.Tensor) error {
	params := NamedParameters(m)

	var missing, unexpected []string
	for name := range params {
		if _, ok := sd[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range sd {
		if _, ok := params[name]; !ok {
			unexpected = append(unexpected, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return errors.Wrapf(ErrMissingKey, "%s", strings.Join(missing, ", "))
	}
	if len(unexpected) > 0 {
		slices.Sort(unexpected)
		return errors.Wrapf(ErrUnexpectedKey, "%s", strings.Join(unexpected, ", "))
	}

	for name, p := range params {
		if !sd[name].Shape().Equal(p.Tensor().Shape()) {
			return shapeErrorf("LoadStateDict", "%s: checkpoint shape %v, model shape %v",
				name, sd[name].Shape(), p.Tensor().Shape())
		}
	}
	for name, p := range params {
		copy(p.Tensor().AsFloat32(), sd[name].Float32s())
	}
	return nil
}
