package nn

import (
	"github.com/pkg/errors"
)

// Common errors.
var (
	ErrNoForwardCache = errors.New("backward called without a preceding train-mode forward")
	ErrDuplicateChild = errors.New("duplicate child name")
	ErrUnknownChild   = errors.New("unknown child name")
	ErrNilChild       = errors.New("nil child module")
	ErrShapeMismatch  = errors.New("shape mismatch")
	ErrMissingKey     = errors.New("missing key in state dict")
	ErrUnexpectedKey  = errors.New("unexpected key in state dict")
	ErrNotCheckpoint  = errors.New("file is not a checkpoint")
)

// shapeErrorf returns an ErrShapeMismatch annotated with the layer and details.
func shapeErrorf(layer, format string, args ...any) error {
	return errors.Wrapf(ErrShapeMismatch, layer+": "+format, args...)
}
