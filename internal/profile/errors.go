package profile

import (
	"github.com/pkg/errors"
)

// Structural misuse errors.
var (
	ErrNilModule           = errors.New("nil module")
	ErrAlreadyInstrumented = errors.New("module is already instrumented")
	ErrNotInstrumented     = errors.New("leaf is not instrumented")
)
