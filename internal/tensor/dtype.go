// Package tensor provides the dense tensor type used by the model tree and the
// bandwidth profiler.
//
// A Tensor is a row-major byte buffer tagged with a shape and a runtime data
// type. Its serialized footprint is NumElements() * DType().Size(), which is
// exactly what the profiler reports as bandwidth.
package tensor

import (
	"github.com/pkg/errors"
)

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Int32
	Int64
	Uint8
	Bool
	Float16
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Float16:
		return 2
	case Uint8, Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	case Float16:
		return "float16"
	default:
		return "unknown"
	}
}

// ParseDataType is the inverse of DataType.String.
func ParseDataType(s string) (DataType, error) {
	for _, dt := range []DataType{Float32, Float64, Int32, Int64, Uint8, Bool, Float16} {
		if dt.String() == s {
			return dt, nil
		}
	}
	return 0, errors.Errorf("unknown data type %q", s)
}
