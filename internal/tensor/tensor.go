package tensor

import (
	"fmt"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Quantization holds the affine parameters of a uint8-quantized tensor:
// value = Min + q * Scale.
type Quantization struct {
	Scale float32
	Min   float32
}

// Tensor is a dense row-major tensor.
//
// Float32 is the working type of every layer. Float16 and affine Uint8 are the
// compressed encodings produced by compressor layers; Float32s decodes any of
// them back to float32 so the next layer can consume them.
type Tensor struct {
	data   []byte
	shape  Shape
	stride []int
	dtype  DataType
	quant  *Quantization
}

// New creates a zero-filled tensor with the given shape and type.
func New(shape Shape, dtype DataType) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid shape")
	}

	return &Tensor{
		data:   make([]byte, shape.NumElements()*dtype.Size()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
	}, nil
}

// FromFloat32 creates a float32 tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromFloat32(data []float32, shape Shape) (*Tensor, error) {
	if shape.NumElements() != len(data) {
		return nil, errors.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	t, err := New(shape, Float32)
	if err != nil {
		return nil, err
	}
	copy(t.AsFloat32(), data)
	return t, nil
}

// FromUint8 creates a uint8 tensor from a Go slice.
func FromUint8(data []uint8, shape Shape) (*Tensor, error) {
	if shape.NumElements() != len(data) {
		return nil, errors.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	t, err := New(shape, Uint8)
	if err != nil {
		return nil, err
	}
	copy(t.data, data)
	return t, nil
}

// FromBytes creates a tensor of the given type by copying raw little-endian data.
func FromBytes(data []byte, shape Shape, dtype DataType) (*Tensor, error) {
	t, err := New(shape, dtype)
	if err != nil {
		return nil, err
	}
	if len(data) != t.ByteSize() {
		return nil, errors.Errorf("shape %v of %s requires %d bytes, but got %d", shape, dtype, t.ByteSize(), len(data))
	}
	copy(t.data, data)
	return t, nil
}

// Zeros creates a float32 tensor filled with zeros.
// Panics on a negative dimension.
func Zeros(shape Shape) *Tensor {
	t, err := New(shape, Float32)
	if err != nil {
		panic(err)
	}
	return t
}

// Full creates a float32 tensor filled with value.
func Full(shape Shape, value float32) *Tensor {
	t := Zeros(shape)
	data := t.AsFloat32()
	for i := range data {
		data[i] = value
	}
	return t
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// Strides returns the tensor's memory strides.
func (t *Tensor) Strides() []int {
	return t.stride
}

// DType returns the tensor's data type.
func (t *Tensor) DType() DataType {
	return t.dtype
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return t.shape.NumElements()
}

// ByteSize returns the size of the dense row-major encoding in bytes.
// It is derived from shape and type only and never reads the buffer.
func (t *Tensor) ByteSize() int {
	return t.NumElements() * t.dtype.Size()
}

// Quantization returns the affine parameters of a quantized Uint8 tensor, or nil.
func (t *Tensor) Quantization() *Quantization {
	return t.quant
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory.
func (t *Tensor) Data() []byte {
	return t.data
}

// AsFloat32 interprets the data as []float32 (zero-copy).
// Panics if the tensor's dtype is not Float32.
func (t *Tensor) AsFloat32() []float32 {
	if t.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", t.dtype))
	}
	if len(t.data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds given by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&t.data[0])), t.NumElements())
}

// AsFloat16 interprets the data as []float16.Float16 (zero-copy).
// Panics if the tensor's dtype is not Float16.
func (t *Tensor) AsFloat16() []float16.Float16 {
	if t.dtype != Float16 {
		panic(fmt.Sprintf("tensor dtype is %s, not float16", t.dtype))
	}
	if len(t.data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds given by NumElements()
	return unsafe.Slice((*float16.Float16)(unsafe.Pointer(&t.data[0])), t.NumElements())
}

// AsUint8 interprets the data as []uint8.
// Panics if the tensor's dtype is not Uint8.
func (t *Tensor) AsUint8() []uint8 {
	if t.dtype != Uint8 {
		panic(fmt.Sprintf("tensor dtype is %s, not uint8", t.dtype))
	}
	return t.data
}

// Float32s returns the tensor values as float32.
//
// For Float32 tensors this is the zero-copy view; other types are decoded into
// a fresh slice. Callers must treat the result as read-only.
func (t *Tensor) Float32s() []float32 {
	switch t.dtype {
	case Float32:
		return t.AsFloat32()
	case Float16:
		src := t.AsFloat16()
		out := make([]float32, len(src))
		for i, v := range src {
			out[i] = v.Float32()
		}
		return out
	case Uint8:
		out := make([]float32, len(t.data))
		if t.quant == nil {
			for i, v := range t.data {
				out[i] = float32(v)
			}
			return out
		}
		for i, v := range t.data {
			out[i] = t.quant.Min + float32(v)*t.quant.Scale
		}
		return out
	default:
		panic(fmt.Sprintf("Float32s: unsupported dtype %s", t.dtype))
	}
}

// Reshape returns a view of t with a new shape sharing the same buffer.
func (t *Tensor) Reshape(shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrap(err, "reshape")
	}
	if shape.NumElements() != t.NumElements() {
		return nil, errors.Errorf("reshape: cannot view %v (%d elements) as %v", t.shape, t.NumElements(), shape)
	}
	return &Tensor{
		data:   t.data,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  t.dtype,
		quant:  t.quant,
	}, nil
}

// Clone creates a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	c := &Tensor{
		data:   append([]byte(nil), t.data...),
		shape:  t.shape.Clone(),
		stride: append([]int(nil), t.stride...),
		dtype:  t.dtype,
	}
	if t.quant != nil {
		q := *t.quant
		c.quant = &q
	}
	return c
}

// String returns a human-readable representation of the tensor.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor[%s]%v", t.dtype, t.shape)
}
