// Copyright 2026 The Head Network Distillation Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API of the dense tensor type.
//
// The package defines:
//   - Tensor: row-major buffer tagged with a Shape and a DataType
//   - Shape, DataType: core type definitions
//   - ToFloat16, QuantizeUint8: narrower encodings used by compressor layers
//
// The serialized size of a tensor, ByteSize(), is its element count times the
// width of its data type. This is the quantity the profiler records.
//
// Example:
//
//	x, err := tensor.FromFloat32([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
//	half, err := tensor.ToFloat16(x)
//	fmt.Println(x.ByteSize(), half.ByteSize()) // 24 12
package tensor

import (
	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// Tensor is a dense row-major tensor.
type Tensor = tensor.Tensor

// Shape represents tensor dimensions.
type Shape = tensor.Shape

// DataType represents the runtime element type of a tensor.
type DataType = tensor.DataType

// Quantization holds the affine parameters of a uint8-quantized tensor.
type Quantization = tensor.Quantization

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Uint8   DataType = tensor.Uint8
	Bool    DataType = tensor.Bool
	Float16 DataType = tensor.Float16
)

// New creates a zero-filled tensor with the given shape and type.
func New(shape Shape, dtype DataType) (*Tensor, error) {
	return tensor.New(shape, dtype)
}

// FromFloat32 creates a float32 tensor holding a copy of data.
func FromFloat32(data []float32, shape Shape) (*Tensor, error) {
	return tensor.FromFloat32(data, shape)
}

// FromUint8 creates a uint8 tensor holding a copy of data.
func FromUint8(data []uint8, shape Shape) (*Tensor, error) {
	return tensor.FromUint8(data, shape)
}

// Zeros creates a float32 tensor of zeros.
func Zeros(shape Shape) *Tensor {
	return tensor.Zeros(shape)
}

// Full creates a float32 tensor filled with value.
func Full(shape Shape, value float32) *Tensor {
	return tensor.Full(shape, value)
}

// ParseDataType parses a data type name such as "float16".
func ParseDataType(s string) (DataType, error) {
	return tensor.ParseDataType(s)
}

// ToFloat16 encodes t as IEEE 754 half precision.
func ToFloat16(t *Tensor) (*Tensor, error) {
	return tensor.ToFloat16(t)
}

// QuantizeUint8 encodes t with per-tensor affine uint8 quantization.
func QuantizeUint8(t *Tensor) (*Tensor, error) {
	return tensor.QuantizeUint8(t)
}

// MatMul computes a @ b for 2D tensors.
func MatMul(a, b *Tensor) (*Tensor, error) {
	return tensor.MatMul(a, b)
}
