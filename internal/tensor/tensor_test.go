package tensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

func TestByteSize(t *testing.T) {
	tests := []struct {
		name  string
		shape tensor.Shape
		dtype tensor.DataType
		want  int
	}{
		{"float32 matrix", tensor.Shape{10, 25}, tensor.Float32, 1000},
		{"float16 matrix", tensor.Shape{10, 25}, tensor.Float16, 500},
		{"uint8 image", tensor.Shape{2, 1, 28, 28}, tensor.Uint8, 1568},
		{"float64 vector", tensor.Shape{3}, tensor.Float64, 24},
		{"scalar", tensor.Shape{}, tensor.Int32, 4},
		{"empty batch", tensor.Shape{0, 784}, tensor.Float32, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, err := tensor.New(tt.shape, tt.dtype)
			require.NoError(t, err)
			assert.Equal(t, tt.want, x.ByteSize())
			assert.Len(t, x.Data(), tt.want)
		})
	}
}

func TestNew_RejectsNegativeDimension(t *testing.T) {
	_, err := tensor.New(tensor.Shape{2, -1}, tensor.Float32)
	require.Error(t, err)
}

func TestFromFloat32_ElementCountMismatch(t *testing.T) {
	_, err := tensor.FromFloat32([]float32{1, 2, 3}, tensor.Shape{2, 2})
	require.Error(t, err)
}

func TestReshape_SharesBuffer(t *testing.T) {
	x, err := tensor.FromFloat32([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	require.NoError(t, err)

	y, err := x.Reshape(tensor.Shape{3, 2})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 2}, y.Shape())
	assert.Equal(t, []int{2, 1}, y.Strides())

	y.AsFloat32()[0] = 42
	assert.Equal(t, float32(42), x.AsFloat32()[0])

	_, err = x.Reshape(tensor.Shape{4, 2})
	require.Error(t, err)
}

func TestClone_IsDeep(t *testing.T) {
	x, err := tensor.FromFloat32([]float32{1, 2}, tensor.Shape{2})
	require.NoError(t, err)

	c := x.Clone()
	c.AsFloat32()[0] = 7
	assert.Equal(t, float32(1), x.AsFloat32()[0])
}

func TestToFloat16_RoundTrip(t *testing.T) {
	x, err := tensor.FromFloat32([]float32{0.5, -2, 1024, 0.25}, tensor.Shape{2, 2})
	require.NoError(t, err)

	h, err := tensor.ToFloat16(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float16, h.DType())
	assert.Equal(t, x.ByteSize()/2, h.ByteSize())
	assert.Equal(t, []float32{0.5, -2, 1024, 0.25}, h.Float32s())
}

func TestQuantizeUint8(t *testing.T) {
	x, err := tensor.FromFloat32([]float32{-1, 0, 1, 0.5}, tensor.Shape{4})
	require.NoError(t, err)

	q, err := tensor.QuantizeUint8(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Uint8, q.DType())
	assert.Equal(t, 4, q.ByteSize())
	require.NotNil(t, q.Quantization())

	got := q.Float32s()
	for i, want := range []float32{-1, 0, 1, 0.5} {
		assert.InDelta(t, want, got[i], 2.0/255, "index %d", i)
	}
}

func TestQuantizeUint8_Constant(t *testing.T) {
	q, err := tensor.QuantizeUint8(tensor.Full(tensor.Shape{3}, 2.5))
	require.NoError(t, err)
	assert.Equal(t, []float32{2.5, 2.5, 2.5}, q.Float32s())
}

func TestMatMulVariants(t *testing.T) {
	// a = [[1 2 3] [4 5 6]], b = [[1 0] [0 1] [1 1]]
	a, err := tensor.FromFloat32([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	require.NoError(t, err)
	b, err := tensor.FromFloat32([]float32{1, 0, 0, 1, 1, 1}, tensor.Shape{3, 2})
	require.NoError(t, err)

	c, err := tensor.MatMul(a, b)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2}, c.Shape())
	assert.Equal(t, []float32{4, 5, 10, 11}, c.AsFloat32())

	// b^T stored as [2, 3].
	bt, err := tensor.FromFloat32([]float32{1, 0, 1, 0, 1, 1}, tensor.Shape{2, 3})
	require.NoError(t, err)
	c2, err := tensor.MatMulNT(a, bt)
	require.NoError(t, err)
	assert.Equal(t, c.AsFloat32(), c2.AsFloat32())

	// a^T stored as [3, 2].
	at, err := tensor.FromFloat32([]float32{1, 4, 2, 5, 3, 6}, tensor.Shape{3, 2})
	require.NoError(t, err)
	c3, err := tensor.MatMulTN(at, b)
	require.NoError(t, err)
	assert.Equal(t, c.AsFloat32(), c3.AsFloat32())

	_, err = tensor.MatMul(a, a)
	require.Error(t, err)
}

func TestArgmaxRows(t *testing.T) {
	x, err := tensor.FromFloat32([]float32{0.1, 0.7, 0.2, 3, -1, 2}, tensor.Shape{2, 3})
	require.NoError(t, err)

	idx, err := tensor.ArgmaxRows(x)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, idx)
}

func TestParseDataType(t *testing.T) {
	for _, dt := range []tensor.DataType{tensor.Float32, tensor.Float16, tensor.Uint8, tensor.Int64} {
		got, err := tensor.ParseDataType(dt.String())
		require.NoError(t, err)
		assert.Equal(t, dt, got)
	}
	_, err := tensor.ParseDataType("bfloat16")
	require.Error(t, err)
}
