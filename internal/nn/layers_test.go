package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

func mustTensor(t *testing.T, data []float32, shape ...int) *tensor.Tensor {
	t.Helper()
	x, err := tensor.FromFloat32(data, tensor.Shape(shape))
	require.NoError(t, err)
	return x
}

func sequence(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i + 1)
	}
	return out
}

// ramp returns n small values in [-0.3, 0.3].
func ramp(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i%7)*0.1 - 0.3
	}
	return out
}

// checkInputGradient compares Backward against central differences of
// L = Σ out * weights, where weights are fixed pseudo-random values.
func checkInputGradient(t *testing.T, m Module, input *tensor.Tensor) {
	t.Helper()
	out, err := m.Forward(input, Train)
	require.NoError(t, err)
	weights := make([]float32, out.NumElements())
	for i := range weights {
		weights[i] = float32((i*7)%5) - 2
	}
	analytic, err := m.Backward(mustTensor(t, weights, out.Shape()...))
	require.NoError(t, err)

	loss := func(x *tensor.Tensor) float64 {
		y, err := m.Forward(x, Eval)
		require.NoError(t, err)
		var s float64
		for i, v := range y.Float32s() {
			s += float64(v * weights[i])
		}
		return s
	}

	const eps = 1e-2
	x := input.Clone()
	data := x.AsFloat32()
	grad := analytic.Float32s()
	for i := range data {
		orig := data[i]
		data[i] = orig + eps
		plus := loss(x)
		data[i] = orig - eps
		minus := loss(x)
		data[i] = orig
		assert.InDelta(t, (plus-minus)/(2*eps), grad[i], 1e-2, "input %d", i)
	}
}

// TestLinear_Forward tests y = x @ W.T + b with known weights.
func TestLinear_Forward(t *testing.T) {
	layer := NewLinear(3, 2, NewRNG(1))
	copy(layer.Weight().Tensor().AsFloat32(), []float32{1, 0, -1, 2, 1, 0})
	copy(layer.Bias().Tensor().AsFloat32(), []float32{0.5, -1})

	out, err := layer.Forward(mustTensor(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3), Eval)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float32{-1.5, 3, -1.5, 12}, out.AsFloat32())
}

func TestLinear_Backward(t *testing.T) {
	layer := NewLinear(4, 3, NewRNG(2))
	checkInputGradient(t, layer, mustTensor(t, ramp(8), 2, 4))

	input := mustTensor(t, sequence(8), 2, 4)

	// db is the column sum of the upstream gradient.
	layer.Bias().ZeroGrad()
	layer.Weight().ZeroGrad()
	_, err := layer.Forward(input, Train)
	require.NoError(t, err)
	_, err = layer.Backward(tensor.Full(tensor.Shape{2, 3}, 1))
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 2, 2}, layer.Bias().Grad().AsFloat32())
	// dW[j] = Σ_batch x
	assert.Equal(t, []float32{6, 8, 10, 12}, layer.Weight().Grad().AsFloat32()[:4])
}

func TestLinear_ShapeErrors(t *testing.T) {
	layer := NewLinear(4, 2, NewRNG(1))

	_, err := layer.Forward(tensor.Zeros(tensor.Shape{2, 3}), Eval)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = layer.Forward(tensor.Zeros(tensor.Shape{4}), Eval)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestLinear_BackwardNeedsTrainForward(t *testing.T) {
	layer := NewLinear(2, 2, NewRNG(1))
	_, err := layer.Forward(tensor.Zeros(tensor.Shape{1, 2}), Eval)
	require.NoError(t, err)
	_, err = layer.Backward(tensor.Zeros(tensor.Shape{1, 2}))
	assert.ErrorIs(t, err, ErrNoForwardCache)
}

// TestConv2D_ForwardValues tests a 2x2 all-ones kernel on a 3x3 input.
func TestConv2D_ForwardValues(t *testing.T) {
	conv, err := NewConv2D(1, 1, 2, 1, 0, NewRNG(1))
	require.NoError(t, err)
	copy(conv.Weight().Tensor().AsFloat32(), []float32{1, 1, 1, 1})
	copy(conv.Bias().Tensor().AsFloat32(), []float32{1})

	out, err := conv.Forward(mustTensor(t, sequence(9), 1, 1, 3, 3), Eval)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, out.Shape())
	// 1+2+4+5+1, 2+3+5+6+1, ...
	assert.Equal(t, []float32{13, 17, 25, 29}, out.AsFloat32())
}

func TestConv2D_Padding(t *testing.T) {
	conv, err := NewConv2D(2, 3, 3, 1, 1, NewRNG(1))
	require.NoError(t, err)
	out, err := conv.Forward(tensor.Zeros(tensor.Shape{4, 2, 5, 5}), Eval)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{4, 3, 5, 5}, out.Shape())
}

func TestConv2D_Backward(t *testing.T) {
	conv, err := NewConv2D(2, 3, 3, 2, 1, NewRNG(3))
	require.NoError(t, err)
	checkInputGradient(t, conv, mustTensor(t, ramp(2*2*5*5), 2, 2, 5, 5))
	assert.Equal(t, conv.Weight().Tensor().Shape(), conv.Weight().Grad().Shape())
	assert.NotNil(t, conv.Bias().Grad())
}

func TestConv2D_InvalidInput(t *testing.T) {
	conv, err := NewConv2D(3, 4, 3, 1, 0, NewRNG(1))
	require.NoError(t, err)

	_, err = conv.Forward(tensor.Zeros(tensor.Shape{1, 2, 8, 8}), Eval)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = conv.Forward(tensor.Zeros(tensor.Shape{1, 3, 2, 2}), Eval)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = NewConv2D(0, 4, 3, 1, 0, NewRNG(1))
	assert.Error(t, err)
}

// TestMaxPool2D_ForwardValues tests pooling of a 4x4 ramp.
func TestMaxPool2D_ForwardValues(t *testing.T) {
	pool, err := NewMaxPool2D(2, 2)
	require.NoError(t, err)

	out, err := pool.Forward(mustTensor(t, sequence(16), 1, 1, 4, 4), Train)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, out.Shape())
	assert.Equal(t, []float32{6, 8, 14, 16}, out.AsFloat32())

	grad, err := pool.Backward(mustTensor(t, []float32{1, 2, 3, 4}, 1, 1, 2, 2))
	require.NoError(t, err)
	want := make([]float32, 16)
	want[5], want[7], want[13], want[15] = 1, 2, 3, 4
	assert.Equal(t, want, grad.AsFloat32())
}

func TestMaxPool2D_TooSmall(t *testing.T) {
	pool, err := NewMaxPool2D(3, 3)
	require.NoError(t, err)
	_, err = pool.Forward(tensor.Zeros(tensor.Shape{1, 1, 2, 2}), Eval)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestActivations(t *testing.T) {
	input := mustTensor(t, []float32{-2, -0.5, 0.5, 2}, 1, 4)

	relu, err := NewReLU().Forward(input, Eval)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0.5, 2}, relu.AsFloat32())

	sig, err := NewSigmoid().Forward(mustTensor(t, []float32{0}, 1, 1), Eval)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, sig.AsFloat32()[0], 1e-6)

	tanh, err := NewTanh().Forward(mustTensor(t, []float32{0}, 1, 1), Eval)
	require.NoError(t, err)
	assert.InDelta(t, 0, tanh.AsFloat32()[0], 1e-6)

	for _, m := range []Module{NewSigmoid(), NewTanh()} {
		checkInputGradient(t, m, mustTensor(t, []float32{-1, -0.25, 0.3, 1.2}, 2, 2))
	}

	r := NewReLU()
	_, err = r.Forward(input, Train)
	require.NoError(t, err)
	grad, err := r.Backward(tensor.Full(tensor.Shape{1, 4}, 1))
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 1, 1}, grad.AsFloat32())
}

func TestDropout(t *testing.T) {
	d, err := NewDropout(0.5, NewRNG(7))
	require.NoError(t, err)
	input := tensor.Full(tensor.Shape{10, 100}, 1)

	out, err := d.Forward(input, Eval)
	require.NoError(t, err)
	assert.Same(t, input, out)

	out, err = d.Forward(input, Train)
	require.NoError(t, err)
	zeros := 0
	for _, v := range out.AsFloat32() {
		if v == 0 {
			zeros++
		} else {
			assert.InDelta(t, 2, v, 1e-6)
		}
	}
	assert.InDelta(t, 500, zeros, 100)

	grad, err := d.Backward(tensor.Full(tensor.Shape{10, 100}, 1))
	require.NoError(t, err)
	assert.Equal(t, out.AsFloat32(), grad.AsFloat32())

	_, err = NewDropout(1, NewRNG(1))
	assert.Error(t, err)
}

func TestFlattenUnflatten(t *testing.T) {
	input := mustTensor(t, sequence(24), 2, 3, 2, 2)

	flat := NewFlatten()
	out, err := flat.Forward(input, Train)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 12}, out.Shape())

	grad, err := flat.Backward(out)
	require.NoError(t, err)
	assert.Equal(t, input.Shape(), grad.Shape())

	un := NewUnflatten(3, 2, 2)
	back, err := un.Forward(out, Train)
	require.NoError(t, err)
	assert.Equal(t, input.Shape(), back.Shape())
	assert.Equal(t, input.AsFloat32(), back.AsFloat32())

	_, err = NewUnflatten(5).Forward(out, Eval)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

// TestQuantize_ShrinksPayload tests that compressor output is smaller than its input.
func TestQuantize_ShrinksPayload(t *testing.T) {
	input := mustTensor(t, []float32{-1, 0, 0.5, 1}, 1, 4)

	tests := []struct {
		mode  string
		dtype tensor.DataType
		bytes int
	}{
		{QuantizeFloat16, tensor.Float16, 8},
		{QuantizeUint8, tensor.Uint8, 4},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			q, err := NewQuantize(tt.mode)
			require.NoError(t, err)
			out, err := q.Forward(input, Train)
			require.NoError(t, err)
			assert.Equal(t, tt.dtype, out.DType())
			assert.Equal(t, tt.bytes, out.ByteSize())
			assert.InDeltaSlice(t, input.AsFloat32(), out.Float32s(), 0.01)

			g := tensor.Full(tensor.Shape{1, 4}, 3)
			grad, err := q.Backward(g)
			require.NoError(t, err)
			assert.Same(t, g, grad)
		})
	}

	_, err := NewQuantize("int4")
	assert.Error(t, err)
}

func TestQuantize_FeedsLinear(t *testing.T) {
	q, err := NewQuantize(QuantizeUint8)
	require.NoError(t, err)
	model := NewSequential(q, NewLinear(4, 2, NewRNG(1)))

	out, err := model.Forward(mustTensor(t, []float32{-1, 0, 0.5, 1}, 1, 4), Eval)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, out.DType())
}

func TestCrossEntropyLoss(t *testing.T) {
	criterion := NewCrossEntropyLoss()

	// Uniform logits: loss = log(C).
	loss, grad, err := criterion.Forward(tensor.Zeros(tensor.Shape{2, 4}), []int{0, 3})
	require.NoError(t, err)
	assert.InDelta(t, 1.3862944, loss, 1e-5)
	g := grad.AsFloat32()
	assert.InDelta(t, (0.25-1)/2, g[0], 1e-6)
	assert.InDelta(t, 0.25/2, g[1], 1e-6)

	var rowSum float32
	for _, v := range g[4:] {
		rowSum += v
	}
	assert.InDelta(t, 0, rowSum, 1e-6)

	_, _, err = criterion.Forward(tensor.Zeros(tensor.Shape{2, 4}), []int{0})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, _, err = criterion.Forward(tensor.Zeros(tensor.Shape{1, 4}), []int{4})
	assert.Error(t, err)
}

func TestMSELoss(t *testing.T) {
	loss, grad, err := NewMSELoss().Forward(
		mustTensor(t, []float32{1, 2, 3, 4}, 2, 2),
		mustTensor(t, []float32{1, 0, 3, 2}, 2, 2),
	)
	require.NoError(t, err)
	assert.InDelta(t, 2, loss, 1e-6)
	assert.Equal(t, []float32{0, 1, 0, 1}, grad.AsFloat32())
}

func TestAccuracy(t *testing.T) {
	acc, err := Accuracy(mustTensor(t, []float32{0.1, 0.9, 0.8, 0.2, 0.3, 0.7}, 3, 2), []int{1, 0, 0})
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, acc, 1e-6)
}
