package tensor

import (
	"math"

	"github.com/x448/float16"
)

// ToFloat16 encodes t as IEEE 754 half precision.
func ToFloat16(t *Tensor) (*Tensor, error) {
	out, err := New(t.shape, Float16)
	if err != nil {
		return nil, err
	}
	dst := out.AsFloat16()
	for i, v := range t.Float32s() {
		dst[i] = float16.Fromfloat32(v)
	}
	return out, nil
}

// QuantizeUint8 encodes t with per-tensor affine uint8 quantization over the
// [min, max] range of its values. A constant tensor gets Scale 0.
func QuantizeUint8(t *Tensor) (*Tensor, error) {
	out, err := New(t.shape, Uint8)
	if err != nil {
		return nil, err
	}
	src := t.Float32s()
	if len(src) == 0 {
		out.quant = &Quantization{}
		return out, nil
	}

	lo, hi := src[0], src[0]
	for _, v := range src[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	q := &Quantization{Min: lo}
	if hi > lo {
		q.Scale = (hi - lo) / 255
	}

	dst := out.AsUint8()
	if q.Scale > 0 {
		for i, v := range src {
			level := math.Round(float64((v - lo) / q.Scale))
			dst[i] = uint8(min(max(level, 0), 255))
		}
	}
	out.quant = q
	return out, nil
}
