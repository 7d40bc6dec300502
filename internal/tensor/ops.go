package tensor

import (
	"github.com/pkg/errors"

	"github.com/nitishmital/head-network-distillation/internal/parallel"
)

// kernelConfig is the parallelism used by the GEMM kernels.
var kernelConfig = parallel.DefaultConfig()

// MatMul computes a @ b for a [m, k] and b [k, n].
func MatMul(a, b *Tensor) (*Tensor, error) {
	m, k, err := matrixDims(a, "a")
	if err != nil {
		return nil, err
	}
	k2, n, err := matrixDims(b, "b")
	if err != nil {
		return nil, err
	}
	if k != k2 {
		return nil, errors.Errorf("matmul: inner dimensions differ: %v @ %v", a.shape, b.shape)
	}
	out := Zeros(Shape{m, n})
	GEMM(out.AsFloat32(), a.Float32s(), b.Float32s(), m, k, n, false, false)
	return out, nil
}

// MatMulNT computes a @ b^T for a [m, k] and b [n, k].
func MatMulNT(a, b *Tensor) (*Tensor, error) {
	m, k, err := matrixDims(a, "a")
	if err != nil {
		return nil, err
	}
	n, k2, err := matrixDims(b, "b")
	if err != nil {
		return nil, err
	}
	if k != k2 {
		return nil, errors.Errorf("matmul: inner dimensions differ: %v @ %v^T", a.shape, b.shape)
	}
	out := Zeros(Shape{m, n})
	GEMM(out.AsFloat32(), a.Float32s(), b.Float32s(), m, k, n, false, true)
	return out, nil
}

// MatMulTN computes a^T @ b for a [k, m] and b [k, n].
func MatMulTN(a, b *Tensor) (*Tensor, error) {
	k, m, err := matrixDims(a, "a")
	if err != nil {
		return nil, err
	}
	k2, n, err := matrixDims(b, "b")
	if err != nil {
		return nil, err
	}
	if k != k2 {
		return nil, errors.Errorf("matmul: inner dimensions differ: %v^T @ %v", a.shape, b.shape)
	}
	out := Zeros(Shape{m, n})
	GEMM(out.AsFloat32(), a.Float32s(), b.Float32s(), m, k, n, true, false)
	return out, nil
}

// GEMM accumulates op(a) @ op(b) into dst ([m, n], row-major).
//
// op(a) is [m, k]; when transA is set a is stored as [k, m]. op(b) is [k, n];
// when transB is set b is stored as [n, k]. Rows of dst are computed in parallel.
func GEMM(dst, a, b []float32, m, k, n int, transA, transB bool) {
	parallel.For(m, func(i int) {
		row := dst[i*n : (i+1)*n]
		for p := range k {
			var av float32
			if transA {
				av = a[p*m+i]
			} else {
				av = a[i*k+p]
			}
			if av == 0 {
				continue
			}
			if transB {
				for j := range n {
					row[j] += av * b[j*k+p]
				}
			} else {
				bRow := b[p*n : (p+1)*n]
				for j, bv := range bRow {
					row[j] += av * bv
				}
			}
		}
	}, kernelConfig)
}

// ArgmaxRows returns the column index of the maximum of every row of a 2D tensor.
func ArgmaxRows(t *Tensor) ([]int, error) {
	rows, cols, err := matrixDims(t, "argmax")
	if err != nil {
		return nil, err
	}
	if cols == 0 {
		return nil, errors.Errorf("argmax: no columns in shape %v", t.shape)
	}
	data := t.Float32s()
	out := make([]int, rows)
	for i := range rows {
		best := 0
		for j := 1; j < cols; j++ {
			if data[i*cols+j] > data[i*cols+best] {
				best = j
			}
		}
		out[i] = best
	}
	return out, nil
}

func matrixDims(t *Tensor, name string) (rows, cols int, err error) {
	if len(t.shape) != 2 {
		return 0, 0, errors.Errorf("%s: expected 2D tensor, got shape %v", name, t.shape)
	}
	return t.shape[0], t.shape[1], nil
}
