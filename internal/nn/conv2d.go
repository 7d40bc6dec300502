package nn

import (
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/nitishmital/head-network-distillation/internal/parallel"
	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// Conv2D is a 2D convolution layer with square kernels.
//
// Input shape:  [batch, in_channels, height, width]
// Output shape: [batch, out_channels, out_height, out_width]
//
//	out_height = (height + 2*padding - kernel) / stride + 1
//	out_width  = (width  + 2*padding - kernel) / stride + 1
//
// The forward pass uses im2col: every receptive field becomes a column and the
// convolution becomes one matrix multiplication per sample. Backward reuses the
// cached columns for the weight gradient and scatters the input gradient back
// with col2im.
type Conv2D struct {
	inChannels  int
	outChannels int
	kernel      int
	stride      int
	padding     int
	weight      *Parameter // [out_channels, in_channels, kernel, kernel]
	bias        *Parameter // [out_channels]

	inputShape tensor.Shape
	cols       [][]float32 // per sample [in_channels*kernel*kernel, out_h*out_w]
}

// NewConv2D creates a convolution layer with He-initialized weights and zero bias.
func NewConv2D(inChannels, outChannels, kernel, stride, padding int, rng *rand.Rand) (*Conv2D, error) {
	if inChannels <= 0 || outChannels <= 0 || kernel <= 0 || stride <= 0 || padding < 0 {
		return nil, errors.Errorf("conv2d: invalid configuration in=%d out=%d kernel=%d stride=%d padding=%d",
			inChannels, outChannels, kernel, stride, padding)
	}
	fanIn := inChannels * kernel * kernel
	return &Conv2D{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernel:      kernel,
		stride:      stride,
		padding:     padding,
		weight:      NewParameter("weight", He(fanIn, tensor.Shape{outChannels, inChannels, kernel, kernel}, rng)),
		bias:        NewParameter("bias", tensor.Zeros(tensor.Shape{outChannels})),
	}, nil
}

// Name returns "Conv2D".
func (c *Conv2D) Name() string {
	return "Conv2D"
}

// OutputSize returns the spatial output size for an input of height x width.
func (c *Conv2D) OutputSize(height, width int) (int, int) {
	return (height+2*c.padding-c.kernel)/c.stride + 1, (width+2*c.padding-c.kernel)/c.stride + 1
}

// Forward applies the convolution.
func (c *Conv2D) Forward(input *tensor.Tensor, mode Mode) (*tensor.Tensor, error) {
	shape := input.Shape()
	if len(shape) != 4 {
		return nil, shapeErrorf("Conv2D", "input must be 4D [N,C,H,W], got %v", shape)
	}
	n, cin, h, w := shape[0], shape[1], shape[2], shape[3]
	if cin != c.inChannels {
		return nil, shapeErrorf("Conv2D", "input channels %d != layer channels %d", cin, c.inChannels)
	}
	hOut, wOut := c.OutputSize(h, w)
	if hOut <= 0 || wOut <= 0 {
		return nil, shapeErrorf("Conv2D", "input %dx%d too small for kernel %d (padding %d)", h, w, c.kernel, c.padding)
	}

	output := tensor.Zeros(tensor.Shape{n, c.outChannels, hOut, wOut})
	out := output.AsFloat32()
	in := input.Float32s()
	weights := c.weight.Tensor().AsFloat32()
	bias := c.bias.Tensor().AsFloat32()

	colRows := cin * c.kernel * c.kernel
	spatial := hOut * wOut
	cols := make([][]float32, n)
	for b := range n {
		col := make([]float32, colRows*spatial)
		c.im2col(col, in[b*cin*h*w:(b+1)*cin*h*w], h, w, hOut, wOut)
		dst := out[b*c.outChannels*spatial : (b+1)*c.outChannels*spatial]
		tensor.GEMM(dst, weights, col, c.outChannels, colRows, spatial, false, false)
		for oc := range c.outChannels {
			plane := dst[oc*spatial : (oc+1)*spatial]
			for i := range plane {
				plane[i] += bias[oc]
			}
		}
		cols[b] = col
	}

	c.cols, c.inputShape = nil, nil
	if mode == Train {
		c.cols, c.inputShape = cols, shape.Clone()
	}
	return output, nil
}

// Backward accumulates weight and bias gradients and returns the input gradient.
func (c *Conv2D) Backward(gradOutput *tensor.Tensor) (*tensor.Tensor, error) {
	if c.cols == nil {
		return nil, ErrNoForwardCache
	}
	n, cin, h, w := c.inputShape[0], c.inputShape[1], c.inputShape[2], c.inputShape[3]
	hOut, wOut := c.OutputSize(h, w)
	if !gradOutput.Shape().Equal(tensor.Shape{n, c.outChannels, hOut, wOut}) {
		return nil, shapeErrorf("Conv2D", "gradient shape %v does not match output [%d %d %d %d]",
			gradOutput.Shape(), n, c.outChannels, hOut, wOut)
	}

	gy := gradOutput.Float32s()
	weights := c.weight.Tensor().AsFloat32()
	colRows := cin * c.kernel * c.kernel
	spatial := hOut * wOut

	gradW := make([]float32, c.outChannels*colRows)
	gradB := make([]float32, c.outChannels)
	gradInput := tensor.Zeros(c.inputShape)
	gx := gradInput.AsFloat32()
	dcol := make([]float32, colRows*spatial)

	for b := range n {
		g := gy[b*c.outChannels*spatial : (b+1)*c.outChannels*spatial]
		tensor.GEMM(gradW, g, c.cols[b], c.outChannels, spatial, colRows, false, true)
		for oc := range c.outChannels {
			for _, v := range g[oc*spatial : (oc+1)*spatial] {
				gradB[oc] += v
			}
		}

		clear(dcol)
		tensor.GEMM(dcol, weights, g, colRows, c.outChannels, spatial, true, false)
		c.col2im(gx[b*cin*h*w:(b+1)*cin*h*w], dcol, h, w, hOut, wOut)
	}

	c.weight.AccumulateGrad(gradW)
	c.bias.AccumulateGrad(gradB)
	return gradInput, nil
}

// Parameters returns [weight, bias].
func (c *Conv2D) Parameters() []*Parameter {
	return []*Parameter{c.weight, c.bias}
}

// Weight returns the kernel parameter.
func (c *Conv2D) Weight() *Parameter {
	return c.weight
}

// Bias returns the bias parameter.
func (c *Conv2D) Bias() *Parameter {
	return c.bias
}

// im2col unrolls one sample [C, H, W] into col [C*K*K, out_h*out_w].
func (c *Conv2D) im2col(col, img []float32, h, w, hOut, wOut int) {
	k := c.kernel
	spatial := hOut * wOut
	parallel.For(c.inChannels*k*k, func(row int) {
		ch, kh, kw := row/(k*k), (row/k)%k, row%k
		dst := col[row*spatial : (row+1)*spatial]
		for oh := range hOut {
			ih := oh*c.stride - c.padding + kh
			if ih < 0 || ih >= h {
				continue
			}
			for ow := range wOut {
				iw := ow*c.stride - c.padding + kw
				if iw < 0 || iw >= w {
					continue
				}
				dst[oh*wOut+ow] = img[(ch*h+ih)*w+iw]
			}
		}
	}, kernelConfig)
}

// col2im adds col [C*K*K, out_h*out_w] back into one sample gradient [C, H, W].
func (c *Conv2D) col2im(img, col []float32, h, w, hOut, wOut int) {
	k := c.kernel
	spatial := hOut * wOut
	// Rows of one channel overlap in img, so channels are the unit of parallelism.
	parallel.For(c.inChannels, func(ch int) {
		for kh := range k {
			for kw := range k {
				src := col[((ch*k+kh)*k+kw)*spatial:]
				for oh := range hOut {
					ih := oh*c.stride - c.padding + kh
					if ih < 0 || ih >= h {
						continue
					}
					for ow := range wOut {
						iw := ow*c.stride - c.padding + kw
						if iw < 0 || iw >= w {
							continue
						}
						img[(ch*h+ih)*w+iw] += src[oh*wOut+ow]
					}
				}
			}
		}
	}, kernelConfig)
}

// kernelConfig is the parallelism used by layer kernels.
var kernelConfig = parallel.DefaultConfig()
