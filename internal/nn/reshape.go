package nn

import (
	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// Flatten reshapes [batch, d1, d2, ...] to [batch, d1*d2*...].
// The output is a view of the input buffer.
type Flatten struct {
	inputShape tensor.Shape
}

// NewFlatten creates a Flatten layer.
func NewFlatten() *Flatten {
	return &Flatten{}
}

// Name returns "Flatten".
func (f *Flatten) Name() string {
	return "Flatten"
}

// Forward flattens all but the batch dimension.
func (f *Flatten) Forward(input *tensor.Tensor, _ Mode) (*tensor.Tensor, error) {
	shape := input.Shape()
	if len(shape) < 1 {
		return nil, shapeErrorf("Flatten", "scalar input")
	}
	f.inputShape = shape.Clone()
	return input.Reshape(tensor.Shape{shape.Batch(), shape.PerSample().NumElements()})
}

// Backward restores the input shape.
func (f *Flatten) Backward(gradOutput *tensor.Tensor) (*tensor.Tensor, error) {
	if f.inputShape == nil {
		return nil, ErrNoForwardCache
	}
	grad, err := gradOutput.Reshape(f.inputShape)
	if err != nil {
		return nil, shapeErrorf("Flatten", "%v", err)
	}
	return grad, nil
}

// Parameters returns nil.
func (f *Flatten) Parameters() []*Parameter {
	return nil
}

// Unflatten reshapes [batch, n] to [batch, shape...]. It is the inverse of
// Flatten and is used by decoders that rebuild image-shaped output.
type Unflatten struct {
	shape      tensor.Shape
	inputShape tensor.Shape
}

// NewUnflatten creates an Unflatten layer producing per-sample shape.
func NewUnflatten(shape ...int) *Unflatten {
	return &Unflatten{shape: tensor.Shape(shape).Clone()}
}

// Name returns "Unflatten".
func (u *Unflatten) Name() string {
	return "Unflatten"
}

// Forward reshapes every sample to the configured shape.
func (u *Unflatten) Forward(input *tensor.Tensor, _ Mode) (*tensor.Tensor, error) {
	shape := input.Shape()
	if len(shape) != 2 || shape[1] != u.shape.NumElements() {
		return nil, shapeErrorf("Unflatten", "cannot view %v as [batch %v]", shape, u.shape)
	}
	u.inputShape = shape.Clone()
	return input.Reshape(append(tensor.Shape{shape[0]}, u.shape...))
}

// Backward flattens the gradient back to [batch, n].
func (u *Unflatten) Backward(gradOutput *tensor.Tensor) (*tensor.Tensor, error) {
	if u.inputShape == nil {
		return nil, ErrNoForwardCache
	}
	grad, err := gradOutput.Reshape(u.inputShape)
	if err != nil {
		return nil, shapeErrorf("Unflatten", "%v", err)
	}
	return grad, nil
}

// Parameters returns nil.
func (u *Unflatten) Parameters() []*Parameter {
	return nil
}
