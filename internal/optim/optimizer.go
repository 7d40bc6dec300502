// Package optim implements optimization algorithms for training the classifier
// and the autoencoder.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum and weight decay
//   - Adam: Adaptive Moment Estimation
//
// Optimizers read the gradients that Backward accumulated into each
// nn.Parameter.
//
// Example usage:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.1, Momentum: 0.9})
//
//	for batch := range batches {
//	    optimizer.ZeroGrad()
//	    logits, _ := model.Forward(batch.Inputs, nn.Train)
//	    _, grad, _ := criterion.Forward(logits, batch.Labels)
//	    _, _ = model.Backward(grad)
//	    optimizer.Step()
//	}
package optim

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/nitishmital/head-network-distillation/internal/nn"
	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
//
// All optimizers must implement:
//   - Step: Apply gradient updates to parameters
//   - ZeroGrad: Clear gradients before next iteration
//   - LR / SetLR: Learning rate access for monitoring and scheduling
//   - StateDict / LoadStateDict / Kind: checkpointing (nn.OptimizerState)
type Optimizer interface {
	nn.OptimizerState

	// Step updates every parameter that has an accumulated gradient.
	Step()

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// SetLR updates the learning rate.
	SetLR(lr float32)
}

// zeroGrad clears the gradient of every parameter.
func zeroGrad(params []*nn.Parameter) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// stateKey formats the state dict key of buffer kind for parameter i.
func stateKey(kind string, i int) string {
	return fmt.Sprintf("%s.%d", kind, i)
}

// loadBuffers restores per-parameter buffers of one kind from stateDict.
// Parameters without an entry start from zero on their next step.
func loadBuffers(params []*nn.Parameter, kind string, stateDict map[string]*tensor.Tensor) (map[*nn.Parameter]*tensor.Tensor, error) {
	buffers := make(map[*nn.Parameter]*tensor.Tensor)
	for i, p := range params {
		raw, ok := stateDict[stateKey(kind, i)]
		if !ok {
			continue
		}
		if !raw.Shape().Equal(p.Tensor().Shape()) {
			return nil, errors.Errorf("%s shape mismatch for parameter %d: expected %v, got %v",
				kind, i, p.Tensor().Shape(), raw.Shape())
		}
		buf := tensor.Zeros(raw.Shape())
		copy(buf.AsFloat32(), raw.Float32s())
		buffers[p] = buf
	}
	return buffers, nil
}

// exportBuffers is the inverse of loadBuffers.
func exportBuffers(params []*nn.Parameter, kind string, buffers map[*nn.Parameter]*tensor.Tensor, into map[string]*tensor.Tensor) {
	for i, p := range params {
		if buf, ok := buffers[p]; ok {
			into[stateKey(kind, i)] = buf
		}
	}
}
