// Copyright 2026 The Head Network Distillation Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the optimizers used to train classifiers and
// autoencoders.
//
// # Overview
//
//   - SGD: stochastic gradient descent with momentum and weight decay
//   - Adam: adaptive moment estimation with bias correction
//
// Optimizers read the gradients Backward accumulated into each parameter.
//
// # Basic Usage
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{
//	    LR:          0.1,
//	    Momentum:    0.9,
//	    WeightDecay: 5e-4,
//	})
//
//	for batch, ok := loader.Next(); ok; batch, ok = loader.Next() {
//	    optimizer.ZeroGrad()
//	    logits, _ := model.Forward(batch.Inputs, nn.Train)
//	    _, grad, _ := criterion.Forward(logits, batch.Labels)
//	    _, _ = model.Backward(grad)
//	    optimizer.Step()
//	}
//
// # Checkpointing
//
// Every optimizer implements nn.OptimizerState, so momentum buffers and Adam
// moments travel with nn.Checkpoint.
package optim
