// Copyright 2026 The Head Network Distillation Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the model tree and the layers used by the classifiers
// and the autoencoder.
//
// # Overview
//
// This package contains:
//   - Tree: Module, Container, Child, Sequential
//   - Layers: Linear, Conv2D, MaxPool2D, Dropout, Flatten, Unflatten
//   - Activations: ReLU, Sigmoid, Tanh
//   - Compressors: Quantize (float16 or uint8)
//   - Loss functions: CrossEntropyLoss, MSELoss
//   - Persistence: StateDict, LoadStateDict, Checkpoint
//
// # Basic Usage
//
//	rng := nn.NewRNG(1)
//	model := nn.NewSequential(
//	    nn.NewFlatten(),
//	    nn.NewLinear(784, 128, rng),
//	    nn.NewReLU(),
//	    nn.NewLinear(128, 10, rng),
//	)
//
//	logits, err := model.Forward(input, nn.Train)
//	loss, grad, err := nn.NewCrossEntropyLoss().Forward(logits, labels)
//	_, err = model.Backward(grad)
//
// # Modes
//
// Forward takes an explicit Mode. Eval disables dropout and keeps no
// activations; Train caches what Backward needs. Backward after an Eval
// forward returns ErrNoForwardCache.
//
// # Named children
//
// Containers keep their children in declaration order under unique names.
// Dotted paths built from those names key the state dict and the profile:
//
//	model, err := nn.NewNamedSequential(
//	    nn.Child{Name: "features", Module: features},
//	    nn.Child{Name: "classifier", Module: head},
//	)
//	sd := nn.StateDict(model) // "features.0.weight", "classifier.weight", ...
//
// # Checkpoints
//
//	ckpt := &nn.Checkpoint{Model: model, Optimizer: opt, ModelType: "cnn", Accuracy: 91.5, Epoch: 7}
//	err := ckpt.Save("ckpt/mnist-cnn.hnd")
//
//	restored, err := nn.LoadCheckpoint("ckpt/mnist-cnn.hnd", model, opt)
package nn
