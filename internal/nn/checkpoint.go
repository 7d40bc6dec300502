package nn

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nitishmital/head-network-distillation/internal/serialization"
	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

const optimizerPrefix = "optimizer."

// OptimizerState represents an optimizer that can save/load its state.
//
// Checkpoints use it to serialize optimizer state without importing the optim
// package. Optimizers from optim implement this interface.
type OptimizerState interface {
	// StateDict returns the optimizer state for serialization.
	StateDict() map[string]*tensor.Tensor

	// LoadStateDict loads optimizer state from serialization.
	LoadStateDict(stateDict map[string]*tensor.Tensor) error

	// LR returns the current learning rate.
	LR() float32

	// Kind returns the optimizer type ("SGD", "Adam").
	Kind() string
}

// Checkpoint represents a training state snapshot.
//
// A checkpoint includes:
//   - Model parameters, keyed by dotted tree path
//   - Optimizer state (momentum buffers, Adam moments), when Optimizer is set
//   - The model type tag, best accuracy, loss and epoch
//   - A run id that survives resumption
//
// Example:
//
//	ckpt := &nn.Checkpoint{
//	    Model:     model,
//	    Optimizer: optimizer,
//	    ModelType: "cnn",
//	    Accuracy:  0.92,
//	    Epoch:     10,
//	}
//	err := ckpt.Save("checkpoints/cnn.hnd")
//
// To resume training:
//
//	ckpt, err := nn.LoadCheckpoint("checkpoints/cnn.hnd", model, optimizer)
//	startEpoch := ckpt.Epoch + 1
type Checkpoint struct {
	Model     Module
	Optimizer OptimizerState // may be nil
	ModelType string
	Accuracy  float64
	Loss      float64
	Epoch     int
	RunID     string         // assigned on first save when empty
	Metadata  map[string]any // additional training metadata
	CreatedAt time.Time
}

// Save writes the checkpoint to path, creating parent directories.
func (c *Checkpoint) Save(path string) error {
	if c.Model == nil {
		return errors.New("checkpoint: nil model")
	}
	if c.RunID == "" {
		c.RunID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	combined := StateDict(c.Model)
	meta := &serialization.CheckpointMeta{
		IsCheckpoint: true,
		RunID:        c.RunID,
		Epoch:        c.Epoch,
		Accuracy:     c.Accuracy,
		Loss:         c.Loss,
		TrainingMeta: c.Metadata,
	}
	if c.Optimizer != nil {
		for name, t := range c.Optimizer.StateDict() {
			combined[optimizerPrefix+name] = t
		}
		meta.OptimizerType = c.Optimizer.Kind()
		meta.OptimizerConfig = map[string]any{"lr": c.Optimizer.LR()}
	}

	header := serialization.Header{
		ModelType:      c.ModelType,
		CreatedAt:      c.CreatedAt,
		CheckpointMeta: meta,
	}
	if err := serialization.WriteFile(path, combined, header); err != nil {
		return errors.WithMessagef(err, "save checkpoint %s", path)
	}
	return nil
}

// LoadCheckpoint restores model (and optimizer, when non-nil) from path.
//
// The model must be built with the same architecture as when the checkpoint
// was saved, and must not be instrumented yet: loading happens before any
// wrapping pass. Optimizer entries are ignored when optimizer is nil.
func LoadCheckpoint(path string, model Module, optimizer OptimizerState) (*Checkpoint, error) {
	stateDict, header, err := serialization.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "load checkpoint %s", path)
	}
	meta := header.CheckpointMeta
	if meta == nil || !meta.IsCheckpoint {
		return nil, errors.Wrapf(ErrNotCheckpoint, "%s", path)
	}

	modelState := make(map[string]*tensor.Tensor)
	optimizerState := make(map[string]*tensor.Tensor)
	for name, t := range stateDict {
		if rest, ok := strings.CutPrefix(name, optimizerPrefix); ok {
			optimizerState[rest] = t
		} else {
			modelState[name] = t
		}
	}

	if err := LoadStateDict(model, modelState); err != nil {
		return nil, errors.WithMessage(err, "failed to load model state")
	}
	if optimizer != nil {
		if meta.OptimizerType != "" && meta.OptimizerType != optimizer.Kind() {
			return nil, errors.Errorf("checkpoint holds %s state, optimizer is %s", meta.OptimizerType, optimizer.Kind())
		}
		if err := optimizer.LoadStateDict(optimizerState); err != nil {
			return nil, errors.WithMessage(err, "failed to load optimizer state")
		}
	}

	return &Checkpoint{
		Model:     model,
		Optimizer: optimizer,
		ModelType: header.ModelType,
		Accuracy:  meta.Accuracy,
		Loss:      meta.Loss,
		Epoch:     meta.Epoch,
		RunID:     meta.RunID,
		Metadata:  meta.TrainingMeta,
		CreatedAt: header.CreatedAt,
	}, nil
}
