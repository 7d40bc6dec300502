// Package train runs the classifier and autoencoder training loops, evaluates
// models and keeps the best checkpoint of a run.
//
// Accuracies are percentages in [0, 100]. Evaluate also reports the average
// serialized size of one raw input sample, the baseline every profiled layer
// is compared against.
package train

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/nitishmital/head-network-distillation/internal/config"
	"github.com/nitishmital/head-network-distillation/internal/dataset"
	"github.com/nitishmital/head-network-distillation/internal/nn"
	"github.com/nitishmital/head-network-distillation/internal/optim"
	"github.com/nitishmital/head-network-distillation/internal/profile"
	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// CheckpointExt is the file extension of checkpoints.
const CheckpointExt = ".hnd"

// CheckpointPath returns the checkpoint file of an experiment in dir.
func CheckpointPath(dir, experiment string) string {
	return filepath.Join(dir, experiment+CheckpointExt)
}

// NewOptimizer creates the optimizer named by cfg over params.
func NewOptimizer(cfg config.TrainConfig, params []*nn.Parameter) (optim.Optimizer, error) {
	switch cfg.Optimizer {
	case config.OptimizerSGD:
		return optim.NewSGD(params, optim.SGDConfig{LR: cfg.LR, Momentum: cfg.Momentum, WeightDecay: cfg.WeightDecay}), nil
	case config.OptimizerAdam:
		return optim.NewAdam(params, optim.AdamConfig{LR: cfg.LR}), nil
	default:
		return nil, errors.Errorf("unknown optimizer %q", cfg.Optimizer)
	}
}

// Options configures a Trainer.
type Options struct {
	// CheckpointPath is where the best model is saved. Empty disables saving.
	CheckpointPath string

	// ModelType is the tag stored in checkpoints.
	ModelType string

	// LogInterval is the number of batches between loss log lines (V(1)).
	LogInterval int

	// Progress shows a progress bar on Output.
	Progress bool
	Output   io.Writer
}

// EpochStats summarizes one pass over the training set.
type EpochStats struct {
	Epoch    int
	Loss     float64 // mean per-sample loss
	Accuracy float64 // percent
	Samples  int
}

// Trainer trains a classifier with cross entropy and tracks the best
// validation accuracy.
type Trainer struct {
	model     nn.Module
	optimizer optim.Optimizer
	criterion *nn.CrossEntropyLoss
	opts      Options

	best  float64
	runID string
}

// NewTrainer creates a trainer. The model must not be instrumented yet.
func NewTrainer(model nn.Module, optimizer optim.Optimizer, opts Options) *Trainer {
	if opts.LogInterval <= 0 {
		opts.LogInterval = 50
	}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	return &Trainer{
		model:     model,
		optimizer: optimizer,
		criterion: nn.NewCrossEntropyLoss(),
		opts:      opts,
	}
}

// Best returns the best validation accuracy seen or restored.
func (t *Trainer) Best() float64 {
	return t.best
}

// RunID returns the run id of the restored checkpoint, or "" for a new run.
func (t *Trainer) RunID() string {
	return t.runID
}

// ModelType returns the model type tag, which a restored checkpoint overrides.
func (t *Trainer) ModelType() string {
	return t.opts.ModelType
}

// Resume restores model and optimizer state from the checkpoint and returns
// the first epoch to train. With init set, or when there is no checkpoint, the
// run starts fresh at epoch 1.
//
// Resume must run before the model is instrumented.
func (t *Trainer) Resume(init bool) (int, error) {
	path := t.opts.CheckpointPath
	if init || path == "" {
		return 1, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		klog.Infof("No checkpoint at %s, starting a new run", path)
		return 1, nil
	}

	klog.Infof("Resuming from checkpoint %s", path)
	ckpt, err := nn.LoadCheckpoint(path, t.model, t.optimizer)
	if err != nil {
		return 0, err
	}
	if ckpt.ModelType != "" {
		t.opts.ModelType = ckpt.ModelType
	}
	t.best = ckpt.Accuracy
	t.runID = ckpt.RunID
	klog.V(1).Infof("Restored run %s at epoch %d (best accuracy %.2f%%)", ckpt.RunID, ckpt.Epoch, ckpt.Accuracy)
	return ckpt.Epoch + 1, nil
}

// TrainEpoch runs one pass over loader, updating the model after every batch.
// The loader is reset first.
func (t *Trainer) TrainEpoch(loader *dataset.Loader, epoch int) (EpochStats, error) {
	klog.Infof("Epoch: %d", epoch)
	loader.Reset()
	bar := newBar(loader.NumBatches(), "train", t.opts.Progress, t.opts.Output)
	defer func() { _ = bar.Finish() }()

	stats := EpochStats{Epoch: epoch}
	var totalLoss, correct float64
	batchIdx := 0
	for batch, ok := loader.Next(); ok; batch, ok = loader.Next() {
		t.optimizer.ZeroGrad()
		logits, err := t.model.Forward(batch.Inputs, nn.Train)
		if err != nil {
			return stats, errors.WithMessagef(err, "epoch %d batch %d forward", epoch, batchIdx)
		}
		loss, grad, err := t.criterion.Forward(logits, batch.Labels)
		if err != nil {
			return stats, errors.WithMessagef(err, "epoch %d batch %d loss", epoch, batchIdx)
		}
		if _, err := t.model.Backward(grad); err != nil {
			return stats, errors.WithMessagef(err, "epoch %d batch %d backward", epoch, batchIdx)
		}
		t.optimizer.Step()

		acc, err := nn.Accuracy(logits, batch.Labels)
		if err != nil {
			return stats, err
		}
		n := batch.Size()
		totalLoss += float64(loss) * float64(n)
		correct += float64(acc) * float64(n)
		stats.Samples += n

		if batchIdx > 0 && batchIdx%t.opts.LogInterval == 0 {
			klog.V(1).Infof("[%d/%d (%.0f%%)]\tLoss: %.6f", batchIdx*n, loader.Len(),
				100*float64(batchIdx)/float64(loader.NumBatches()), loss)
		}
		_ = bar.Add(1)
		batchIdx++
	}
	if err := loader.Err(); err != nil {
		return stats, err
	}
	if stats.Samples == 0 {
		return stats, errors.Wrap(dataset.ErrEmpty, "training set")
	}

	stats.Loss = totalLoss / float64(stats.Samples)
	stats.Accuracy = 100 * correct / float64(stats.Samples)
	klog.Infof("Epoch %d: loss %.4f, train accuracy %.2f%%", epoch, stats.Loss, stats.Accuracy)
	return stats, nil
}

// Validate evaluates the model on loader and saves a checkpoint when the
// accuracy beats the best so far. It returns the accuracy and whether it
// improved.
func (t *Trainer) Validate(loader *dataset.Loader, epoch int) (float64, bool, error) {
	result, err := Evaluate(t.model, loader, "Validation", t.opts.Progress, t.opts.Output)
	if err != nil {
		return 0, false, err
	}
	if result.Accuracy <= t.best {
		return result.Accuracy, false, nil
	}

	t.best = result.Accuracy
	if t.opts.CheckpointPath != "" {
		klog.Infof("Saving checkpoint %s (accuracy %.2f%%)", t.opts.CheckpointPath, result.Accuracy)
		ckpt := &nn.Checkpoint{
			Model:     t.model,
			Optimizer: t.optimizer,
			ModelType: t.opts.ModelType,
			Accuracy:  result.Accuracy,
			Epoch:     epoch,
			RunID:     t.runID,
		}
		if err := ckpt.Save(t.opts.CheckpointPath); err != nil {
			return 0, false, err
		}
		t.runID = ckpt.RunID
	}
	return result.Accuracy, true, nil
}

// Fit trains for epochs epochs starting at start, validating after each one.
func (t *Trainer) Fit(train, valid *dataset.Loader, start, epochs int) error {
	for epoch := start; epoch < start+epochs; epoch++ {
		if _, err := t.TrainEpoch(train, epoch); err != nil {
			return err
		}
		if _, _, err := t.Validate(valid, epoch); err != nil {
			return err
		}
	}
	return nil
}

// Result is the outcome of an evaluation pass.
type Result struct {
	Correct  int
	Total    int
	Accuracy float64 // percent

	// InputBandwidth is the mean serialized size in bytes of one input
	// sample, measured before the model sees it.
	InputBandwidth float64
}

// Evaluate runs the model in evaluation mode over one full pass of loader.
// name labels the log line ("Test", "Validation").
func Evaluate(model nn.Module, loader *dataset.Loader, name string, progress bool, out io.Writer) (*Result, error) {
	loader.Reset()
	if out == nil {
		out = os.Stderr
	}
	bar := newBar(loader.NumBatches(), name, progress, out)
	defer func() { _ = bar.Finish() }()

	var r Result
	var bytes int
	for batch, ok := loader.Next(); ok; batch, ok = loader.Next() {
		bytes += profile.SerializedSize(batch.Inputs)
		logits, err := model.Forward(batch.Inputs, nn.Eval)
		if err != nil {
			return nil, errors.WithMessagef(err, "%s forward", name)
		}
		pred, err := tensor.ArgmaxRows(logits)
		if err != nil {
			return nil, err
		}
		for i, p := range pred {
			if p == batch.Labels[i] {
				r.Correct++
			}
		}
		r.Total += batch.Size()
		_ = bar.Add(1)
	}
	if err := loader.Err(); err != nil {
		return nil, err
	}
	if r.Total == 0 {
		return nil, errors.Wrapf(dataset.ErrEmpty, "%s set", name)
	}

	r.Accuracy = 100 * float64(r.Correct) / float64(r.Total)
	r.InputBandwidth = float64(bytes) / float64(r.Total)
	klog.Infof("%s set: Accuracy: %d/%d (%.0f%%)", name, r.Correct, r.Total, r.Accuracy)
	return &r, nil
}

func newBar(steps int, description string, visible bool, out io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(steps,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetVisibility(visible),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionClearOnFinish(),
	)
}
