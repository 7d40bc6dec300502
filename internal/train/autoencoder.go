package train

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/nitishmital/head-network-distillation/internal/config"
	"github.com/nitishmital/head-network-distillation/internal/dataset"
	"github.com/nitishmital/head-network-distillation/internal/models"
	"github.com/nitishmital/head-network-distillation/internal/nn"
	"github.com/nitishmital/head-network-distillation/internal/optim"
)

// AutoencoderModelType is the model type tag of autoencoder checkpoints.
const AutoencoderModelType = "autoencoder"

// TrainAutoencoderEpoch runs one reconstruction pass over loader, minimizing
// the mean squared error between inputs and reconstructions. It returns the
// mean per-sample loss.
func TrainAutoencoderEpoch(ae nn.Module, optimizer optim.Optimizer, loader *dataset.Loader, epoch, logInterval int) (float64, error) {
	if logInterval <= 0 {
		logInterval = 50
	}
	criterion := nn.NewMSELoss()
	loader.Reset()

	var total float64
	samples := 0
	batchIdx := 0
	for batch, ok := loader.Next(); ok; batch, ok = loader.Next() {
		optimizer.ZeroGrad()
		out, err := ae.Forward(batch.Inputs, nn.Train)
		if err != nil {
			return 0, errors.WithMessagef(err, "epoch %d batch %d forward", epoch, batchIdx)
		}
		loss, grad, err := criterion.Forward(out, batch.Inputs)
		if err != nil {
			return 0, err
		}
		if _, err := ae.Backward(grad); err != nil {
			return 0, errors.WithMessagef(err, "epoch %d batch %d backward", epoch, batchIdx)
		}
		optimizer.Step()

		total += float64(loss) * float64(batch.Size())
		samples += batch.Size()
		if batchIdx > 0 && batchIdx%logInterval == 0 {
			klog.V(1).Infof("[%d/%d]\tReconstruction loss: %.6f", samples, loader.Len(), loss)
		}
		batchIdx++
	}
	if err := loader.Err(); err != nil {
		return 0, err
	}
	if samples == 0 {
		return 0, errors.Wrap(dataset.ErrEmpty, "training set")
	}
	mean := total / float64(samples)
	klog.Infof("Epoch %d: reconstruction loss %.6f", epoch, mean)
	return mean, nil
}

// EvaluateAutoencoder returns the mean reconstruction loss over loader.
func EvaluateAutoencoder(ae nn.Module, loader *dataset.Loader) (float64, error) {
	criterion := nn.NewMSELoss()
	loader.Reset()

	var total float64
	samples := 0
	for batch, ok := loader.Next(); ok; batch, ok = loader.Next() {
		out, err := ae.Forward(batch.Inputs, nn.Eval)
		if err != nil {
			return 0, err
		}
		loss, _, err := criterion.Forward(out, batch.Inputs)
		if err != nil {
			return 0, err
		}
		total += float64(loss) * float64(batch.Size())
		samples += batch.Size()
	}
	if err := loader.Err(); err != nil {
		return 0, err
	}
	if samples == 0 {
		return 0, errors.Wrap(dataset.ErrEmpty, "evaluation set")
	}
	return total / float64(samples), nil
}

// LoadAutoencoder builds the autoencoder of the experiment in configPath and
// restores its weights from the experiment checkpoint in ckptDir.
func LoadAutoencoder(configPath, ckptDir string) (*models.Autoencoder, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Autoencoder == nil {
		return nil, errors.Errorf("config %s has no autoencoder section", configPath)
	}
	ae, err := models.NewAutoencoder(cfg.Shape(), cfg.Autoencoder, nn.NewRNG(cfg.Train.Seed))
	if err != nil {
		return nil, err
	}
	path := CheckpointPath(ckptDir, cfg.ExperimentName)
	ckpt, err := nn.LoadCheckpoint(path, ae, nil)
	if err != nil {
		return nil, errors.WithMessage(err, "load autoencoder")
	}
	if ckpt.ModelType != AutoencoderModelType {
		return nil, errors.Errorf("checkpoint %s holds a %q model, not an autoencoder", path, ckpt.ModelType)
	}
	klog.Infof("Loaded autoencoder %s (epoch %d, loss %.6f)", cfg.ExperimentName, ckpt.Epoch, ckpt.Loss)
	return ae, nil
}

// ApplyAutoencoder replaces the inputs of ds by their reconstructions.
func ApplyAutoencoder(ae *models.Autoencoder, ds *dataset.Dataset, batchSize int) (*dataset.Dataset, error) {
	if !ae.InputShape().Equal(ds.Shape()) {
		return nil, errors.Errorf("autoencoder expects samples of shape %v, data has %v", ae.InputShape(), ds.Shape())
	}
	return ds.MapInputs(batchSize, ae.Reconstruct)
}

// AutoencoderTrainer trains an autoencoder and keeps the checkpoint with the
// lowest validation reconstruction loss.
type AutoencoderTrainer struct {
	ae          nn.Module
	optimizer   optim.Optimizer
	path        string
	logInterval int

	best  float64
	runID string
}

// NewAutoencoderTrainer creates a trainer saving to checkpointPath (empty
// disables saving).
func NewAutoencoderTrainer(ae nn.Module, optimizer optim.Optimizer, checkpointPath string, logInterval int) *AutoencoderTrainer {
	return &AutoencoderTrainer{
		ae:          ae,
		optimizer:   optimizer,
		path:        checkpointPath,
		logInterval: logInterval,
		best:        math.Inf(1),
	}
}

// Best returns the lowest validation loss seen or restored.
func (t *AutoencoderTrainer) Best() float64 {
	return t.best
}

// Resume restores the checkpoint, if any, and returns the first epoch to train.
func (t *AutoencoderTrainer) Resume(init bool) (int, error) {
	if init || t.path == "" {
		return 1, nil
	}
	if _, err := os.Stat(t.path); errors.Is(err, os.ErrNotExist) {
		klog.Infof("No checkpoint at %s, starting a new run", t.path)
		return 1, nil
	}
	ckpt, err := nn.LoadCheckpoint(t.path, t.ae, t.optimizer)
	if err != nil {
		return 0, err
	}
	if ckpt.ModelType != AutoencoderModelType {
		return 0, errors.Errorf("checkpoint %s holds a %q model, not an autoencoder", t.path, ckpt.ModelType)
	}
	t.best, t.runID = ckpt.Loss, ckpt.RunID
	klog.Infof("Resuming autoencoder from epoch %d (loss %.6f)", ckpt.Epoch, ckpt.Loss)
	return ckpt.Epoch + 1, nil
}

// Fit trains for epochs epochs starting at start. After every epoch the
// validation loss is measured and the model saved when it improved.
func (t *AutoencoderTrainer) Fit(train, valid *dataset.Loader, start, epochs int) error {
	for epoch := start; epoch < start+epochs; epoch++ {
		if _, err := TrainAutoencoderEpoch(t.ae, t.optimizer, train, epoch, t.logInterval); err != nil {
			return err
		}
		loss, err := EvaluateAutoencoder(t.ae, valid)
		if err != nil {
			return err
		}
		klog.Infof("Validation set: reconstruction loss %.6f", loss)
		if loss >= t.best {
			continue
		}
		t.best = loss
		if t.path == "" {
			continue
		}
		klog.Infof("Saving checkpoint %s", t.path)
		ckpt := &nn.Checkpoint{
			Model:     t.ae,
			Optimizer: t.optimizer,
			ModelType: AutoencoderModelType,
			Loss:      loss,
			Epoch:     epoch,
			RunID:     t.runID,
		}
		if err := ckpt.Save(t.path); err != nil {
			return err
		}
		t.runID = ckpt.RunID
	}
	return nil
}
