package train_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitishmital/head-network-distillation/internal/config"
	"github.com/nitishmital/head-network-distillation/internal/dataset"
	"github.com/nitishmital/head-network-distillation/internal/models"
	"github.com/nitishmital/head-network-distillation/internal/nn"
	"github.com/nitishmital/head-network-distillation/internal/tensor"
	"github.com/nitishmital/head-network-distillation/internal/train"
)

const experiment = `
experiment_name: blobs
input_shape: [1, 4, 4]
num_classes: 2
model: {type: mlp, hidden: [8]}
train: {batch_size: 20, lr: 0.1, log_interval: 2}
`

func setup(t *testing.T) (*config.Config, *dataset.Loader, *dataset.Loader) {
	t.Helper()
	cfg, err := config.Parse([]byte(experiment))
	require.NoError(t, err)

	ds, err := dataset.Blobs(240, 2, cfg.Shape(), 0.05, nn.NewRNG(7))
	require.NoError(t, err)
	trainSet, validSet, err := ds.Split(1.0/6, nn.NewRNG(8))
	require.NoError(t, err)

	trainLoader, err := dataset.NewLoader(trainSet, cfg.Train.BatchSize, true, nn.NewRNG(9))
	require.NoError(t, err)
	validLoader, err := dataset.NewLoader(validSet, cfg.Train.BatchSize, false, nil)
	require.NoError(t, err)
	return cfg, trainLoader, validLoader
}

func newTrainer(t *testing.T, cfg *config.Config, ckpt string, seed uint64) (*nn.Sequential, *train.Trainer) {
	t.Helper()
	model, err := models.NewClassifier(cfg, nn.NewRNG(seed))
	require.NoError(t, err)
	optimizer, err := train.NewOptimizer(cfg.Train, model.Parameters())
	require.NoError(t, err)
	return model, train.NewTrainer(model, optimizer, train.Options{
		CheckpointPath: ckpt,
		ModelType:      cfg.Model.Type,
		LogInterval:    cfg.Train.LogInterval,
		Output:         io.Discard,
	})
}

func TestTrainer_LearnsBlobs(t *testing.T) {
	cfg, trainLoader, validLoader := setup(t)
	model, trainer := newTrainer(t, cfg, "", 1)

	var first, last train.EpochStats
	for epoch := 1; epoch <= 8; epoch++ {
		stats, err := trainer.TrainEpoch(trainLoader, epoch)
		require.NoError(t, err)
		assert.Equal(t, 200, stats.Samples)
		if epoch == 1 {
			first = stats
		}
		last = stats
	}
	assert.Less(t, last.Loss, first.Loss)

	result, err := train.Evaluate(model, validLoader, "Validation", false, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 40, result.Total)
	assert.Greater(t, result.Accuracy, 90.0)
	// 16 float32 values per raw sample.
	assert.InDelta(t, 64.0, result.InputBandwidth, 1e-9)
}

func TestTrainer_CheckpointAndResume(t *testing.T) {
	cfg, trainLoader, validLoader := setup(t)
	path := train.CheckpointPath(t.TempDir(), cfg.ExperimentName)
	assert.Equal(t, "blobs.hnd", filepath.Base(path))

	_, trainer := newTrainer(t, cfg, path, 1)
	start, err := trainer.Resume(false)
	require.NoError(t, err)
	assert.Equal(t, 1, start, "no checkpoint yet")

	require.NoError(t, trainer.Fit(trainLoader, validLoader, start, 2))
	require.FileExists(t, path)
	best := trainer.Best()
	assert.Greater(t, best, 0.0)

	acc, improved, err := trainer.Validate(validLoader, 3)
	require.NoError(t, err)
	assert.LessOrEqual(t, acc, best)
	assert.False(t, improved)

	restored, resumed := newTrainer(t, cfg, path, 99)
	start, err = resumed.Resume(false)
	require.NoError(t, err)
	assert.Contains(t, []int{2, 3}, start, "saved epoch + 1")
	assert.InDelta(t, best, resumed.Best(), 1e-9)
	assert.Equal(t, trainer.RunID(), resumed.RunID())
	assert.Equal(t, config.ModelMLP, resumed.ModelType())

	result, err := train.Evaluate(restored, validLoader, "Validation", false, io.Discard)
	require.NoError(t, err)
	assert.InDelta(t, best, result.Accuracy, 1e-9)

	_, fresh := newTrainer(t, cfg, path, 5)
	start, err = fresh.Resume(true)
	require.NoError(t, err)
	assert.Equal(t, 1, start)
	assert.Zero(t, fresh.Best())
}

func TestEvaluate_Empty(t *testing.T) {
	cfg, _, _ := setup(t)
	empty, err := dataset.New(cfg.Shape(), nil, nil, 2)
	require.NoError(t, err)
	loader, err := dataset.NewLoader(empty, 4, false, nil)
	require.NoError(t, err)

	model, _ := newTrainer(t, cfg, "", 1)
	_, err = train.Evaluate(model, loader, "Test", false, io.Discard)
	assert.ErrorIs(t, err, dataset.ErrEmpty)
}

func TestNewOptimizer(t *testing.T) {
	sgd, err := train.NewOptimizer(config.TrainConfig{Optimizer: "sgd", LR: 0.5}, nil)
	require.NoError(t, err)
	assert.Equal(t, "SGD", sgd.Kind())
	assert.InDelta(t, 0.5, sgd.LR(), 1e-9)

	adam, err := train.NewOptimizer(config.TrainConfig{Optimizer: "adam", LR: 0.01}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Adam", adam.Kind())

	_, err = train.NewOptimizer(config.TrainConfig{Optimizer: "lbfgs"}, nil)
	assert.Error(t, err)
}

const aeExperiment = `
experiment_name: blobs-ae
input_shape: [1, 4, 4]
num_classes: 2
autoencoder: {hidden: [8], bottleneck: 4}
train: {batch_size: 20, lr: 0.01, optimizer: adam}
`

func TestAutoencoder_TrainSaveLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "ae.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(aeExperiment), 0o600))
	cfg, err := config.Load(configPath)
	require.NoError(t, err)

	ds, err := dataset.Blobs(200, 2, cfg.Shape(), 0.05, nn.NewRNG(11))
	require.NoError(t, err)
	loader, err := dataset.NewLoader(ds, cfg.Train.BatchSize, true, nn.NewRNG(12))
	require.NoError(t, err)

	ae, err := models.NewAutoencoder(cfg.Shape(), cfg.Autoencoder, nn.NewRNG(13))
	require.NoError(t, err)
	optimizer, err := train.NewOptimizer(cfg.Train, ae.Parameters())
	require.NoError(t, err)

	before, err := train.EvaluateAutoencoder(ae, loader)
	require.NoError(t, err)
	var loss float64
	for epoch := 1; epoch <= 20; epoch++ {
		loss, err = train.TrainAutoencoderEpoch(ae, optimizer, loader, epoch, 5)
		require.NoError(t, err)
	}
	after, err := train.EvaluateAutoencoder(ae, loader)
	require.NoError(t, err)
	assert.Less(t, after, before)

	ckpt := &nn.Checkpoint{Model: ae, ModelType: train.AutoencoderModelType, Loss: loss, Epoch: 20}
	require.NoError(t, ckpt.Save(train.CheckpointPath(dir, cfg.ExperimentName)))

	loaded, err := train.LoadAutoencoder(configPath, dir)
	require.NoError(t, err)

	x, _, err := ds.Batch([]int{0, 1, 2})
	require.NoError(t, err)
	want, err := ae.Reconstruct(x)
	require.NoError(t, err)
	got, err := loaded.Reconstruct(x)
	require.NoError(t, err)
	assert.Equal(t, want.AsFloat32(), got.AsFloat32())

	mapped, err := train.ApplyAutoencoder(loaded, ds, 64)
	require.NoError(t, err)
	assert.Equal(t, ds.Len(), mapped.Len())
	assert.Equal(t, ds.Shape(), mapped.Shape())

	other, err := dataset.New(tensor.Shape{1, 2, 2}, make([]float32, 4), []int{0}, 2)
	require.NoError(t, err)
	_, err = train.ApplyAutoencoder(loaded, other, 8)
	assert.Error(t, err)
}

func TestLoadAutoencoder_WrongModelType(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "ae.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(aeExperiment), 0o600))
	cfg, err := config.Load(configPath)
	require.NoError(t, err)

	ae, err := models.NewAutoencoder(cfg.Shape(), cfg.Autoencoder, nn.NewRNG(1))
	require.NoError(t, err)
	ckpt := &nn.Checkpoint{Model: ae, ModelType: "mlp"}
	require.NoError(t, ckpt.Save(train.CheckpointPath(dir, cfg.ExperimentName)))

	_, err = train.LoadAutoencoder(configPath, dir)
	assert.Error(t, err)

	_, err = train.LoadAutoencoder(configPath, t.TempDir())
	assert.Error(t, err, "missing checkpoint")
}

func TestAutoencoderTrainer_FitAndResume(t *testing.T) {
	cfg, err := config.Parse([]byte(aeExperiment))
	require.NoError(t, err)
	ds, err := dataset.Blobs(120, 2, cfg.Shape(), 0.05, nn.NewRNG(21))
	require.NoError(t, err)
	trainSet, validSet, err := ds.Split(0.25, nn.NewRNG(22))
	require.NoError(t, err)
	trainLoader, err := dataset.NewLoader(trainSet, 10, true, nn.NewRNG(23))
	require.NoError(t, err)
	validLoader, err := dataset.NewLoader(validSet, 10, false, nil)
	require.NoError(t, err)

	path := train.CheckpointPath(t.TempDir(), cfg.ExperimentName)
	build := func(seed uint64) (*models.Autoencoder, *train.AutoencoderTrainer) {
		ae, err := models.NewAutoencoder(cfg.Shape(), cfg.Autoencoder, nn.NewRNG(seed))
		require.NoError(t, err)
		optimizer, err := train.NewOptimizer(cfg.Train, ae.Parameters())
		require.NoError(t, err)
		return ae, train.NewAutoencoderTrainer(ae, optimizer, path, 5)
	}

	_, trainer := build(1)
	start, err := trainer.Resume(false)
	require.NoError(t, err)
	require.Equal(t, 1, start)
	require.NoError(t, trainer.Fit(trainLoader, validLoader, start, 3))
	require.FileExists(t, path)

	restored, resumed := build(2)
	start, err = resumed.Resume(false)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, start, 2)
	assert.InDelta(t, trainer.Best(), resumed.Best(), 1e-6)

	loss, err := train.EvaluateAutoencoder(restored, validLoader)
	require.NoError(t, err)
	assert.InDelta(t, trainer.Best(), loss, 1e-6)
}
