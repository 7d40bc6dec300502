package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitishmital/head-network-distillation/internal/config"
	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := config.Parse([]byte("experiment_name: tiny\n"))
	require.NoError(t, err)

	assert.Equal(t, "tiny", cfg.ExperimentName)
	assert.Equal(t, tensor.Shape{1, 28, 28}, cfg.Shape())
	assert.Equal(t, config.ModelMLP, cfg.Model.Type)
	assert.Equal(t, 100, cfg.Train.BatchSize)
	assert.InDelta(t, 0.9, cfg.Train.Momentum, 1e-6)
	assert.InDelta(t, 5e-4, cfg.Train.WeightDecay, 1e-9)
	assert.Nil(t, cfg.Autoencoder)
}

func TestParse_Full(t *testing.T) {
	cfg, err := config.Parse([]byte(`
experiment_name: caltech-cnn
input_shape: [3, 32, 32]
num_classes: 101
model:
  type: cnn
  channels: [8, 16]
  kernel_size: 5
  hidden: [64]
  dropout: 0.25
  compression: uint8
autoencoder:
  hidden: [256]
  bottleneck: 32
train:
  batch_size: 32
  lr: 0.001
  optimizer: adam
  seed: 42
`))
	require.NoError(t, err)

	assert.Equal(t, []int{8, 16}, cfg.Model.Channels)
	assert.Equal(t, 5, cfg.Model.KernelSize)
	assert.Equal(t, "uint8", cfg.Model.Compression)
	require.NotNil(t, cfg.Autoencoder)
	assert.Equal(t, 32, cfg.Autoencoder.Bottleneck)
	assert.Equal(t, config.OptimizerAdam, cfg.Train.Optimizer)
	assert.Equal(t, uint64(42), cfg.Train.Seed)
	assert.Equal(t, 100, cfg.Train.Epochs, "unset fields keep defaults")
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "experiment_name: x\nlearning_rate: 1\n"},
		{"empty name", "experiment_name: ''\n"},
		{"2d input", "input_shape: [28, 28]\n"},
		{"one class", "num_classes: 1\n"},
		{"unknown model", "model: {type: rnn}\n"},
		{"cnn without channels", "model: {type: cnn}\n"},
		{"even kernel", "model: {type: cnn, channels: [4], kernel_size: 4}\n"},
		{"bad dropout", "model: {dropout: 1}\n"},
		{"bad compression", "model: {compression: int4}\n"},
		{"bad autoencoder", "autoencoder: {bottleneck: 0}\n"},
		{"bad batch", "train: {batch_size: 0}\n"},
		{"bad valid rate", "train: {valid_rate: 1}\n"},
		{"bad optimizer", "train: {optimizer: rmsprop}\n"},
		{"not yaml", "train: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("experiment_name: from-file\nnum_classes: 3\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.ExperimentName)
	assert.Equal(t, 3, cfg.NumClasses)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSampleConfigs(t *testing.T) {
	paths, err := filepath.Glob("../../configs/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := config.Load(path)
			assert.NoError(t, err)
		})
	}
}
