// Package config reads experiment descriptions from YAML files.
//
// An experiment names the model to train, the shape of its inputs and the
// training hyper-parameters. Missing fields take the values of Default; the
// result is validated before it is returned.
//
// Example file:
//
//	experiment_name: caltech101-cnn
//	input_shape: [3, 64, 64]
//	num_classes: 101
//	model:
//	  type: cnn
//	  channels: [16, 32]
//	  hidden: [256]
//	  compression: float16
//	train:
//	  batch_size: 100
//	  lr: 0.1
package config

import (
	"bytes"
	"os"
	"slices"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// Model types.
const (
	ModelMLP = "mlp"
	ModelCNN = "cnn"
)

// Optimizer names.
const (
	OptimizerSGD  = "sgd"
	OptimizerAdam = "adam"
)

// Config is one experiment.
type Config struct {
	ExperimentName string             `yaml:"experiment_name"`
	InputShape     []int              `yaml:"input_shape"` // [channels, height, width]
	NumClasses     int                `yaml:"num_classes"`
	Model          ModelConfig        `yaml:"model"`
	Autoencoder    *AutoencoderConfig `yaml:"autoencoder,omitempty"`
	Train          TrainConfig        `yaml:"train"`
}

// ModelConfig describes a classifier.
type ModelConfig struct {
	Type string `yaml:"type"`

	// Hidden lists the widths of the hidden fully connected layers.
	Hidden []int `yaml:"hidden"`

	// Channels lists the output channels of the convolution blocks (cnn only).
	Channels   []int `yaml:"channels,omitempty"`
	KernelSize int   `yaml:"kernel_size,omitempty"`

	Dropout float32 `yaml:"dropout,omitempty"`

	// Compression inserts a quantizing bottleneck ("float16" or "uint8")
	// after the feature extractor. Empty means none.
	Compression string `yaml:"compression,omitempty"`
}

// AutoencoderConfig describes the input autoencoder.
type AutoencoderConfig struct {
	Hidden     []int `yaml:"hidden"`
	Bottleneck int   `yaml:"bottleneck"`
}

// TrainConfig holds training hyper-parameters.
type TrainConfig struct {
	BatchSize   int     `yaml:"batch_size"`
	Epochs      int     `yaml:"epochs"`
	LR          float32 `yaml:"lr"`
	Momentum    float32 `yaml:"momentum"`
	WeightDecay float32 `yaml:"weight_decay"`
	ValidRate   float64 `yaml:"valid_rate"`
	LogInterval int     `yaml:"log_interval"`
	Optimizer   string  `yaml:"optimizer"`
	Seed        uint64  `yaml:"seed"`
}

// Default returns the configuration every file is merged onto.
func Default() *Config {
	return &Config{
		ExperimentName: "experiment",
		InputShape:     []int{1, 28, 28},
		NumClasses:     10,
		Model: ModelConfig{
			Type:       ModelMLP,
			Hidden:     []int{128},
			KernelSize: 3,
		},
		Train: TrainConfig{
			BatchSize:   100,
			Epochs:      100,
			LR:          0.1,
			Momentum:    0.9,
			WeightDecay: 5e-4,
			ValidRate:   0.1,
			LogInterval: 50,
			Optimizer:   OptimizerSGD,
			Seed:        1,
		},
	}
}

// Load reads and validates the experiment in path.
func Load(path string) (*Config, error) {
	//nolint:gosec // G304: path is given on the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes a YAML experiment over Default and validates it. Unknown
// fields are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.ExperimentName == "" {
		return errors.New("experiment_name is required")
	}
	if len(c.InputShape) != 3 || slices.ContainsFunc(c.InputShape, func(d int) bool { return d <= 0 }) {
		return errors.Errorf("input_shape must be 3 positive dimensions [C, H, W], got %v", c.InputShape)
	}
	if c.NumClasses < 2 {
		return errors.Errorf("num_classes must be at least 2, got %d", c.NumClasses)
	}

	m := c.Model
	switch m.Type {
	case ModelMLP:
	case ModelCNN:
		if len(m.Channels) == 0 {
			return errors.New("model.channels is required for cnn")
		}
		if m.KernelSize <= 0 || m.KernelSize%2 == 0 {
			return errors.Errorf("model.kernel_size must be a positive odd number, got %d", m.KernelSize)
		}
	default:
		return errors.Errorf("unknown model.type %q", m.Type)
	}
	if slices.ContainsFunc(append(slices.Clone(m.Hidden), m.Channels...), func(d int) bool { return d <= 0 }) {
		return errors.New("model layer sizes must be positive")
	}
	if m.Dropout < 0 || m.Dropout >= 1 {
		return errors.Errorf("model.dropout must be in [0, 1), got %g", m.Dropout)
	}
	switch m.Compression {
	case "", "float16", "uint8":
	default:
		return errors.Errorf("unknown model.compression %q", m.Compression)
	}

	if ae := c.Autoencoder; ae != nil {
		if ae.Bottleneck <= 0 || slices.ContainsFunc(ae.Hidden, func(d int) bool { return d <= 0 }) {
			return errors.New("autoencoder layer sizes must be positive")
		}
	}
	return c.Train.Validate()
}

// Validate checks the training hyper-parameters.
func (t *TrainConfig) Validate() error {
	switch {
	case t.BatchSize <= 0:
		return errors.Errorf("train.batch_size must be positive, got %d", t.BatchSize)
	case t.Epochs < 0:
		return errors.Errorf("train.epochs must not be negative, got %d", t.Epochs)
	case t.LR <= 0:
		return errors.Errorf("train.lr must be positive, got %g", t.LR)
	case t.ValidRate < 0 || t.ValidRate >= 1:
		return errors.Errorf("train.valid_rate must be in [0, 1), got %g", t.ValidRate)
	case t.LogInterval <= 0:
		return errors.Errorf("train.log_interval must be positive, got %d", t.LogInterval)
	}
	if t.Optimizer != OptimizerSGD && t.Optimizer != OptimizerAdam {
		return errors.Errorf("unknown train.optimizer %q", t.Optimizer)
	}
	return nil
}

// Shape returns the input shape as a tensor shape.
func (c *Config) Shape() tensor.Shape {
	return tensor.Shape(slices.Clone(c.InputShape))
}
