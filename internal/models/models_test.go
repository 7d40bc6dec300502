package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitishmital/head-network-distillation/internal/config"
	"github.com/nitishmital/head-network-distillation/internal/models"
	"github.com/nitishmital/head-network-distillation/internal/nn"
	"github.com/nitishmital/head-network-distillation/internal/profile"
	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

func parse(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	require.NoError(t, err)
	return cfg
}

func input(t *testing.T, batch int, shape tensor.Shape) *tensor.Tensor {
	t.Helper()
	full := append(tensor.Shape{batch}, shape...)
	data := make([]float32, full.NumElements())
	for i := range data {
		data[i] = float32(i%17) / 17
	}
	x, err := tensor.FromFloat32(data, full)
	require.NoError(t, err)
	return x
}

func TestNewClassifier_MLP(t *testing.T) {
	cfg := parse(t, `
input_shape: [1, 4, 4]
num_classes: 3
model: {type: mlp, hidden: [8, 6], dropout: 0.5}
`)
	model, err := models.NewClassifier(cfg, nn.NewRNG(1))
	require.NoError(t, err)

	out, err := model.Forward(input(t, 2, cfg.Shape()), nn.Eval)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, out.Shape())

	keys := make([]string, 0)
	for k := range nn.StateDict(model) {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{
		"features.0.weight", "features.0.bias",
		"features.3.weight", "features.3.bias",
		"classifier.weight", "classifier.bias",
	}, keys)
}

func TestNewClassifier_CNNWithCompression(t *testing.T) {
	cfg := parse(t, `
input_shape: [1, 8, 8]
num_classes: 4
model: {type: cnn, channels: [2, 3], kernel_size: 3, hidden: [5], compression: float16}
`)
	model, err := models.NewClassifier(cfg, nn.NewRNG(2))
	require.NoError(t, err)

	var names []string
	for _, c := range model.Children() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"features", "compression", "flatten", "classifier"}, names)

	x := input(t, 3, cfg.Shape())
	logits, err := model.Forward(x, nn.Train)
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{3, 4}, logits.Shape())

	_, grad, err := nn.NewCrossEntropyLoss().Forward(logits, []int{0, 1, 2})
	require.NoError(t, err)
	gradInput, err := model.Backward(grad)
	require.NoError(t, err)
	assert.Equal(t, x.Shape(), gradInput.Shape())
}

func TestNewClassifier_ProfiledLayers(t *testing.T) {
	cfg := parse(t, `
input_shape: [1, 8, 8]
num_classes: 2
model: {type: cnn, channels: [2], kernel_size: 3, hidden: [4], compression: uint8}
`)
	model, err := models.NewClassifier(cfg, nn.NewRNG(3))
	require.NoError(t, err)

	wrappers, err := profile.Wrap(model)
	require.NoError(t, err)
	// conv, relu, pool, quantize, flatten, linear, relu, linear
	assert.Len(t, wrappers, 8)

	_, err = model.Forward(input(t, 4, cfg.Shape()), nn.Eval)
	require.NoError(t, err)

	p, err := profile.Extract(model)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"features.block1.conv", "features.block1.relu", "features.block1.pool",
		"compression", "flatten",
		"classifier.0", "classifier.1", "classifier.2",
	}, p.Paths)

	// The quantizer shrinks float32 feature maps to one byte per value.
	i := 3
	assert.Equal(t, "Quantize", p.Names[i])
	assert.InDelta(t, 4*p.Compressed[i], p.Original[i], 1e-9)
}

func TestNewClassifier_TooManyPools(t *testing.T) {
	cfg := parse(t, `
input_shape: [1, 2, 2]
model: {type: cnn, channels: [2, 2, 2], kernel_size: 3}
`)
	_, err := models.NewClassifier(cfg, nn.NewRNG(1))
	assert.Error(t, err)
}

func TestAutoencoder(t *testing.T) {
	shape := tensor.Shape{1, 4, 4}
	ae, err := models.NewAutoencoder(shape, &config.AutoencoderConfig{Hidden: []int{8}, Bottleneck: 3}, nn.NewRNG(4))
	require.NoError(t, err)

	x := input(t, 2, shape)
	code, err := ae.Encode(x, nn.Eval)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, code.Shape())

	out, err := ae.Reconstruct(x)
	require.NoError(t, err)
	assert.Equal(t, x.Shape(), out.Shape())
	for _, v := range out.AsFloat32() {
		assert.True(t, v > 0 && v < 1)
	}

	out, err = ae.Forward(x, nn.Train)
	require.NoError(t, err)
	_, grad, err := nn.NewMSELoss().Forward(out, x)
	require.NoError(t, err)
	_, err = ae.Backward(grad)
	require.NoError(t, err)
	for _, p := range ae.Parameters() {
		assert.NotNil(t, p.Grad())
	}

	assert.Equal(t, []string{"encoder", "decoder"}, []string{ae.Children()[0].Name, ae.Children()[1].Name})
	assert.ErrorIs(t, ae.ReplaceChild("middle", nn.NewReLU()), nn.ErrUnknownChild)
	assert.ErrorIs(t, ae.ReplaceChild("encoder", nil), nn.ErrNilChild)

	_, err = models.NewAutoencoder(shape, nil, nn.NewRNG(4))
	assert.Error(t, err)
}
