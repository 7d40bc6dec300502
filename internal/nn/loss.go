package nn

import (
	"math"

	"github.com/pkg/errors"

	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// CrossEntropyLoss computes the mean softmax cross-entropy over a batch.
//
// Uses the log-sum-exp trick for numerical stability:
//
//	loss_i = log(Σ exp(x_ij - max_i)) + max_i - x_i,label
//
// Example:
//
//	criterion := nn.NewCrossEntropyLoss()
//	loss, grad, err := criterion.Forward(logits, labels)
//	_, err = model.Backward(grad)
type CrossEntropyLoss struct{}

// NewCrossEntropyLoss creates a cross-entropy criterion.
func NewCrossEntropyLoss() *CrossEntropyLoss {
	return &CrossEntropyLoss{}
}

// Forward returns the mean loss and dLoss/dLogits = (softmax - onehot) / N.
//
// Parameters:
//   - logits: [batch_size, num_classes]
//   - labels: class index per sample
func (c *CrossEntropyLoss) Forward(logits *tensor.Tensor, labels []int) (float32, *tensor.Tensor, error) {
	shape := logits.Shape()
	if len(shape) != 2 {
		return 0, nil, shapeErrorf("CrossEntropyLoss", "logits must be 2D, got %v", shape)
	}
	n, classes := shape[0], shape[1]
	if len(labels) != n {
		return 0, nil, shapeErrorf("CrossEntropyLoss", "%d labels for batch of %d", len(labels), n)
	}
	if n == 0 {
		return 0, nil, errors.New("cross entropy: empty batch")
	}

	x := logits.Float32s()
	grad := tensor.Zeros(shape)
	g := grad.AsFloat32()
	var total float64
	for i, label := range labels {
		if label < 0 || label >= classes {
			return 0, nil, errors.Errorf("cross entropy: label %d out of range [0, %d)", label, classes)
		}
		row := x[i*classes : (i+1)*classes]
		maxVal := row[0]
		for _, v := range row[1:] {
			maxVal = max(maxVal, v)
		}
		var sum float64
		for _, v := range row {
			sum += math.Exp(float64(v - maxVal))
		}
		total += math.Log(sum) + float64(maxVal) - float64(row[label])

		gRow := g[i*classes : (i+1)*classes]
		for j, v := range row {
			gRow[j] = float32(math.Exp(float64(v-maxVal))/sum) / float32(n)
		}
		gRow[label] -= 1 / float32(n)
	}
	return float32(total / float64(n)), grad, nil
}

// MSELoss computes the mean squared error between prediction and target.
type MSELoss struct{}

// NewMSELoss creates a mean squared error criterion.
func NewMSELoss() *MSELoss {
	return &MSELoss{}
}

// Forward returns mean((p - t)^2) and its gradient 2(p - t)/numel.
func (m *MSELoss) Forward(prediction, target *tensor.Tensor) (float32, *tensor.Tensor, error) {
	if prediction.NumElements() != target.NumElements() {
		return 0, nil, shapeErrorf("MSELoss", "prediction %v vs target %v", prediction.Shape(), target.Shape())
	}
	numel := prediction.NumElements()
	if numel == 0 {
		return 0, nil, errors.New("mse: empty input")
	}

	p, t := prediction.Float32s(), target.Float32s()
	grad := tensor.Zeros(prediction.Shape())
	g := grad.AsFloat32()
	var total float64
	for i := range p {
		d := p[i] - t[i]
		total += float64(d * d)
		g[i] = 2 * d / float32(numel)
	}
	return float32(total / float64(numel)), grad, nil
}

// Accuracy returns the fraction of rows of logits whose argmax equals the label.
func Accuracy(logits *tensor.Tensor, labels []int) (float32, error) {
	pred, err := tensor.ArgmaxRows(logits)
	if err != nil {
		return 0, err
	}
	if len(pred) != len(labels) {
		return 0, shapeErrorf("Accuracy", "%d predictions for %d labels", len(pred), len(labels))
	}
	if len(pred) == 0 {
		return 0, nil
	}
	correct := 0
	for i, p := range pred {
		if p == labels[i] {
			correct++
		}
	}
	return float32(correct) / float32(len(pred)), nil
}
