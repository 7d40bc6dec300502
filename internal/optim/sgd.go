package optim

import (
	"github.com/nitishmital/head-network-distillation/internal/nn"
	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// SGD implements Stochastic Gradient Descent with optional momentum and L2
// weight decay.
//
// Update rule:
//
//	g = grad + weight_decay * param
//	velocity = momentum * velocity + g
//	param = param - lr * velocity
//
// Without momentum the velocity is just g.
//
// Example:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{
//	    LR:          0.1,
//	    Momentum:    0.9,
//	    WeightDecay: 5e-4,
//	})
type SGD struct {
	params      []*nn.Parameter
	lr          float32
	momentum    float32
	weightDecay float32
	velocities  map[*nn.Parameter]*tensor.Tensor
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR          float32 // Learning rate (default: 0.01)
	Momentum    float32 // Momentum factor (default: 0.0, range: [0, 1))
	WeightDecay float32 // L2 penalty (default: 0.0)
}

// NewSGD creates a new SGD optimizer.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SGD{
		params:      params,
		lr:          config.LR,
		momentum:    config.Momentum,
		weightDecay: config.WeightDecay,
		velocities:  make(map[*nn.Parameter]*tensor.Tensor),
	}
}

// Step performs a single optimization step.
//
// Parameters with no gradient (not reached by Backward) are skipped.
func (s *SGD) Step() {
	for _, param := range s.params {
		grad := param.Grad()
		if grad == nil {
			continue
		}

		p := param.Tensor().AsFloat32()
		g := grad.AsFloat32()

		var v []float32
		if s.momentum != 0 {
			velocity, ok := s.velocities[param]
			if !ok {
				velocity = tensor.Zeros(param.Tensor().Shape())
				s.velocities[param] = velocity
			}
			v = velocity.AsFloat32()
		}

		for i := range p {
			d := g[i] + s.weightDecay*p[i]
			if v != nil {
				v[i] = s.momentum*v[i] + d
				d = v[i]
			}
			p[i] -= s.lr * d
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD) ZeroGrad() {
	zeroGrad(s.params)
}

// LR returns the current learning rate.
func (s *SGD) LR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float32) {
	s.lr = lr
}

// Kind returns "SGD".
func (s *SGD) Kind() string {
	return "SGD"
}

// StateDict returns the velocity buffers keyed "velocity.{param_index}".
// Without momentum, returns an empty map.
func (s *SGD) StateDict() map[string]*tensor.Tensor {
	stateDict := make(map[string]*tensor.Tensor)
	if s.momentum != 0 {
		exportBuffers(s.params, "velocity", s.velocities, stateDict)
	}
	return stateDict
}

// LoadStateDict restores velocity buffers.
//
// Returns an error if a velocity shape doesn't match its parameter.
func (s *SGD) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	if s.momentum == 0 {
		return nil
	}
	velocities, err := loadBuffers(s.params, "velocity", stateDict)
	if err != nil {
		return err
	}
	s.velocities = velocities
	return nil
}
