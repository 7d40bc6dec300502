package optim

import (
	"math"

	"github.com/nitishmital/head-network-distillation/internal/nn"
	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)   // Parameter update
//
// The autoencoder is trained with Adam by default.
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	params []*nn.Parameter
	lr     float32
	beta1  float32
	beta2  float32
	eps    float32
	t      int                              // Timestep for bias correction
	m      map[*nn.Parameter]*tensor.Tensor // First moment estimates
	v      map[*nn.Parameter]*tensor.Tensor // Second moment estimates
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float32    // Learning rate (default: 0.001)
	Betas [2]float32 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float32    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer, filling unset hyperparameters with
// the usual defaults.
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam{
		params: params,
		lr:     config.LR,
		beta1:  config.Betas[0],
		beta2:  config.Betas[1],
		eps:    config.Eps,
		m:      make(map[*nn.Parameter]*tensor.Tensor),
		v:      make(map[*nn.Parameter]*tensor.Tensor),
	}
}

// Step performs a single optimization step. Parameters with no gradient are skipped.
func (a *Adam) Step() {
	a.t++
	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range a.params {
		grad := param.Grad()
		if grad == nil {
			continue
		}

		m, ok := a.m[param]
		if !ok {
			m = tensor.Zeros(param.Tensor().Shape())
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v = tensor.Zeros(param.Tensor().Shape())
			a.v[param] = v
		}

		g := grad.AsFloat32()
		mData, vData := m.AsFloat32(), v.AsFloat32()
		p := param.Tensor().AsFloat32()
		for i := range p {
			mData[i] = a.beta1*mData[i] + (1.0-a.beta1)*g[i]
			vData[i] = a.beta2*vData[i] + (1.0-a.beta2)*g[i]*g[i]
			mHat := mData[i] / biasCorrection1
			vHat := vData[i] / biasCorrection2
			p[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam) ZeroGrad() {
	zeroGrad(a.params)
}

// LR returns the current learning rate.
func (a *Adam) LR() float32 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float32) {
	a.lr = lr
}

// Kind returns "Adam".
func (a *Adam) Kind() string {
	return "Adam"
}

// StateDict exports "m.{i}", "v.{i}" and the timestep under "step".
func (a *Adam) StateDict() map[string]*tensor.Tensor {
	stateDict := make(map[string]*tensor.Tensor)
	exportBuffers(a.params, "m", a.m, stateDict)
	exportBuffers(a.params, "v", a.v, stateDict)
	stateDict["step"] = tensor.Full(tensor.Shape{1}, float32(a.t))
	return stateDict
}

// LoadStateDict restores the moment buffers and timestep.
func (a *Adam) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	m, err := loadBuffers(a.params, "m", stateDict)
	if err != nil {
		return err
	}
	v, err := loadBuffers(a.params, "v", stateDict)
	if err != nil {
		return err
	}
	a.m, a.v, a.t = m, v, 0
	if step, ok := stateDict["step"]; ok && step.NumElements() == 1 {
		a.t = int(step.Float32s()[0])
	}
	return nil
}
