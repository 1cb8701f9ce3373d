package optim

import (
	"github.com/refnet-ml/refnet/internal/nn"
	"github.com/refnet-ml/refnet/internal/tensor"
)

// SGD is stochastic gradient descent with optional momentum.
//
// Without momentum:
//
//	param -= lr * grad
//
// With momentum:
//
//	velocity = momentum*velocity + grad
//	param -= lr * velocity
type SGD struct {
	params     []*nn.Parameter
	lr         float32
	momentum   float32
	velocities map[*tensor.RawTensor][]float32
}

// SGDConfig configures an SGD optimizer.
type SGDConfig struct {
	LR       float32 // learning rate, default 0.01
	Momentum float32 // momentum factor in [0,1), default 0
}

// NewSGD creates an SGD optimizer over the given parameters.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*tensor.RawTensor][]float32),
	}
}

// LR returns the learning rate.
func (s *SGD) LR() float32 { return s.lr }

// Step updates every parameter that has a gradient in grads. Parameters
// without a gradient (untouched by the loss) are left alone.
func (s *SGD) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, p := range s.params {
		pt := p.Tensor()
		g, ok := grads[pt]
		if !ok {
			continue
		}

		pv := pt.AsFloat32()
		gv := g.AsFloat32()

		if s.momentum == 0 {
			for i := range pv {
				pv[i] -= s.lr * gv[i]
			}
			continue
		}

		vel, ok := s.velocities[pt]
		if !ok {
			vel = make([]float32, len(pv))
			s.velocities[pt] = vel
		}
		for i := range pv {
			vel[i] = s.momentum*vel[i] + gv[i]
			pv[i] -= s.lr * vel[i]
		}
	}
}
