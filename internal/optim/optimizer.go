// Package optim implements gradient-descent parameter updates.
package optim

import (
	"github.com/refnet-ml/refnet/internal/tensor"
)

// Optimizer applies one update step from a gradient map produced by the
// autodiff tape. Gradients are keyed by parameter tensor identity.
type Optimizer interface {
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)
}
