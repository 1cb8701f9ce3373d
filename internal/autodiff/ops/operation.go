// Package ops defines the differentiable operations recorded on the gradient
// tape. Each operation keeps its forward inputs and output, and computes
// input gradients from the output gradient during the backward pass.
package ops

import "github.com/refnet-ml/refnet/internal/tensor"

// Operation is one recorded step of the forward computation.
type Operation interface {
	// Backward computes gradients for the inputs given the output gradient.
	// The returned slice is parallel to Inputs().
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the tensors the gradient should flow back to.
	Inputs() []*tensor.RawTensor

	// Output returns the tensor produced by this operation.
	Output() *tensor.RawTensor
}
