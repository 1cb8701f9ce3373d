// Package nn provides the neural-network building blocks of the pipeline:
// trainable parameters, the fully connected layer, activation modules,
// weight initialization and classification metrics.
package nn

import "github.com/refnet-ml/refnet/internal/tensor"

// Parameter is a named trainable tensor. Parameters are the only tensors the
// optimizer mutates; gradients for them come out of the tape's backward pass
// keyed by the underlying tensor.
type Parameter struct {
	name   string
	tensor *tensor.RawTensor
}

// NewParameter creates a trainable parameter around an initialized tensor.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return &Parameter{name: name, tensor: t}
}

// Name returns the parameter name, e.g. "trunk.weight".
func (p *Parameter) Name() string { return p.name }

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.RawTensor { return p.tensor }
