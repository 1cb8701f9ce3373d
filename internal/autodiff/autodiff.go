// Package autodiff adds reverse-mode automatic differentiation to any
// tensor.Backend using the decorator pattern: every forward operation is
// delegated to the wrapped backend and, while the tape is recording, an
// Operation with the matching backward rule is appended to the tape.
package autodiff

import (
	"github.com/refnet-ml/refnet/internal/autodiff/ops"
	"github.com/refnet-ml/refnet/internal/tensor"
)

// Backend wraps a compute backend and records operations on a GradientTape.
// It implements tensor.Backend.
type Backend struct {
	inner tensor.Backend
	tape  *GradientTape
}

// New creates an autodiff Backend wrapping the given compute backend.
func New(inner tensor.Backend) *Backend {
	return &Backend{inner: inner, tape: NewGradientTape()}
}

// Tape returns the gradient tape for recording control and backward passes.
func (b *Backend) Tape() *GradientTape { return b.tape }

// Inner returns the wrapped backend.
func (b *Backend) Inner() tensor.Backend { return b.inner }

// Name returns the backend name.
func (b *Backend) Name() string { return "autodiff(" + b.inner.Name() + ")" }

// Add performs element-wise addition and records the operation.
func (b *Backend) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(a, c)
	b.tape.Record(ops.NewAddOp(a, c, result))
	return result
}

// Sub performs element-wise subtraction and records the operation.
func (b *Backend) Sub(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sub(a, c)
	b.tape.Record(ops.NewSubOp(a, c, result))
	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *Backend) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Mul(a, c)
	b.tape.Record(ops.NewMulOp(a, c, result))
	return result
}

// MatMul performs matrix multiplication and records the operation.
func (b *Backend) MatMul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.MatMul(a, c)
	b.tape.Record(ops.NewMatMulOp(a, c, result))
	return result
}

// Transpose transposes a 2D tensor and records the operation. The forward
// result is a fresh tensor, so without the record gradients computed for Wᵀ
// would never reach the parameter W.
func (b *Backend) Transpose(t *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Transpose(t)
	b.tape.Record(ops.NewTransposeOp(t, result))
	return result
}

// Reshape reshapes a tensor and records the operation.
func (b *Backend) Reshape(t *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Reshape(t, shape)
	b.tape.Record(ops.NewReshapeOp(t, result))
	return result
}

// ReLU applies the rectified linear activation and records the operation.
func (b *Backend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.ReLU(x)
	b.tape.Record(ops.NewReLUOp(x, result))
	return result
}

// Softmax normalizes rows into probabilities. Softmax only appears in
// inference paths; training uses the fused CrossEntropy instead, so nothing
// is recorded.
func (b *Backend) Softmax(x *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.Softmax(x)
}

// CrossEntropy computes the fused softmax + negative log-likelihood loss and
// records the operation.
func (b *Backend) CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.CrossEntropy(logits, targets)
	b.tape.Record(ops.NewCrossEntropyOp(logits, targets, result))
	return result
}
