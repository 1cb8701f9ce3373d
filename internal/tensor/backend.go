package tensor

// Backend defines the compute operations the pipeline needs. The CPU backend
// implements it directly; the autodiff backend decorates another Backend and
// records every call on a gradient tape.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string

	// Element-wise binary operations. Add supports broadcasting a (1,N) row
	// against a (B,N) matrix, which is how bias addition is expressed.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// MatMul multiplies two 2D tensors: (M,K) @ (K,N) -> (M,N).
	MatMul(a, b *RawTensor) *RawTensor

	// Transpose swaps the two axes of a 2D tensor.
	Transpose(t *RawTensor) *RawTensor

	// Reshape returns a view of t under a new shape with the same element count.
	Reshape(t *RawTensor, shape Shape) *RawTensor

	// ReLU applies max(0, x) element-wise.
	ReLU(x *RawTensor) *RawTensor

	// Softmax normalizes each row of a 2D tensor into a probability
	// distribution.
	Softmax(x *RawTensor) *RawTensor

	// CrossEntropy computes mean negative log-likelihood of integer targets
	// [batch] under logits [batch, classes], returning a scalar tensor.
	CrossEntropy(logits, targets *RawTensor) *RawTensor
}
