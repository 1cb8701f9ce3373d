package nn

import (
	"fmt"
	"math/rand"

	"github.com/refnet-ml/refnet/internal/tensor"
)

// Linear is a fully connected layer computing y = x @ Wᵀ + b, with
//   - x: [batch, inFeatures]
//   - W: [outFeatures, inFeatures]
//   - b: [outFeatures]
//   - y: [batch, outFeatures]
//
// The (out,in) weight layout matches the exported graph's initializers, so
// export is a plain copy of the parameter buffers.
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter
	bias        *Parameter
}

// NewLinear creates a Linear layer with Xavier-initialized weights and zero
// biases. The name prefixes the parameter names ("<name>.weight").
func NewLinear(name string, inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	weight := Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, rng)
	bias := Zeros(tensor.Shape{outFeatures})
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter(name+".weight", weight),
		bias:        NewParameter(name+".bias", bias),
	}
}

// Forward computes x @ Wᵀ + b through the given backend, so the tape sees
// every step when the backend is the autodiff decorator.
func (l *Linear) Forward(b tensor.Backend, input *tensor.RawTensor) *tensor.RawTensor {
	shape := input.Shape()
	if len(shape) != 2 || shape[1] != l.inFeatures {
		panic(fmt.Sprintf("linear %s: expected input [batch, %d], got %v", l.weight.Name(), l.inFeatures, shape))
	}

	wT := b.Transpose(l.weight.Tensor())
	out := b.MatMul(input, wT)

	biasRow := b.Reshape(l.bias.Tensor(), tensor.Shape{1, l.outFeatures})
	return b.Add(out, biasRow)
}

// Parameters returns [weight, bias].
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter { return l.weight }

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter { return l.bias }

// InFeatures returns the input width.
func (l *Linear) InFeatures() int { return l.inFeatures }

// OutFeatures returns the output width.
func (l *Linear) OutFeatures() int { return l.outFeatures }
