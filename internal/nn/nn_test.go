package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refnet-ml/refnet/internal/backend/cpu"
	"github.com/refnet-ml/refnet/internal/tensor"
)

func TestXavierBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	w := Xavier(784, 512, tensor.Shape{512, 784}, rng)

	limit := math.Sqrt(6.0 / (784 + 512))
	var nonzero int
	for _, v := range w.AsFloat32() {
		assert.LessOrEqual(t, math.Abs(float64(v)), limit)
		if v != 0 {
			nonzero++
		}
	}
	assert.Greater(t, nonzero, 0, "initialization produced all zeros")
}

func TestXavierDeterministic(t *testing.T) {
	a := Xavier(10, 5, tensor.Shape{5, 10}, rand.New(rand.NewSource(7)))
	b := Xavier(10, 5, tensor.Shape{5, 10}, rand.New(rand.NewSource(7)))
	assert.Equal(t, a.AsFloat32(), b.AsFloat32())

	c := Xavier(10, 5, tensor.Shape{5, 10}, rand.New(rand.NewSource(8)))
	assert.NotEqual(t, a.AsFloat32(), c.AsFloat32())
}

func TestZeros(t *testing.T) {
	z := Zeros(tensor.Shape{3})
	assert.Equal(t, []float32{0, 0, 0}, z.AsFloat32())
}

func TestLinearForward(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	l := NewLinear("fc", 3, 2, rng)

	// Overwrite the random init with known values.
	copy(l.Weight().Tensor().AsFloat32(), []float32{1, 0, -1, 2, 1, 0})
	copy(l.Bias().Tensor().AsFloat32(), []float32{0.5, -0.5})

	x, err := tensor.FromFloat32([]float32{1, 2, 3}, tensor.Shape{1, 3})
	require.NoError(t, err)

	out := l.Forward(cpu.New(), x)
	require.True(t, out.Shape().Equal(tensor.Shape{1, 2}))

	// y = x @ Wᵀ + b with W rows [1,0,-1] and [2,1,0].
	got := out.AsFloat32()
	assert.InDelta(t, 1*1+2*0+3*(-1)+0.5, float64(got[0]), 1e-6)
	assert.InDelta(t, 1*2+2*1+3*0-0.5, float64(got[1]), 1e-6)
}

func TestLinearForwardBatch(t *testing.T) {
	l := NewLinear("fc", 4, 3, rand.New(rand.NewSource(2)))
	x, err := tensor.FromFloat32(make([]float32, 5*4), tensor.Shape{5, 4})
	require.NoError(t, err)

	out := l.Forward(cpu.New(), x)
	assert.True(t, out.Shape().Equal(tensor.Shape{5, 3}))
}

func TestLinearParameterNames(t *testing.T) {
	l := NewLinear("trunk", 8, 4, rand.New(rand.NewSource(3)))
	params := l.Parameters()
	require.Len(t, params, 2)
	assert.Equal(t, "trunk.weight", params[0].Name())
	assert.Equal(t, "trunk.bias", params[1].Name())
	assert.True(t, params[0].Tensor().Shape().Equal(tensor.Shape{4, 8}))
	assert.True(t, params[1].Tensor().Shape().Equal(tensor.Shape{4}))
}

func TestLinearForwardRejectsBadWidth(t *testing.T) {
	l := NewLinear("fc", 4, 3, rand.New(rand.NewSource(4)))
	x, err := tensor.FromFloat32(make([]float32, 5), tensor.Shape{1, 5})
	require.NoError(t, err)
	assert.Panics(t, func() { l.Forward(cpu.New(), x) })
}

func TestArgmax(t *testing.T) {
	logits, err := tensor.FromFloat32([]float32{0.1, 0.9, 0.2, 3, 1, 2}, tensor.Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, Argmax(logits))
}

func TestCountCorrect(t *testing.T) {
	logits, err := tensor.FromFloat32([]float32{0.1, 0.9, 0.2, 3, 1, 2}, tensor.Shape{2, 3})
	require.NoError(t, err)
	targets, err := tensor.FromInt32([]int32{1, 2}, tensor.Shape{2})
	require.NoError(t, err)

	assert.Equal(t, 1, CountCorrect(logits, targets))
}
