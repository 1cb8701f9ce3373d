package cpu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refnet-ml/refnet/internal/tensor"
)

func ft(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.FromFloat32(data, shape)
	require.NoError(t, err)
	return r
}

func TestAddElementwise(t *testing.T) {
	b := New()
	out := b.Add(ft(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2}), ft(t, []float32{10, 20, 30, 40}, tensor.Shape{2, 2}))
	assert.Equal(t, []float32{11, 22, 33, 44}, out.AsFloat32())
}

func TestAddRowBroadcast(t *testing.T) {
	b := New()
	m := ft(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	row := ft(t, []float32{10, 20, 30}, tensor.Shape{1, 3})

	out := b.Add(m, row)
	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, out.AsFloat32())
	assert.True(t, out.Shape().Equal(tensor.Shape{2, 3}))

	// Broadcasting works in either argument position.
	out = b.Add(row, m)
	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, out.AsFloat32())
}

func TestSub(t *testing.T) {
	b := New()
	out := b.Sub(ft(t, []float32{5, 7}, tensor.Shape{2}), ft(t, []float32{2, 3}, tensor.Shape{2}))
	assert.Equal(t, []float32{3, 4}, out.AsFloat32())
}

func TestMul(t *testing.T) {
	b := New()
	out := b.Mul(ft(t, []float32{2, 3, 4}, tensor.Shape{3}), ft(t, []float32{5, 6, 7}, tensor.Shape{3}))
	assert.Equal(t, []float32{10, 18, 28}, out.AsFloat32())
}

func TestMatMul(t *testing.T) {
	b := New()
	// (2,3) @ (3,2)
	a := ft(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	c := ft(t, []float32{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2})

	out := b.MatMul(a, c)
	assert.True(t, out.Shape().Equal(tensor.Shape{2, 2}))
	assert.Equal(t, []float32{58, 64, 139, 154}, out.AsFloat32())
}

func TestMatMulParallelMatchesSerial(t *testing.T) {
	b := New()
	// Large enough to take the parallel path.
	const m, k, n = 64, 17, 9
	av := make([]float32, m*k)
	cv := make([]float32, k*n)
	for i := range av {
		av[i] = float32(i%13) - 6
	}
	for i := range cv {
		cv[i] = float32(i%7) - 3
	}
	a := ft(t, av, tensor.Shape{m, k})
	c := ft(t, cv, tensor.Shape{k, n})

	out := b.MatMul(a, c).AsFloat32()

	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var want float32
			for x := 0; x < k; x++ {
				want += av[i*k+x] * cv[x*n+j]
			}
			assert.InDelta(t, want, out[i*n+j], 1e-4)
		}
	}
}

func TestTranspose(t *testing.T) {
	b := New()
	out := b.Transpose(ft(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}))
	assert.True(t, out.Shape().Equal(tensor.Shape{3, 2}))
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, out.AsFloat32())
}

func TestReshape(t *testing.T) {
	b := New()
	out := b.Reshape(ft(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2}), tensor.Shape{4})
	assert.True(t, out.Shape().Equal(tensor.Shape{4}))
	assert.Equal(t, []float32{1, 2, 3, 4}, out.AsFloat32())
}

func TestReLU(t *testing.T) {
	b := New()
	out := b.ReLU(ft(t, []float32{-2, -0.5, 0, 0.5, 2}, tensor.Shape{5}))
	assert.Equal(t, []float32{0, 0, 0, 0.5, 2}, out.AsFloat32())
}

func TestSoftmaxRowsSumToOne(t *testing.T) {
	b := New()
	out := b.Softmax(ft(t, []float32{1, 2, 3, 1000, 1001, 1002}, tensor.Shape{2, 3})).AsFloat32()

	for row := 0; row < 2; row++ {
		var sum float32
		for j := 0; j < 3; j++ {
			v := out[row*3+j]
			assert.False(t, math.IsNaN(float64(v)), "row %d has NaN", row)
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-5, "row %d", row)
	}
	// Large inputs must not overflow thanks to the max-subtraction trick.
	assert.InDelta(t, out[0], out[3], 1e-5)
}

func TestCrossEntropyUniform(t *testing.T) {
	b := New()
	logits := ft(t, make([]float32, 2*10), tensor.Shape{2, 10})
	targets, err := tensor.FromInt32([]int32{3, 7}, tensor.Shape{2})
	require.NoError(t, err)

	loss := b.CrossEntropy(logits, targets)
	// Uniform scores over 10 classes: loss = ln(10).
	assert.InDelta(t, math.Log(10), float64(loss.AsFloat32()[0]), 1e-5)
}

func TestCrossEntropyConfident(t *testing.T) {
	b := New()
	logits := ft(t, []float32{100, 0, 0, 0, 100, 0}, tensor.Shape{2, 3})
	targets, err := tensor.FromInt32([]int32{0, 1}, tensor.Shape{2})
	require.NoError(t, err)

	loss := b.CrossEntropy(logits, targets)
	assert.InDelta(t, 0, float64(loss.AsFloat32()[0]), 1e-4)
}
