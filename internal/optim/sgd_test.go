package optim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refnet-ml/refnet/internal/nn"
	"github.com/refnet-ml/refnet/internal/tensor"
)

func param(t *testing.T, name string, vals []float32) *nn.Parameter {
	t.Helper()
	raw, err := tensor.FromFloat32(vals, tensor.Shape{len(vals)})
	require.NoError(t, err)
	return nn.NewParameter(name, raw)
}

func grad(t *testing.T, vals []float32) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.FromFloat32(vals, tensor.Shape{len(vals)})
	require.NoError(t, err)
	return raw
}

func TestSGDStep(t *testing.T) {
	p := param(t, "w", []float32{1, 2, 3})
	s := NewSGD([]*nn.Parameter{p}, SGDConfig{LR: 0.1})

	s.Step(map[*tensor.RawTensor]*tensor.RawTensor{
		p.Tensor(): grad(t, []float32{1, -1, 0.5}),
	})

	got := p.Tensor().AsFloat32()
	assert.InDelta(t, 0.9, float64(got[0]), 1e-6)
	assert.InDelta(t, 2.1, float64(got[1]), 1e-6)
	assert.InDelta(t, 2.95, float64(got[2]), 1e-6)
}

func TestSGDDefaultLR(t *testing.T) {
	s := NewSGD(nil, SGDConfig{})
	assert.InDelta(t, 0.01, float64(s.LR()), 1e-9)
}

func TestSGDSkipsParamsWithoutGrad(t *testing.T) {
	p := param(t, "w", []float32{5})
	s := NewSGD([]*nn.Parameter{p}, SGDConfig{LR: 0.1})

	s.Step(map[*tensor.RawTensor]*tensor.RawTensor{})
	assert.Equal(t, []float32{5}, p.Tensor().AsFloat32())
}

func TestSGDMomentumAccumulates(t *testing.T) {
	p := param(t, "w", []float32{0})
	s := NewSGD([]*nn.Parameter{p}, SGDConfig{LR: 1, Momentum: 0.5})

	g := map[*tensor.RawTensor]*tensor.RawTensor{p.Tensor(): grad(t, []float32{1})}

	// v1 = 1, w = -1; v2 = 0.5 + 1 = 1.5, w = -2.5.
	s.Step(g)
	assert.InDelta(t, -1, float64(p.Tensor().AsFloat32()[0]), 1e-6)
	s.Step(g)
	assert.InDelta(t, -2.5, float64(p.Tensor().AsFloat32()[0]), 1e-6)
}
