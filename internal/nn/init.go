package nn

import (
	"math"
	"math/rand"

	"github.com/refnet-ml/refnet/internal/tensor"
)

// Xavier returns a tensor initialized with Xavier/Glorot uniform values:
// U(-sqrt(6/(fanIn+fanOut)), +sqrt(6/(fanIn+fanOut))). The rng is passed in
// explicitly so callers control seeding; there is no process-global state.
func Xavier(fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand) *tensor.RawTensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	t := tensor.MustRaw(shape, tensor.Float32)
	data := t.AsFloat32()
	for i := range data {
		data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
	return t
}

// Zeros returns a zero-filled Float32 tensor. Used for bias initialization.
func Zeros(shape tensor.Shape) *tensor.RawTensor {
	return tensor.MustRaw(shape, tensor.Float32)
}
