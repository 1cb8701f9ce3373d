package ops

import "github.com/refnet-ml/refnet/internal/tensor"

// reduceBroadcast folds a gradient back to the shape of a broadcast input.
// The only broadcast the forward pass performs is a (1,N) row against a
// (B,N) matrix, so the reduction is a column-wise sum over the batch axis.
// Gradients that already match the target shape pass through unchanged.
func reduceBroadcast(grad *tensor.RawTensor, target tensor.Shape) *tensor.RawTensor {
	if grad.Shape().Equal(target) {
		return grad
	}

	gradShape := grad.Shape()
	if len(gradShape) != 2 || len(target) != 2 || target[0] != 1 || target[1] != gradShape[1] {
		panic("ops: unsupported broadcast reduction from " + gradShape.String() + " to " + target.String())
	}

	rows, cols := gradShape[0], gradShape[1]
	out := tensor.MustRaw(target, tensor.Float32)
	src, dst := grad.AsFloat32(), out.AsFloat32()
	for i := 0; i < rows; i++ {
		row := src[i*cols : (i+1)*cols]
		for j, v := range row {
			dst[j] += v
		}
	}
	return out
}
