// Package cpu implements the tensor.Backend interface in pure Go.
//
// All operations run synchronously on the host. MatMul splits its output
// rows across goroutines; everything else is cheap enough to stay serial for
// the batch sizes this pipeline uses.
package cpu

import (
	"fmt"
	"math"

	"github.com/refnet-ml/refnet/internal/tensor"
)

// Backend is the pure-Go CPU compute backend.
type Backend struct{}

// New creates a new CPU backend.
func New() *Backend {
	return &Backend{}
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "cpu"
}

// Add performs element-wise addition. A (1,N) row tensor broadcasts against
// a (B,N) matrix in either argument position.
func (b *Backend) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	return broadcastBinary("add", a, c, func(x, y float32) float32 { return x + y })
}

// Sub performs element-wise subtraction.
func (b *Backend) Sub(a, c *tensor.RawTensor) *tensor.RawTensor {
	return broadcastBinary("sub", a, c, func(x, y float32) float32 { return x - y })
}

// Mul performs element-wise multiplication.
func (b *Backend) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	return broadcastBinary("mul", a, c, func(x, y float32) float32 { return x * y })
}

// broadcastBinary applies op element-wise. Besides identical shapes it
// supports exactly the row-broadcast case the pipeline uses: (1,N) op (B,N)
// and (B,N) op (1,N). Scalar (single-element) operands broadcast everywhere.
func broadcastBinary(name string, a, c *tensor.RawTensor, op func(x, y float32) float32) *tensor.RawTensor {
	aData, cData := a.AsFloat32(), c.AsFloat32()

	switch {
	case a.Shape().Equal(c.Shape()):
		out := tensor.MustRaw(a.Shape(), tensor.Float32)
		outData := out.AsFloat32()
		for i := range aData {
			outData[i] = op(aData[i], cData[i])
		}
		return out

	case c.NumElements() == 1:
		out := tensor.MustRaw(a.Shape(), tensor.Float32)
		outData := out.AsFloat32()
		y := cData[0]
		for i := range aData {
			outData[i] = op(aData[i], y)
		}
		return out

	case a.NumElements() == 1:
		out := tensor.MustRaw(c.Shape(), tensor.Float32)
		outData := out.AsFloat32()
		x := aData[0]
		for i := range cData {
			outData[i] = op(x, cData[i])
		}
		return out

	case isRowBroadcast(a.Shape(), c.Shape()):
		// (B,N) op (1,N)
		out := tensor.MustRaw(a.Shape(), tensor.Float32)
		outData := out.AsFloat32()
		n := c.Shape()[1]
		for i := range aData {
			outData[i] = op(aData[i], cData[i%n])
		}
		return out

	case isRowBroadcast(c.Shape(), a.Shape()):
		// (1,N) op (B,N)
		out := tensor.MustRaw(c.Shape(), tensor.Float32)
		outData := out.AsFloat32()
		n := a.Shape()[1]
		for i := range cData {
			outData[i] = op(aData[i%n], cData[i])
		}
		return out

	default:
		panic(fmt.Sprintf("cpu: %s shapes not compatible: %v vs %v", name, a.Shape(), c.Shape()))
	}
}

// isRowBroadcast reports whether row (1,N) broadcasts against full (B,N).
func isRowBroadcast(full, row tensor.Shape) bool {
	return len(full) == 2 && len(row) == 2 && row[0] == 1 && row[1] == full[1]
}

// Transpose swaps the two axes of a 2D tensor.
func (b *Backend) Transpose(t *tensor.RawTensor) *tensor.RawTensor {
	shape := t.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("cpu: transpose expects 2D tensor, got %v", shape))
	}
	rows, cols := shape[0], shape[1]
	out := tensor.MustRaw(tensor.Shape{cols, rows}, tensor.Float32)
	src, dst := t.AsFloat32(), out.AsFloat32()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dst[j*rows+i] = src[i*cols+j]
		}
	}
	return out
}

// Reshape returns a view of t under a new shape.
func (b *Backend) Reshape(t *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	out, err := t.WithShape(shape)
	if err != nil {
		panic(fmt.Sprintf("cpu: reshape: %v", err))
	}
	return out
}

// ReLU applies max(0, x) element-wise.
func (b *Backend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	out := tensor.MustRaw(x.Shape(), tensor.Float32)
	src, dst := x.AsFloat32(), out.AsFloat32()
	for i, v := range src {
		if v > 0 {
			dst[i] = v
		}
	}
	return out
}

// Softmax normalizes each row of a 2D tensor, shifting by the row max for
// numerical stability.
func (b *Backend) Softmax(x *tensor.RawTensor) *tensor.RawTensor {
	shape := x.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("cpu: softmax expects 2D tensor, got %v", shape))
	}
	rows, cols := shape[0], shape[1]
	out := tensor.MustRaw(shape, tensor.Float32)
	src, dst := x.AsFloat32(), out.AsFloat32()
	for i := 0; i < rows; i++ {
		softmaxRow(src[i*cols:(i+1)*cols], dst[i*cols:(i+1)*cols])
	}
	return out
}

// softmaxRow writes softmax(src) into dst.
func softmaxRow(src, dst []float32) {
	maxVal := src[0]
	for _, v := range src[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	var sum float32
	for i, v := range src {
		dst[i] = float32(math.Exp(float64(v - maxVal)))
		sum += dst[i]
	}
	for i := range dst {
		dst[i] /= sum
	}
}

// CrossEntropy computes the mean negative log-likelihood of integer targets
// under logits, using the log-sum-exp trick. Logits are [batch, classes],
// targets [batch] int32 class indices. Returns a scalar tensor.
func (b *Backend) CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("cpu: cross-entropy expects 2D logits, got %v", shape))
	}
	batch, classes := shape[0], shape[1]
	if targets.NumElements() != batch {
		panic(fmt.Sprintf("cpu: cross-entropy batch mismatch: %d logits rows, %d targets", batch, targets.NumElements()))
	}

	logitData := logits.AsFloat32()
	targetData := targets.AsInt32()

	var total float32
	for i := 0; i < batch; i++ {
		row := logitData[i*classes : (i+1)*classes]
		target := int(targetData[i])
		if target < 0 || target >= classes {
			panic(fmt.Sprintf("cpu: cross-entropy target %d out of range [0,%d)", target, classes))
		}
		total += -logSoftmaxAt(row, target)
	}
	return tensor.Scalar(total / float32(batch))
}

// logSoftmaxAt returns log_softmax(row)[idx] without materializing the full
// log-softmax vector.
func logSoftmaxAt(row []float32, idx int) float32 {
	maxVal := row[0]
	for _, v := range row[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	var sumExp float64
	for _, v := range row {
		sumExp += math.Exp(float64(v - maxVal))
	}
	logSumExp := float64(maxVal) + math.Log(sumExp)
	return row[idx] - float32(logSumExp)
}
