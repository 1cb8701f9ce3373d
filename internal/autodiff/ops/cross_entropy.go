package ops

import (
	"math"

	"github.com/refnet-ml/refnet/internal/tensor"
)

// CrossEntropyOp records the fused softmax + cross-entropy loss.
//
// Forward: loss = mean(-log_softmax(logits)[targets]).
//
// Backward: d(loss)/d(logits[b,i]) = (softmax(logits[b])[i] - 1{i==target_b}) / batch.
// Fusing the two keeps the gradient a single subtraction, which is why the
// loss is computed by the backend rather than composed from Softmax and Log.
type CrossEntropyOp struct {
	logits  *tensor.RawTensor // [batch, classes]
	targets *tensor.RawTensor // [batch] int32
	output  *tensor.RawTensor // scalar
}

// NewCrossEntropyOp creates a new CrossEntropyOp.
func NewCrossEntropyOp(logits, targets, output *tensor.RawTensor) *CrossEntropyOp {
	return &CrossEntropyOp{logits: logits, targets: targets, output: output}
}

// Inputs returns [logits]. Targets are class indices and are not
// differentiated.
func (op *CrossEntropyOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.logits}
}

// Output returns the scalar loss.
func (op *CrossEntropyOp) Output() *tensor.RawTensor { return op.output }

// Backward computes (softmax - one_hot) / batch, scaled by the upstream
// gradient.
func (op *CrossEntropyOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	shape := op.logits.Shape()
	batch, classes := shape[0], shape[1]

	grad := tensor.MustRaw(shape, tensor.Float32)
	logitData := op.logits.AsFloat32()
	targetData := op.targets.AsInt32()
	gradData := grad.AsFloat32()
	scale := outputGrad.AsFloat32()[0] / float32(batch)

	probs := make([]float32, classes)
	for b := 0; b < batch; b++ {
		row := logitData[b*classes : (b+1)*classes]
		softmaxInto(row, probs)
		target := int(targetData[b])
		for i, p := range probs {
			if i == target {
				p -= 1.0
			}
			gradData[b*classes+i] = scale * p
		}
	}
	return []*tensor.RawTensor{grad}
}

// softmaxInto writes a numerically stable softmax of row into dst.
func softmaxInto(row, dst []float32) {
	maxVal := row[0]
	for _, v := range row[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	var sum float32
	for i, v := range row {
		dst[i] = float32(math.Exp(float64(v - maxVal)))
		sum += dst[i]
	}
	for i := range dst {
		dst[i] /= sum
	}
}
