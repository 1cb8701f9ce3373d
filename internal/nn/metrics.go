package nn

import "github.com/refnet-ml/refnet/internal/tensor"

// Argmax returns the index of the maximum score in each row of a 2D logits
// tensor. Ties resolve to the lowest index.
func Argmax(logits *tensor.RawTensor) []int {
	shape := logits.Shape()
	rows, cols := shape[0], shape[1]
	data := logits.AsFloat32()

	out := make([]int, rows)
	for i := 0; i < rows; i++ {
		row := data[i*cols : (i+1)*cols]
		best := 0
		for j, v := range row[1:] {
			if v > row[best] {
				best = j + 1
			}
		}
		out[i] = best
	}
	return out
}

// CountCorrect returns how many argmax predictions equal the int32 targets.
func CountCorrect(logits, targets *tensor.RawTensor) int {
	preds := Argmax(logits)
	targetData := targets.AsInt32()
	correct := 0
	for i, p := range preds {
		if int32(p) == targetData[i] {
			correct++
		}
	}
	return correct
}
