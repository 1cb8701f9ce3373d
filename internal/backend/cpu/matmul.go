package cpu

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/refnet-ml/refnet/internal/tensor"
)

// matmulParallelThreshold is the minimum number of output rows before MatMul
// fans out across goroutines. Small evaluation batches stay serial.
const matmulParallelThreshold = 16

// MatMul multiplies two 2D tensors: (M,K) @ (K,N) -> (M,N).
//
// The inner loop is ordered i-k-j so both operands stream through memory
// row-major. Output rows are independent, so they are chunked across
// NumCPU goroutines for large M.
func (b *Backend) MatMul(a, c *tensor.RawTensor) *tensor.RawTensor {
	aShape, cShape := a.Shape(), c.Shape()
	if len(aShape) != 2 || len(cShape) != 2 {
		panic(fmt.Sprintf("cpu: matmul expects 2D tensors, got %v and %v", aShape, cShape))
	}
	m, k := aShape[0], aShape[1]
	k2, n := cShape[0], cShape[1]
	if k != k2 {
		panic(fmt.Sprintf("cpu: matmul inner dimensions differ: %v @ %v", aShape, cShape))
	}

	out := tensor.MustRaw(tensor.Shape{m, n}, tensor.Float32)
	aData, cData, outData := a.AsFloat32(), c.AsFloat32(), out.AsFloat32()

	multiplyRows := func(rowStart, rowEnd int) {
		for i := rowStart; i < rowEnd; i++ {
			outRow := outData[i*n : (i+1)*n]
			for kk := 0; kk < k; kk++ {
				av := aData[i*k+kk]
				if av == 0 {
					continue
				}
				cRow := cData[kk*n : (kk+1)*n]
				for j, cv := range cRow {
					outRow[j] += av * cv
				}
			}
		}
	}

	if m < matmulParallelThreshold {
		multiplyRows(0, m)
		return out
	}

	workers := runtime.NumCPU()
	if workers > m {
		workers = m
	}
	chunk := (m + workers - 1) / workers

	var g errgroup.Group
	for start := 0; start < m; start += chunk {
		start := start
		end := start + chunk
		if end > m {
			end = m
		}
		g.Go(func() error {
			multiplyRows(start, end)
			return nil
		})
	}
	// Workers never return errors; Wait is just the join point.
	_ = g.Wait()

	return out
}
