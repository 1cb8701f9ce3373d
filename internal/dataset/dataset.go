// Package dataset provides ordered access to the handwritten-digit dataset.
//
// Enumeration order is part of the contract: every Split enumerates its
// samples in the order the underlying IDX files store them, and that order
// is stable across runs for an unchanged dataset version. The exporter
// relies on it for byte-identical output; the training loop shuffles
// indices on top of it without disturbing the source.
package dataset

import (
	"errors"
	"fmt"
)

// ErrUnavailable indicates the dataset could not be fetched or materialized.
// It aborts the pipeline before any epoch runs.
var ErrUnavailable = errors.New("dataset unavailable")

// Image dimensions of the dataset.
const (
	ImageRows   = 28
	ImageCols   = 28
	ImagePixels = ImageRows * ImageCols
	NumClasses  = 10
)

// Split is one ordered, read-only collection of samples. Images are
// row-major float32 intensities in [0,1]; labels are class indices in [0,9].
// Index i of Images and Labels is the same sample.
type Split struct {
	Images [][]float32
	Labels []int32
}

// Len returns the number of samples in the split.
func (s *Split) Len() int { return len(s.Images) }

// Validate checks the split's internal consistency.
func (s *Split) Validate() error {
	if len(s.Images) != len(s.Labels) {
		return fmt.Errorf("split has %d images but %d labels", len(s.Images), len(s.Labels))
	}
	for i, img := range s.Images {
		if len(img) != ImagePixels {
			return fmt.Errorf("sample %d has %d pixels, want %d", i, len(img), ImagePixels)
		}
	}
	for i, l := range s.Labels {
		if l < 0 || l >= NumClasses {
			return fmt.Errorf("sample %d label %d out of range [0,%d)", i, l, NumClasses)
		}
	}
	return nil
}

// Source is an ordered sample source over the two disjoint dataset splits.
// Both methods are read-only and may block on I/O the first time.
type Source interface {
	// Train returns the training split (60,000 samples for the real dataset).
	Train() (*Split, error)
	// Test returns the held-out split (10,000 samples for the real dataset).
	Test() (*Split, error)
}

// Memory is an in-memory Source used by tests and synthetic runs.
type Memory struct {
	TrainSplit Split
	TestSplit  Split
}

// Train returns the in-memory training split.
func (m *Memory) Train() (*Split, error) { return &m.TrainSplit, nil }

// Test returns the in-memory test split.
func (m *Memory) Test() (*Split, error) { return &m.TestSplit, nil }
