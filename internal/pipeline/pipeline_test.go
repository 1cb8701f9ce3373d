package pipeline

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refnet-ml/refnet/internal/dataset"
	"github.com/refnet-ml/refnet/internal/model"
)

// syntheticSource builds a deterministic in-memory dataset where the label
// is encoded in the brightest pixel, so even one epoch learns something.
func syntheticSource(trainN, testN int) *dataset.Memory {
	rng := rand.New(rand.NewSource(99))
	build := func(n int) dataset.Split {
		images := make([][]float32, n)
		labels := make([]int32, n)
		for i := range images {
			label := int32(i % dataset.NumClasses)
			img := make([]float32, dataset.ImagePixels)
			for j := range img {
				img[j] = rng.Float32() * 0.1
			}
			img[label] = 1
			images[i] = img
			labels[i] = label
		}
		return dataset.Split{Images: images, Labels: labels}
	}
	return &dataset.Memory{TrainSplit: build(trainN), TestSplit: build(testN)}
}

func smallConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Epochs:        1,
		BatchSize:     16,
		EvalBatchSize: 16,
		Seed:          1,
		ModelPath:     filepath.Join(t.TempDir(), "neural_network.onnx"),
		Model: model.Config{
			Inputs:     dataset.ImagePixels,
			TrunkOut:   16,
			LeftHidden: 12,
			LeftOut:    8,
			RightOut:   8,
			Classes:    dataset.NumClasses,
		},
	}
}

func TestRunCompletes(t *testing.T) {
	var report bytes.Buffer
	cfg := smallConfig(t)
	cfg.Out = &report

	p, err := New(cfg, syntheticSource(64, 32))
	require.NoError(t, err)
	assert.Equal(t, PhaseInit, p.Phase())

	require.NoError(t, p.Run())
	assert.Equal(t, PhaseDone, p.Phase())

	history := p.History()
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].Epoch)
	assert.False(t, history[0].Loss <= 0, "loss should be positive")
	assert.GreaterOrEqual(t, history[0].Accuracy, 0.0)
	assert.LessOrEqual(t, history[0].Accuracy, 100.0)

	// One report line per epoch in the fixed format.
	re := regexp.MustCompile(`^Epoch 1 - Test loss: \d+\.\d{4}, Accuracy: \d+\.\d{2}%\n$`)
	assert.Regexp(t, re, report.String())

	// The trained graph was exported.
	info, err := os.Stat(cfg.ModelPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestTrainingReducesLoss(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Epochs = 5
	cfg.Out = &bytes.Buffer{}
	cfg.LR = 0.05

	p, err := New(cfg, syntheticSource(128, 64))
	require.NoError(t, err)
	require.NoError(t, p.Run())

	history := p.History()
	require.Len(t, history, 5)
	assert.Less(t, history[4].Loss, history[0].Loss,
		"loss after 5 epochs (%v) should beat epoch 1 (%v)", history[4].Loss, history[0].Loss)
}

func TestRunDeterministicForSeed(t *testing.T) {
	run := func() []EpochStats {
		cfg := smallConfig(t)
		cfg.Out = &bytes.Buffer{}
		p, err := New(cfg, syntheticSource(64, 32))
		require.NoError(t, err)
		require.NoError(t, p.Run())
		return p.History()
	}
	assert.Equal(t, run(), run())
}

func TestRunAbortsWhenDatasetUnavailable(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Out = &bytes.Buffer{}

	p, err := New(cfg, &failingSource{})
	require.NoError(t, err)

	err = p.Run()
	require.Error(t, err)
	assert.ErrorIs(t, err, dataset.ErrUnavailable)
	assert.NotEqual(t, PhaseDone, p.Phase())

	// Nothing was exported.
	_, statErr := os.Stat(cfg.ModelPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestNewRejectsBadModelConfig(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Model.RightOut = cfg.Model.LeftOut + 1

	_, err := New(cfg, syntheticSource(8, 8))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrShapeMismatch)
}

type failingSource struct{}

func (f *failingSource) Train() (*dataset.Split, error) {
	return nil, fmt.Errorf("%w: simulated outage", dataset.ErrUnavailable)
}

func (f *failingSource) Test() (*dataset.Split, error) {
	return nil, fmt.Errorf("%w: simulated outage", dataset.ErrUnavailable)
}
