package dataset

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// idxImages builds a gzipped IDX image file with the given pixel value
// repeated in every position.
func idxImages(t *testing.T, count int, pixel byte) []byte {
	t.Helper()
	var raw bytes.Buffer
	for _, v := range []uint32{idxImageMagic, uint32(count), ImageRows, ImageCols} {
		require.NoError(t, binary.Write(&raw, binary.BigEndian, v))
	}
	raw.Write(bytes.Repeat([]byte{pixel}, count*ImagePixels))
	return gz(t, raw.Bytes())
}

func idxLabels(t *testing.T, labels []byte) []byte {
	t.Helper()
	var raw bytes.Buffer
	for _, v := range []uint32{idxLabelMagic, uint32(len(labels))} {
		require.NoError(t, binary.Write(&raw, binary.BigEndian, v))
	}
	raw.Write(labels)
	return gz(t, raw.Bytes())
}

func gz(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecodeIDXImages(t *testing.T) {
	var raw bytes.Buffer
	for _, v := range []uint32{idxImageMagic, 2, ImageRows, ImageCols} {
		require.NoError(t, binary.Write(&raw, binary.BigEndian, v))
	}
	raw.Write(bytes.Repeat([]byte{255}, ImagePixels))
	raw.Write(bytes.Repeat([]byte{51}, ImagePixels))

	images, err := decodeIDXImages(&raw)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Len(t, images[0], ImagePixels)
	assert.InDelta(t, 1.0, float64(images[0][0]), 1e-6)
	assert.InDelta(t, 0.2, float64(images[1][0]), 1e-6)
}

func TestDecodeIDXImagesBadMagic(t *testing.T) {
	var raw bytes.Buffer
	for _, v := range []uint32{9999, 1, ImageRows, ImageCols} {
		require.NoError(t, binary.Write(&raw, binary.BigEndian, v))
	}
	_, err := decodeIDXImages(&raw)
	assert.ErrorContains(t, err, "magic")
}

func TestDecodeIDXImagesTruncated(t *testing.T) {
	var raw bytes.Buffer
	for _, v := range []uint32{idxImageMagic, 2, ImageRows, ImageCols} {
		require.NoError(t, binary.Write(&raw, binary.BigEndian, v))
	}
	raw.Write(bytes.Repeat([]byte{1}, ImagePixels/2))
	_, err := decodeIDXImages(&raw)
	assert.Error(t, err)
}

func TestDecodeIDXLabels(t *testing.T) {
	var raw bytes.Buffer
	for _, v := range []uint32{idxLabelMagic, 3} {
		require.NoError(t, binary.Write(&raw, binary.BigEndian, v))
	}
	raw.Write([]byte{1, 4, 7})

	labels, err := decodeIDXLabels(&raw)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 4, 7}, labels)
}

func TestDecodeIDXLabelsOutOfRange(t *testing.T) {
	var raw bytes.Buffer
	for _, v := range []uint32{idxLabelMagic, 1} {
		require.NoError(t, binary.Write(&raw, binary.BigEndian, v))
	}
	raw.Write([]byte{10})
	_, err := decodeIDXLabels(&raw)
	assert.Error(t, err)
}

func TestSplitValidate(t *testing.T) {
	good := Split{
		Images: [][]float32{make([]float32, ImagePixels)},
		Labels: []int32{3},
	}
	assert.NoError(t, good.Validate())

	lengthMismatch := Split{Images: good.Images, Labels: []int32{1, 2}}
	assert.Error(t, lengthMismatch.Validate())

	badPixels := Split{Images: [][]float32{make([]float32, 10)}, Labels: []int32{0}}
	assert.Error(t, badPixels.Validate())

	badLabel := Split{Images: good.Images, Labels: []int32{12}}
	assert.Error(t, badLabel.Validate())
}

func TestMNISTReadsFromCache(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, mnistFiles.testImages), idxImages(t, 3, 128), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, mnistFiles.testLabels), idxLabels(t, []byte{0, 5, 9}), 0o644))

	m := NewMNIST(dir)
	// Unreachable base URL: any network hit fails loudly, so passing
	// means the cache was used.
	m.BaseURL = "http://invalid.localhost/"

	split, err := m.Test()
	require.NoError(t, err)
	assert.Equal(t, 3, split.Len())
	assert.Equal(t, []int32{0, 5, 9}, split.Labels)
	assert.InDelta(t, 128.0/255, float64(split.Images[0][0]), 1e-6)

	// Second call returns the memoized split.
	again, err := m.Test()
	require.NoError(t, err)
	assert.Same(t, split, again)
}

func TestMNISTDownloads(t *testing.T) {
	files := map[string][]byte{
		"/" + mnistFiles.trainImages: idxImages(t, 2, 10),
		"/" + mnistFiles.trainLabels: idxLabels(t, []byte{3, 8}),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	defer srv.Close()

	dir := t.TempDir()
	m := NewMNIST(dir)
	m.BaseURL = srv.URL + "/"

	split, err := m.Train()
	require.NoError(t, err)
	assert.Equal(t, 2, split.Len())
	assert.Equal(t, []int32{3, 8}, split.Labels)

	// The archives landed in the cache for future runs.
	_, err = os.Stat(filepath.Join(dir, mnistFiles.trainImages))
	assert.NoError(t, err)
}

func TestMNISTUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	m := NewMNIST(t.TempDir())
	m.BaseURL = srv.URL + "/"

	_, err := m.Train()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMemorySource(t *testing.T) {
	m := &Memory{
		TrainSplit: Split{Images: [][]float32{make([]float32, ImagePixels)}, Labels: []int32{1}},
		TestSplit:  Split{Images: [][]float32{make([]float32, ImagePixels)}, Labels: []int32{2}},
	}
	train, err := m.Train()
	require.NoError(t, err)
	assert.Equal(t, []int32{1}, train.Labels)
	test, err := m.Test()
	require.NoError(t, err)
	assert.Equal(t, []int32{2}, test.Labels)
}
