package dataset

import (
	"encoding/binary"
	"fmt"
	"io"
)

// IDX magic numbers: 0x00000803 for uint8 rank-3 tensors (images),
// 0x00000801 for uint8 rank-1 tensors (labels).
const (
	idxImageMagic = 2051
	idxLabelMagic = 2049
)

// decodeIDXImages reads an IDX image file and returns one flattened,
// normalized float32 slice per image. Pixel bytes 0..255 map to [0,1].
func decodeIDXImages(r io.Reader) ([][]float32, error) {
	var header [4]uint32
	for i := range header {
		if err := binary.Read(r, binary.BigEndian, &header[i]); err != nil {
			return nil, fmt.Errorf("read image header: %w", err)
		}
	}
	if header[0] != idxImageMagic {
		return nil, fmt.Errorf("bad image magic %d, want %d", header[0], idxImageMagic)
	}
	count, rows, cols := int(header[1]), int(header[2]), int(header[3])
	if rows != ImageRows || cols != ImageCols {
		return nil, fmt.Errorf("unexpected image size %dx%d, want %dx%d", rows, cols, ImageRows, ImageCols)
	}

	pixels := rows * cols
	buf := make([]byte, pixels)
	images := make([][]float32, count)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read image %d: %w", i, err)
		}
		img := make([]float32, pixels)
		for j, b := range buf {
			img[j] = float32(b) / 255.0
		}
		images[i] = img
	}
	return images, nil
}

// decodeIDXLabels reads an IDX label file into class indices.
func decodeIDXLabels(r io.Reader) ([]int32, error) {
	var header [2]uint32
	for i := range header {
		if err := binary.Read(r, binary.BigEndian, &header[i]); err != nil {
			return nil, fmt.Errorf("read label header: %w", err)
		}
	}
	if header[0] != idxLabelMagic {
		return nil, fmt.Errorf("bad label magic %d, want %d", header[0], idxLabelMagic)
	}
	count := int(header[1])

	buf := make([]byte, count)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	labels := make([]int32, count)
	for i, b := range buf {
		if b >= NumClasses {
			return nil, fmt.Errorf("label %d value %d out of range", i, b)
		}
		labels[i] = int32(b)
	}
	return labels, nil
}
