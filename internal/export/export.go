// Package export writes dataset splits as raw binary fixtures for
// downstream inference runtimes.
//
// Layout of an exported directory:
//
//	image_<i>.bin  — 784 little-endian float32 values (3,136 bytes)
//	labels.bin     — one little-endian uint32 per sample, in index order
//
// Indices follow the split's enumeration order, so re-exporting the same
// split produces byte-identical files.
package export

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/refnet-ml/refnet/internal/dataset"
)

// progressEvery controls how often a progress line is emitted.
const progressEvery = 100

// Exporter writes fixture files for one split.
type Exporter struct {
	// Dir is the output directory, created if missing. Existing files
	// with the same names are overwritten.
	Dir    string
	Logger *slog.Logger
	// Out receives the progress lines; defaults to os.Stdout. The
	// "saved N/total" shape is part of the console contract.
	Out io.Writer
}

func (e *Exporter) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Exporter) out() io.Writer {
	if e.Out != nil {
		return e.Out
	}
	return os.Stdout
}

// Export writes every sample of the split into e.Dir.
func (e *Exporter) Export(split *dataset.Split) error {
	if err := split.Validate(); err != nil {
		return fmt.Errorf("invalid split: %w", err)
	}
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	total := split.Len()
	for i, img := range split.Images {
		if err := e.writeImage(i, img); err != nil {
			return err
		}
		if (i+1)%progressEvery == 0 || i+1 == total {
			fmt.Fprintf(e.out(), "saved %d/%d\n", i+1, total)
			e.logger().Debug("saving fixtures", "saved", i+1, "total", total)
		}
	}
	if err := e.writeLabels(split.Labels); err != nil {
		return err
	}
	return nil
}

func (e *Exporter) writeImage(index int, pixels []float32) error {
	buf := make([]byte, len(pixels)*4)
	for i, v := range pixels {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	path := filepath.Join(e.Dir, fmt.Sprintf("image_%d.bin", index))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (e *Exporter) writeLabels(labels []int32) error {
	buf := make([]byte, len(labels)*4)
	for i, l := range labels {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(l))
	}
	path := filepath.Join(e.Dir, "labels.bin")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
