package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/refnet-ml/refnet/internal/dataset"
	"github.com/refnet-ml/refnet/internal/export"
)

func newDatasetCmd() *cobra.Command {
	var (
		cacheDir string
		outDir   string
		split    string
	)

	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Download the dataset and export it as raw binary fixtures",
		Long: `Download the handwritten-digit dataset (cached across runs) and write
each sample as image_<i>.bin (784 little-endian float32 values) plus a
single labels.bin with one little-endian uint32 per sample.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			source := dataset.NewMNIST(cacheDir)

			var (
				s   *dataset.Split
				err error
			)
			switch split {
			case "train":
				s, err = source.Train()
			case "test":
				s, err = source.Test()
			default:
				return fmt.Errorf("unknown split %q, want train or test", split)
			}
			if err != nil {
				return err
			}

			exp := &export.Exporter{Dir: outDir, Logger: slog.Default(), Out: cmd.OutOrStdout()}
			if err := exp.Export(s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d samples to %s\n", s.Len(), outDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&cacheDir, "cache-dir", ".cache/mnist", "directory for downloaded archives")
	cmd.Flags().StringVar(&outDir, "out", "fixtures", "output directory for fixture files")
	cmd.Flags().StringVar(&split, "split", "test", "dataset split to export (train or test)")
	return cmd
}
