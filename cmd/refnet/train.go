package main

import (
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/refnet-ml/refnet/internal/dataset"
	"github.com/refnet-ml/refnet/internal/pipeline"
)

func newTrainCmd() *cobra.Command {
	var (
		cacheDir      string
		outDir        string
		epochs        int
		batchSize     int
		evalBatchSize int
		lr            float32
		momentum      float32
		seed          int64
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the branching classifier and export it as an ONNX graph",
		Long: `Train the branching feed-forward classifier on the handwritten-digit
dataset with SGD, evaluating on the held-out split after every epoch, then
write the trained graph to <out-dir>/neural_network.onnx.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			source := dataset.NewMNIST(cacheDir)

			p, err := pipeline.New(pipeline.Config{
				Epochs:        epochs,
				BatchSize:     batchSize,
				EvalBatchSize: evalBatchSize,
				LR:            lr,
				Momentum:      momentum,
				Seed:          seed,
				ModelPath:     filepath.Join(outDir, "neural_network.onnx"),
				Logger:        slog.Default(),
				Out:           cmd.OutOrStdout(),
			}, source)
			if err != nil {
				return err
			}
			return p.Run()
		},
	}

	cmd.Flags().StringVar(&cacheDir, "cache-dir", ".cache/mnist", "directory for downloaded archives")
	cmd.Flags().StringVar(&outDir, "out-dir", ".", "directory for the exported model")
	cmd.Flags().IntVar(&epochs, "epochs", 10, "number of training epochs")
	cmd.Flags().IntVar(&batchSize, "batch-size", 64, "training mini-batch size")
	cmd.Flags().IntVar(&evalBatchSize, "eval-batch-size", 1000, "evaluation batch size")
	cmd.Flags().Float32Var(&lr, "lr", 0.01, "SGD learning rate")
	cmd.Flags().Float32Var(&momentum, "momentum", 0, "SGD momentum factor")
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed for weight init and shuffling")
	return cmd
}
