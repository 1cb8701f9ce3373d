// Package pipeline drives the end-to-end job: load the dataset, train the
// branching classifier for a fixed number of epochs with a held-out
// evaluation after each one, then export the trained graph.
package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"os"

	"github.com/refnet-ml/refnet/internal/autodiff"
	"github.com/refnet-ml/refnet/internal/backend/cpu"
	"github.com/refnet-ml/refnet/internal/dataset"
	"github.com/refnet-ml/refnet/internal/model"
	"github.com/refnet-ml/refnet/internal/nn"
	"github.com/refnet-ml/refnet/internal/onnx"
	"github.com/refnet-ml/refnet/internal/optim"
	"github.com/refnet-ml/refnet/internal/tensor"
)

// Phase is the pipeline's current stage. Transitions are strictly forward;
// any error aborts the run without reaching PhaseDone.
type Phase int

// Pipeline stages in order.
const (
	PhaseInit Phase = iota
	PhaseTrain
	PhaseEval
	PhaseExport
	PhaseDone
)

// String returns the stage name.
func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseTrain:
		return "train"
	case PhaseEval:
		return "eval"
	case PhaseExport:
		return "export"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Config holds the training hyperparameters and output location. Zero
// values fall back to the reference defaults.
type Config struct {
	Epochs        int     // default 10
	BatchSize     int     // default 64
	EvalBatchSize int     // default 1000
	LR            float32 // default 0.01
	Momentum      float32 // default 0
	Seed          int64   // weight init and shuffle seed
	ModelPath     string  // exported model file, default neural_network.onnx
	Model         model.Config
	Logger        *slog.Logger
	Out           io.Writer // epoch report destination, default os.Stdout
}

func (c *Config) applyDefaults() {
	if c.Epochs == 0 {
		c.Epochs = 10
	}
	if c.BatchSize == 0 {
		c.BatchSize = 64
	}
	if c.EvalBatchSize == 0 {
		c.EvalBatchSize = 1000
	}
	if c.LR == 0 {
		c.LR = 0.01
	}
	if c.ModelPath == "" {
		c.ModelPath = "neural_network.onnx"
	}
	if c.Model == (model.Config{}) {
		c.Model = model.DefaultConfig()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Out == nil {
		c.Out = os.Stdout
	}
}

// EpochStats is the held-out evaluation result after one training epoch.
type EpochStats struct {
	Epoch    int
	Loss     float64 // mean cross-entropy over the test split
	Accuracy float64 // percent of correct argmax predictions
}

// Pipeline is one training-and-export run over a dataset source.
type Pipeline struct {
	cfg     Config
	source  dataset.Source
	backend *autodiff.Backend
	net     *model.BranchNet
	opt     *optim.SGD
	rng     *rand.Rand
	phase   Phase
	history []EpochStats
}

// New prepares a run. Weights are initialized here so two pipelines built
// with the same seed start identically.
func New(cfg Config, source dataset.Source) (*Pipeline, error) {
	cfg.applyDefaults()

	rng := rand.New(rand.NewSource(cfg.Seed))
	net, err := model.New(cfg.Model, rng)
	if err != nil {
		return nil, fmt.Errorf("build model: %w", err)
	}

	return &Pipeline{
		cfg:     cfg,
		source:  source,
		backend: autodiff.New(cpu.New()),
		net:     net,
		opt:     optim.NewSGD(net.Parameters(), optim.SGDConfig{LR: cfg.LR, Momentum: cfg.Momentum}),
		rng:     rng,
		phase:   PhaseInit,
	}, nil
}

// Phase returns the current stage.
func (p *Pipeline) Phase() Phase { return p.phase }

// Net returns the model being trained.
func (p *Pipeline) Net() *model.BranchNet { return p.net }

// History returns the per-epoch evaluation results so far.
func (p *Pipeline) History() []EpochStats { return p.history }

// Run executes the full job: train/eval for every epoch, then export.
// The first error stops the run; nothing is exported on failure.
func (p *Pipeline) Run() error {
	log := p.cfg.Logger

	train, err := p.source.Train()
	if err != nil {
		return fmt.Errorf("load training data: %w", err)
	}
	test, err := p.source.Test()
	if err != nil {
		return fmt.Errorf("load test data: %w", err)
	}
	log.Info("dataset ready",
		"train_samples", train.Len(),
		"test_samples", test.Len(),
		"parameters", p.net.NumParameters())

	for epoch := 1; epoch <= p.cfg.Epochs; epoch++ {
		p.phase = PhaseTrain
		if err := p.trainEpoch(epoch, train); err != nil {
			return fmt.Errorf("epoch %d: %w", epoch, err)
		}

		p.phase = PhaseEval
		stats, err := p.evaluate(epoch, test)
		if err != nil {
			return fmt.Errorf("epoch %d eval: %w", epoch, err)
		}
		p.history = append(p.history, stats)
		fmt.Fprintf(p.cfg.Out, "Epoch %d - Test loss: %.4f, Accuracy: %.2f%%\n",
			stats.Epoch, stats.Loss, stats.Accuracy)
	}

	p.phase = PhaseExport
	if err := onnx.ExportFile(p.cfg.ModelPath, p.net); err != nil {
		return fmt.Errorf("export model: %w", err)
	}
	log.Info("model exported", "path", p.cfg.ModelPath)

	p.phase = PhaseDone
	return nil
}

// trainEpoch runs one pass over the training split in shuffled mini-batches.
// The final partial batch is kept.
func (p *Pipeline) trainEpoch(epoch int, split *dataset.Split) error {
	tape := p.backend.Tape()
	tape.StartRecording()
	defer tape.StopRecording()

	order := p.rng.Perm(split.Len())

	var lossSum float64
	batches := 0
	for start := 0; start < len(order); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(order))
		inputs, targets, err := makeBatch(split, order[start:end])
		if err != nil {
			return err
		}

		logits := p.net.Forward(p.backend, inputs)
		loss := p.backend.CrossEntropy(logits, targets)
		lossSum += float64(loss.AsFloat32()[0])
		batches++

		grads := tape.Backward(tensor.Scalar(1), p.backend)
		p.opt.Step(grads)
		tape.Clear()
	}

	p.cfg.Logger.Debug("train epoch finished",
		"epoch", epoch,
		"batches", batches,
		"mean_train_loss", lossSum/float64(batches))
	return nil
}

// evaluate computes mean loss and accuracy over the test split. The tape
// is stopped, so nothing here affects the next training epoch.
func (p *Pipeline) evaluate(epoch int, split *dataset.Split) (EpochStats, error) {
	tape := p.backend.Tape()
	tape.StopRecording()

	order := make([]int, split.Len())
	for i := range order {
		order[i] = i
	}

	var lossSum float64
	correct, total := 0, 0
	for start := 0; start < len(order); start += p.cfg.EvalBatchSize {
		end := min(start+p.cfg.EvalBatchSize, len(order))
		inputs, targets, err := makeBatch(split, order[start:end])
		if err != nil {
			return EpochStats{}, err
		}

		logits := p.net.Forward(p.backend, inputs)
		loss := p.backend.CrossEntropy(logits, targets)

		n := end - start
		lossSum += float64(loss.AsFloat32()[0]) * float64(n)
		correct += nn.CountCorrect(logits, targets)
		total += n
	}

	meanLoss := lossSum / float64(total)
	accuracy := 100 * float64(correct) / float64(total)
	if math.IsNaN(meanLoss) || math.IsInf(meanLoss, 0) {
		return EpochStats{}, fmt.Errorf("loss diverged to %v", meanLoss)
	}
	return EpochStats{Epoch: epoch, Loss: meanLoss, Accuracy: accuracy}, nil
}

// makeBatch gathers the samples at the given indices into input and target
// tensors of shape [n, pixels] and [n].
func makeBatch(split *dataset.Split, indices []int) (inputs, targets *tensor.RawTensor, err error) {
	n := len(indices)
	pixels := len(split.Images[indices[0]])

	x := make([]float32, n*pixels)
	y := make([]int32, n)
	for i, idx := range indices {
		copy(x[i*pixels:(i+1)*pixels], split.Images[idx])
		y[i] = split.Labels[idx]
	}

	inputs, err = tensor.FromFloat32(x, tensor.Shape{n, pixels})
	if err != nil {
		return nil, nil, fmt.Errorf("batch inputs: %w", err)
	}
	targets, err = tensor.FromInt32(y, tensor.Shape{n})
	if err != nil {
		return nil, nil, fmt.Errorf("batch targets: %w", err)
	}
	return inputs, targets, nil
}
