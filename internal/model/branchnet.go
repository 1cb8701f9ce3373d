// Package model defines the branching feed-forward classifier the pipeline
// trains and exports.
//
// The forward pass is deliberately not a sequential stack: the trunk output
// fans out into a two-layer left path and a one-layer right path whose
// outputs merge by elementwise addition before the classification head.
// The topology is held as an explicit list of typed operator nodes; the
// forward pass executes that list and the ONNX exporter serializes the same
// list, so the exported graph cannot diverge from what was trained.
package model

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/refnet-ml/refnet/internal/nn"
	"github.com/refnet-ml/refnet/internal/tensor"
)

// ErrShapeMismatch is returned when the two branch output widths disagree,
// which would make the elementwise merge undefined.
var ErrShapeMismatch = errors.New("branch merge width mismatch")

// Tensor names of the graph boundary.
const (
	InputName  = "input"
	OutputName = "scores"
)

// NodeKind identifies the operator a graph node applies.
type NodeKind int

// Operator kinds appearing in the topology.
const (
	KindLinear NodeKind = iota
	KindReLU
	KindAdd
)

// String returns the operator name.
func (k NodeKind) String() string {
	switch k {
	case KindLinear:
		return "Linear"
	case KindReLU:
		return "ReLU"
	case KindAdd:
		return "Add"
	default:
		return "Unknown"
	}
}

// Node is one typed operator in the forward graph. Inputs and Output are
// tensor edge names; Layer is set only for KindLinear nodes.
type Node struct {
	Kind   NodeKind
	Name   string
	Inputs []string
	Output string
	Layer  *nn.Linear
}

// Config holds the layer widths. The defaults reproduce the reference
// topology; widths are configurable so tests can exercise the merge check.
type Config struct {
	Inputs     int // flattened image width
	TrunkOut   int
	LeftHidden int
	LeftOut    int
	RightOut   int
	Classes    int
}

// DefaultConfig returns the fixed reference topology:
// trunk 784→512, left 512→200→100, right 512→100, head 100→10.
func DefaultConfig() Config {
	return Config{
		Inputs:     784,
		TrunkOut:   512,
		LeftHidden: 200,
		LeftOut:    100,
		RightOut:   100,
		Classes:    10,
	}
}

// BranchNet is the branching classifier. Weights live in the layers'
// parameters and are mutated in place by the optimizer during training.
type BranchNet struct {
	cfg    Config
	trunk  *nn.Linear
	left1  *nn.Linear
	left2  *nn.Linear
	right  *nn.Linear
	head   *nn.Linear
	nodes  []Node
	params []*nn.Parameter
}

// New builds a BranchNet with Xavier-initialized weights drawn from rng.
// It fails with ErrShapeMismatch when the left and right branch output
// widths differ, before any layer is allocated.
func New(cfg Config, rng *rand.Rand) (*BranchNet, error) {
	if cfg.LeftOut != cfg.RightOut {
		return nil, fmt.Errorf("%w: left branch ends at %d, right branch at %d",
			ErrShapeMismatch, cfg.LeftOut, cfg.RightOut)
	}

	net := &BranchNet{
		cfg:   cfg,
		trunk: nn.NewLinear("trunk", cfg.Inputs, cfg.TrunkOut, rng),
		left1: nn.NewLinear("left1", cfg.TrunkOut, cfg.LeftHidden, rng),
		left2: nn.NewLinear("left2", cfg.LeftHidden, cfg.LeftOut, rng),
		right: nn.NewLinear("right", cfg.TrunkOut, cfg.RightOut, rng),
		head:  nn.NewLinear("head", cfg.LeftOut, cfg.Classes, rng),
	}

	net.nodes = []Node{
		{Kind: KindLinear, Name: "trunk", Inputs: []string{InputName}, Output: "trunk_pre", Layer: net.trunk},
		{Kind: KindReLU, Name: "trunk_relu", Inputs: []string{"trunk_pre"}, Output: "trunk_out"},
		{Kind: KindLinear, Name: "left1", Inputs: []string{"trunk_out"}, Output: "left1_pre", Layer: net.left1},
		{Kind: KindReLU, Name: "left1_relu", Inputs: []string{"left1_pre"}, Output: "left1_out"},
		{Kind: KindLinear, Name: "left2", Inputs: []string{"left1_out"}, Output: "left2_pre", Layer: net.left2},
		{Kind: KindReLU, Name: "left2_relu", Inputs: []string{"left2_pre"}, Output: "left_out"},
		{Kind: KindLinear, Name: "right", Inputs: []string{"trunk_out"}, Output: "right_pre", Layer: net.right},
		{Kind: KindReLU, Name: "right_relu", Inputs: []string{"right_pre"}, Output: "right_out"},
		{Kind: KindAdd, Name: "merge", Inputs: []string{"left_out", "right_out"}, Output: "merged"},
		{Kind: KindLinear, Name: "head", Inputs: []string{"merged"}, Output: OutputName, Layer: net.head},
	}

	for _, l := range []*nn.Linear{net.trunk, net.left1, net.left2, net.right, net.head} {
		net.params = append(net.params, l.Parameters()...)
	}

	return net, nil
}

// Forward computes raw class scores for a [batch, inputs] tensor by
// executing the node list. No activation is applied to the head output;
// prediction is the argmax of the scores.
func (n *BranchNet) Forward(b tensor.Backend, input *tensor.RawTensor) *tensor.RawTensor {
	values := map[string]*tensor.RawTensor{InputName: input}

	for _, node := range n.nodes {
		switch node.Kind {
		case KindLinear:
			values[node.Output] = node.Layer.Forward(b, values[node.Inputs[0]])
		case KindReLU:
			values[node.Output] = b.ReLU(values[node.Inputs[0]])
		case KindAdd:
			left, right := values[node.Inputs[0]], values[node.Inputs[1]]
			if !left.Shape().Equal(right.Shape()) {
				panic(fmt.Sprintf("model: %v: merge shapes %v vs %v", ErrShapeMismatch, left.Shape(), right.Shape()))
			}
			values[node.Output] = b.Add(left, right)
		default:
			panic(fmt.Sprintf("model: unknown node kind %v", node.Kind))
		}
	}

	return values[OutputName]
}

// Nodes returns the forward graph in execution order.
func (n *BranchNet) Nodes() []Node { return n.nodes }

// Parameters returns all trainable parameters in layer order.
func (n *BranchNet) Parameters() []*nn.Parameter { return n.params }

// Config returns the layer widths of this net.
func (n *BranchNet) Config() Config { return n.cfg }

// NumParameters returns the total trainable element count.
func (n *BranchNet) NumParameters() int {
	total := 0
	for _, p := range n.params {
		total += p.Tensor().NumElements()
	}
	return total
}
