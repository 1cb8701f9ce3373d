package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/refnet-ml/refnet/internal/model"
	"github.com/refnet-ml/refnet/internal/nn"
)

// ErrUnsupportedOp is returned when a graph contains an operator outside
// the supported Flatten/Gemm/Relu/Add subset.
var ErrUnsupportedOp = errors.New("unsupported graph operator")

// Export target versions. Opset 13 covers every emitted operator and is
// old enough for broad runtime support.
const (
	exportIRVersion = 8
	exportOpset     = 13
)

const flattenedInput = "input_flat"

// Export converts a trained net into an ONNX model. The graph takes a
// (1,1,28,28) float32 image, flattens it, and produces (1,10) raw scores.
// Linear layers become Gemm nodes with transB=1 so weights keep their
// (out,in) layout.
func Export(net *model.BranchNet) (*ModelProto, error) {
	cfg := net.Config()
	inputDims := []int64{1, 1, 28, 28}
	if cfg.Inputs != 28*28 {
		// Non-image widths (reduced test topologies) export a flat input;
		// Flatten passes a 2-D tensor through unchanged.
		inputDims = []int64{1, int64(cfg.Inputs)}
	}
	graph := &GraphProto{
		Name: "branch_classifier",
		Inputs: []ValueInfoProto{
			tensorValueInfo(model.InputName, inputDims),
		},
		Outputs: []ValueInfoProto{
			tensorValueInfo(model.OutputName, []int64{1, int64(cfg.Classes)}),
		},
	}

	graph.Nodes = append(graph.Nodes, NodeProto{
		Name:    "flatten",
		OpType:  "Flatten",
		Inputs:  []string{model.InputName},
		Outputs: []string{flattenedInput},
		Attributes: []AttributeProto{
			{Name: "axis", Type: AttributeProtoInt, I: 1},
		},
	})

	for _, node := range net.Nodes() {
		proto, err := exportNode(node)
		if err != nil {
			return nil, err
		}
		graph.Nodes = append(graph.Nodes, proto)
		if node.Kind == model.KindLinear {
			graph.Initializers = append(graph.Initializers,
				paramTensor(node.Layer.Weight()),
				paramTensor(node.Layer.Bias()),
			)
		}
	}

	return &ModelProto{
		IRVersion:    exportIRVersion,
		ProducerName: "refnet",
		Graph:        graph,
		OpsetImport:  []OperatorSetID{{Version: exportOpset}},
	}, nil
}

// ExportFile serializes the net and writes it atomically: the bytes go to
// a temp file in the target directory which is renamed into place, so a
// crash never leaves a truncated model behind.
func ExportFile(path string, net *model.BranchNet) error {
	m, err := Export(net)
	if err != nil {
		return err
	}
	data := Marshal(m)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close model: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("finalize model: %w", err)
	}
	return nil
}

func exportNode(node model.Node) (NodeProto, error) {
	// The in-process graph consumes the 2-D input directly; the exported
	// graph sees it through the Flatten node.
	inputs := make([]string, len(node.Inputs))
	for i, name := range node.Inputs {
		if name == model.InputName {
			name = flattenedInput
		}
		inputs[i] = name
	}

	switch node.Kind {
	case model.KindLinear:
		return NodeProto{
			Name:    node.Name,
			OpType:  "Gemm",
			Inputs:  append(inputs, node.Layer.Weight().Name(), node.Layer.Bias().Name()),
			Outputs: []string{node.Output},
			Attributes: []AttributeProto{
				{Name: "alpha", Type: AttributeProtoFloat, F: 1},
				{Name: "beta", Type: AttributeProtoFloat, F: 1},
				{Name: "transB", Type: AttributeProtoInt, I: 1},
			},
		}, nil
	case model.KindReLU:
		return NodeProto{
			Name:    node.Name,
			OpType:  "Relu",
			Inputs:  inputs,
			Outputs: []string{node.Output},
		}, nil
	case model.KindAdd:
		return NodeProto{
			Name:    node.Name,
			OpType:  "Add",
			Inputs:  inputs,
			Outputs: []string{node.Output},
		}, nil
	default:
		return NodeProto{}, fmt.Errorf("%w: node %s kind %v", ErrUnsupportedOp, node.Name, node.Kind)
	}
}

// paramTensor snapshots a parameter as a float32 raw-data initializer.
// Weights keep their (out,in) layout; biases stay 1-D for the Gemm C input.
func paramTensor(p *nn.Parameter) TensorProto {
	t := p.Tensor()
	dims := make([]int64, len(t.Shape()))
	for i, d := range t.Shape() {
		dims[i] = int64(d)
	}
	raw := make([]byte, t.ByteSize())
	copy(raw, t.Data())
	return TensorProto{
		Name:     p.Name(),
		DataType: TensorProtoFloat,
		Dims:     dims,
		RawData:  raw,
	}
}

func tensorValueInfo(name string, dims []int64) ValueInfoProto {
	shape := &TensorShapeProto{}
	for _, d := range dims {
		shape.Dims = append(shape.Dims, DimensionProto{DimValue: d})
	}
	return ValueInfoProto{
		Name: name,
		Type: &TypeProto{
			TensorType: &TensorTypeProto{
				ElemType: TensorProtoFloat,
				Shape:    shape,
			},
		},
	}
}
