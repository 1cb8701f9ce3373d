package onnx

import (
	"fmt"

	"github.com/refnet-ml/refnet/internal/tensor"
)

// Model is a loaded ONNX graph ready for inference. It exists to verify
// exported models: load the file back, run the same input through it, and
// compare against the in-process forward pass.
type Model struct {
	proto       *ModelProto
	backend     tensor.Backend
	weights     map[string]*tensor.RawTensor
	inputNames  []string
	outputNames []string
	nodes       []NodeProto
	opset       int64
}

// LoadFile parses an ONNX file and compiles it for execution.
func LoadFile(path string, backend tensor.Backend) (*Model, error) {
	proto, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return NewModel(proto, backend)
}

// NewModel compiles a parsed model: initializers become weight tensors,
// nodes are topologically sorted, and the free graph inputs are recorded.
func NewModel(proto *ModelProto, backend tensor.Backend) (*Model, error) {
	g := proto.Graph
	if g == nil {
		return nil, fmt.Errorf("model has no graph")
	}

	m := &Model{proto: proto, backend: backend}
	m.weights = make(map[string]*tensor.RawTensor, len(g.Initializers))
	for i := range g.Initializers {
		init := &g.Initializers[i]
		t, err := tensorFromProto(init)
		if err != nil {
			return nil, fmt.Errorf("initializer %s: %w", init.Name, err)
		}
		m.weights[init.Name] = t
	}

	for i := range g.Inputs {
		if _, isWeight := m.weights[g.Inputs[i].Name]; !isWeight {
			m.inputNames = append(m.inputNames, g.Inputs[i].Name)
		}
	}
	for i := range g.Outputs {
		m.outputNames = append(m.outputNames, g.Outputs[i].Name)
	}

	m.nodes = topologicalSort(g.Nodes)
	for _, op := range proto.OpsetImport {
		if op.Domain == "" || op.Domain == "ai.onnx" {
			m.opset = op.Version
			break
		}
	}
	return m, nil
}

// InputNames returns the free graph inputs.
func (m *Model) InputNames() []string { return m.inputNames }

// OutputNames returns the graph outputs.
func (m *Model) OutputNames() []string { return m.outputNames }

// OpsetVersion returns the default-domain opset the model targets.
func (m *Model) OpsetVersion() int64 { return m.opset }

// NumNodes returns the operator count of the graph.
func (m *Model) NumNodes() int { return len(m.nodes) }

// Forward runs the graph on a single input and returns the single output.
func (m *Model) Forward(input *tensor.RawTensor) (*tensor.RawTensor, error) {
	if len(m.inputNames) != 1 || len(m.outputNames) != 1 {
		return nil, fmt.Errorf("graph has %d inputs and %d outputs, want 1 and 1",
			len(m.inputNames), len(m.outputNames))
	}

	values := make(map[string]*tensor.RawTensor, len(m.weights)+len(m.nodes)+1)
	for name, t := range m.weights {
		values[name] = t
	}
	values[m.inputNames[0]] = input

	for i := range m.nodes {
		node := &m.nodes[i]
		inputs := make([]*tensor.RawTensor, len(node.Inputs))
		for j, name := range node.Inputs {
			t, ok := values[name]
			if !ok {
				return nil, fmt.Errorf("node %s: missing input %s", node.Name, name)
			}
			inputs[j] = t
		}

		out, err := m.execute(node, inputs)
		if err != nil {
			return nil, fmt.Errorf("node %s (%s): %w", node.Name, node.OpType, err)
		}
		values[node.Outputs[0]] = out
	}

	out, ok := values[m.outputNames[0]]
	if !ok {
		return nil, fmt.Errorf("missing output %s", m.outputNames[0])
	}
	return out, nil
}

// execute applies one operator from the supported subset.
func (m *Model) execute(node *NodeProto, inputs []*tensor.RawTensor) (*tensor.RawTensor, error) {
	switch node.OpType {
	case "Flatten":
		return m.flatten(node, inputs)
	case "Gemm":
		return m.gemm(node, inputs)
	case "Relu":
		if len(inputs) != 1 {
			return nil, fmt.Errorf("want 1 input, got %d", len(inputs))
		}
		return m.backend.ReLU(inputs[0]), nil
	case "Add":
		if len(inputs) != 2 {
			return nil, fmt.Errorf("want 2 inputs, got %d", len(inputs))
		}
		return m.backend.Add(inputs[0], inputs[1]), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOp, node.OpType)
	}
}

// flatten collapses dims at and after axis (default 1) into one, keeping
// the leading dims as the batch dimension.
func (m *Model) flatten(node *NodeProto, inputs []*tensor.RawTensor) (*tensor.RawTensor, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("want 1 input, got %d", len(inputs))
	}
	axis := intAttr(node, "axis", 1)
	shape := inputs[0].Shape()
	if axis < 0 || axis > int64(len(shape)) {
		return nil, fmt.Errorf("axis %d out of range for shape %v", axis, shape)
	}
	lead, rest := 1, 1
	for i, d := range shape {
		if int64(i) < axis {
			lead *= d
		} else {
			rest *= d
		}
	}
	return m.backend.Reshape(inputs[0], tensor.Shape{lead, rest}), nil
}

// gemm computes alpha*A@B(ᵀ) + beta*C. Only alpha=beta=1 and transA=0 are
// supported, which is what the exporter emits.
func (m *Model) gemm(node *NodeProto, inputs []*tensor.RawTensor) (*tensor.RawTensor, error) {
	if len(inputs) != 3 {
		return nil, fmt.Errorf("want 3 inputs, got %d", len(inputs))
	}
	if a := floatAttr(node, "alpha", 1); a != 1 {
		return nil, fmt.Errorf("%w: Gemm alpha %v", ErrUnsupportedOp, a)
	}
	if b := floatAttr(node, "beta", 1); b != 1 {
		return nil, fmt.Errorf("%w: Gemm beta %v", ErrUnsupportedOp, b)
	}
	if ta := intAttr(node, "transA", 0); ta != 0 {
		return nil, fmt.Errorf("%w: Gemm transA %d", ErrUnsupportedOp, ta)
	}

	a, w, c := inputs[0], inputs[1], inputs[2]
	if intAttr(node, "transB", 0) != 0 {
		w = m.backend.Transpose(w)
	}
	out := m.backend.MatMul(a, w)

	bias := c
	if len(c.Shape()) == 1 {
		bias = m.backend.Reshape(c, tensor.Shape{1, c.Shape()[0]})
	}
	return m.backend.Add(out, bias), nil
}

func intAttr(node *NodeProto, name string, def int64) int64 {
	for i := range node.Attributes {
		if node.Attributes[i].Name == name {
			return node.Attributes[i].I
		}
	}
	return def
}

func floatAttr(node *NodeProto, name string, def float32) float32 {
	for i := range node.Attributes {
		if node.Attributes[i].Name == name {
			return node.Attributes[i].F
		}
	}
	return def
}

// tensorFromProto materializes an initializer. Only float32 tensors occur
// in exported models.
func tensorFromProto(proto *TensorProto) (*tensor.RawTensor, error) {
	if proto.DataType != TensorProtoFloat {
		return nil, fmt.Errorf("%w: initializer data type %d", ErrUnsupportedOp, proto.DataType)
	}
	shape := make(tensor.Shape, len(proto.Dims))
	for i, d := range proto.Dims {
		shape[i] = int(d)
	}

	t, err := tensor.NewRaw(shape, tensor.Float32)
	if err != nil {
		return nil, err
	}
	if len(proto.RawData) > 0 {
		if len(proto.RawData) != t.ByteSize() {
			return nil, fmt.Errorf("raw data is %d bytes, shape %v needs %d",
				len(proto.RawData), shape, t.ByteSize())
		}
		copy(t.Data(), proto.RawData)
	} else {
		copy(t.AsFloat32(), proto.FloatData)
	}
	return t, nil
}

// topologicalSort orders nodes so every input is produced before use.
func topologicalSort(nodes []NodeProto) []NodeProto {
	producer := make(map[string]int)
	for i := range nodes {
		for _, out := range nodes[i].Outputs {
			producer[out] = i
		}
	}

	visited := make([]bool, len(nodes))
	sorted := make([]NodeProto, 0, len(nodes))
	var visit func(i int)
	visit = func(i int) {
		if visited[i] {
			return
		}
		visited[i] = true
		for _, in := range nodes[i].Inputs {
			if dep, ok := producer[in]; ok {
				visit(dep)
			}
		}
		sorted = append(sorted, nodes[i])
	}
	for i := range nodes {
		visit(i)
	}
	return sorted
}
