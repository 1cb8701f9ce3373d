package onnx

// Hand-written subset of the ONNX protobuf schema. Field numbers in
// writer.go and parser.go must match onnx.proto exactly.

// ModelProto is the top-level ONNX model.
type ModelProto struct {
	IRVersion       int64
	ProducerName    string
	ProducerVersion string
	Domain          string
	ModelVersion    int64
	DocString       string
	Graph           *GraphProto
	OpsetImport     []OperatorSetID
	MetadataProps   []StringStringEntry
}

// GraphProto is the computation graph: nodes plus named inputs,
// outputs and weight initializers.
type GraphProto struct {
	Name         string
	Nodes        []NodeProto
	Initializers []TensorProto
	Inputs       []ValueInfoProto
	Outputs      []ValueInfoProto
	DocString    string
}

// NodeProto is a single operation referencing tensors by name.
type NodeProto struct {
	Name       string
	OpType     string
	Inputs     []string
	Outputs    []string
	Attributes []AttributeProto
	Domain     string
}

// TensorProto holds a weight or constant tensor.
type TensorProto struct {
	Name      string
	DataType  int32
	Dims      []int64
	RawData   []byte
	FloatData []float32
	Int64Data []int64
}

// ValueInfoProto describes a graph input or output.
type ValueInfoProto struct {
	Name string
	Type *TypeProto
}

// TypeProto wraps the tensor type variant.
type TypeProto struct {
	TensorType *TensorTypeProto
}

// TensorTypeProto gives element type and shape.
type TensorTypeProto struct {
	ElemType int32
	Shape    *TensorShapeProto
}

// TensorShapeProto lists the dimensions.
type TensorShapeProto struct {
	Dims []DimensionProto
}

// DimensionProto is one dimension, static (DimValue) or symbolic (DimParam).
type DimensionProto struct {
	DimValue int64
	DimParam string
}

// AttributeProto is a typed node attribute.
type AttributeProto struct {
	Name    string
	Type    int32
	F       float32
	I       int64
	S       []byte
	Floats  []float32
	Ints    []int64
	Strings [][]byte
}

// OperatorSetID identifies the opset a model targets.
type OperatorSetID struct {
	Domain  string
	Version int64
}

// StringStringEntry is one key-value metadata pair.
type StringStringEntry struct {
	Key   string
	Value string
}

// ONNX element data types (TensorProto.data_type).
const (
	TensorProtoUndefined = 0
	TensorProtoFloat     = 1
	TensorProtoUint8     = 2
	TensorProtoInt8      = 3
	TensorProtoInt32     = 6
	TensorProtoInt64     = 7
	TensorProtoBool      = 9
	TensorProtoDouble    = 11
	TensorProtoUint32    = 12
)

// ONNX attribute types (AttributeProto.type).
const (
	AttributeProtoUndefined = 0
	AttributeProtoFloat     = 1
	AttributeProtoInt       = 2
	AttributeProtoString    = 3
	AttributeProtoFloats    = 6
	AttributeProtoInts      = 7
	AttributeProtoStrings   = 8
)
