// Package tensor provides the storage types shared by every stage of the
// fixture pipeline: dense row-major buffers with runtime dtype information
// and zero-copy typed views.
package tensor

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types. Float32 carries pixels, activations and weights,
// Int32 carries class labels during training, Uint32 carries labels in the
// serialized fixture stream.
const (
	Float32 DataType = iota
	Int32
	Uint32
)

// Size returns the byte size of one element of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32, Uint32:
		return 4
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Int32:
		return "int32"
	case Uint32:
		return "uint32"
	default:
		return "unknown"
	}
}
