package tensor

import "fmt"

// FromFloat32 creates a Float32 tensor from a Go slice. The slice is copied.
func FromFloat32(data []float32, shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, got %d", shape, shape.NumElements(), len(data))
	}
	t, err := NewRaw(shape, Float32)
	if err != nil {
		return nil, err
	}
	copy(t.AsFloat32(), data)
	return t, nil
}

// FromInt32 creates an Int32 tensor from a Go slice. The slice is copied.
func FromInt32(data []int32, shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, got %d", shape, shape.NumElements(), len(data))
	}
	t, err := NewRaw(shape, Int32)
	if err != nil {
		return nil, err
	}
	copy(t.AsInt32(), data)
	return t, nil
}

// Scalar creates a single-element Float32 tensor holding v. Used for loss
// values and for seeding the backward pass with the output gradient.
func Scalar(v float32) *RawTensor {
	t := MustRaw(Shape{1}, Float32)
	t.AsFloat32()[0] = v
	return t
}

// Full creates a Float32 tensor with every element set to v.
func Full(shape Shape, v float32) *RawTensor {
	t := MustRaw(shape, Float32)
	data := t.AsFloat32()
	for i := range data {
		data[i] = v
	}
	return t
}
