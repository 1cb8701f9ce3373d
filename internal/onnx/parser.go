package onnx

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// ParseFile reads and decodes an ONNX model file.
func ParseFile(path string) (*ModelProto, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	return Parse(data)
}

// Parse decodes an ONNX model from its protobuf wire encoding.
func Parse(data []byte) (*ModelProto, error) {
	m, err := decodeModel(data)
	if err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return m, nil
}

// Protobuf wire types.
const (
	wireVarint = 0
	wire64Bit  = 1
	wireBytes  = 2
	wire32Bit  = 5
)

// decoder walks one message's wire bytes.
type decoder struct {
	buf []byte
	pos int
}

// walk iterates the fields of buf, calling fn for each tag. fn must
// consume the field's value (or call skip).
func walk(buf []byte, fn func(d *decoder, num, wire int) error) error {
	d := &decoder{buf: buf}
	for d.pos < len(d.buf) {
		tag, err := d.varint()
		if err != nil {
			return err
		}
		if err := fn(d, int(tag>>3), int(tag&0x7)); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) varint() (uint64, error) {
	var v uint64
	var shift uint
	for {
		if d.pos >= len(d.buf) {
			return 0, io.ErrUnexpectedEOF
		}
		b := d.buf[d.pos]
		d.pos++
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, errors.New("varint overflow")
		}
	}
}

func (d *decoder) int64() (int64, error) {
	v, err := d.varint()
	return int64(v), err
}

func (d *decoder) bytes() ([]byte, error) {
	n, err := d.varint()
	if err != nil {
		return nil, err
	}
	end := d.pos + int(n)
	if end < d.pos || end > len(d.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := d.buf[d.pos:end]
	d.pos = end
	return b, nil
}

func (d *decoder) str() (string, error) {
	b, err := d.bytes()
	return string(b), err
}

func (d *decoder) float32() (float32, error) {
	if d.pos+4 > len(d.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	bits := binary.LittleEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return math.Float32frombits(bits), nil
}

func (d *decoder) skip(wire int) error {
	switch wire {
	case wireVarint:
		_, err := d.varint()
		return err
	case wire64Bit:
		if d.pos+8 > len(d.buf) {
			return io.ErrUnexpectedEOF
		}
		d.pos += 8
		return nil
	case wireBytes:
		_, err := d.bytes()
		return err
	case wire32Bit:
		if d.pos+4 > len(d.buf) {
			return io.ErrUnexpectedEOF
		}
		d.pos += 4
		return nil
	default:
		return fmt.Errorf("unknown wire type %d", wire)
	}
}

// packedInt64s decodes a repeated int64 field, packed or single.
func packedInt64s(d *decoder, wire int, dst []int64) ([]int64, error) {
	if wire == wireBytes {
		b, err := d.bytes()
		if err != nil {
			return dst, err
		}
		sub := &decoder{buf: b}
		for sub.pos < len(sub.buf) {
			v, err := sub.int64()
			if err != nil {
				return dst, err
			}
			dst = append(dst, v)
		}
		return dst, nil
	}
	v, err := d.int64()
	if err != nil {
		return dst, err
	}
	return append(dst, v), nil
}

// packedFloat32s decodes a packed repeated float field.
func packedFloat32s(d *decoder, dst []float32) ([]float32, error) {
	b, err := d.bytes()
	if err != nil {
		return dst, err
	}
	for i := 0; i+4 <= len(b); i += 4 {
		dst = append(dst, math.Float32frombits(binary.LittleEndian.Uint32(b[i:])))
	}
	return dst, nil
}

func decodeModel(buf []byte) (*ModelProto, error) {
	m := &ModelProto{}
	err := walk(buf, func(d *decoder, num, wire int) error {
		var err error
		switch num {
		case 1:
			m.IRVersion, err = d.int64()
		case 2:
			m.ProducerName, err = d.str()
		case 3:
			m.ProducerVersion, err = d.str()
		case 4:
			m.Domain, err = d.str()
		case 5:
			m.ModelVersion, err = d.int64()
		case 6:
			m.DocString, err = d.str()
		case 7:
			var b []byte
			if b, err = d.bytes(); err == nil {
				m.Graph, err = decodeGraph(b)
			}
		case 8:
			var b []byte
			if b, err = d.bytes(); err == nil {
				var op OperatorSetID
				if op, err = decodeOpset(b); err == nil {
					m.OpsetImport = append(m.OpsetImport, op)
				}
			}
		case 14:
			var b []byte
			if b, err = d.bytes(); err == nil {
				var e StringStringEntry
				if e, err = decodeMetadataEntry(b); err == nil {
					m.MetadataProps = append(m.MetadataProps, e)
				}
			}
		default:
			err = d.skip(wire)
		}
		return err
	})
	return m, err
}

func decodeGraph(buf []byte) (*GraphProto, error) {
	g := &GraphProto{}
	err := walk(buf, func(d *decoder, num, wire int) error {
		var err error
		switch num {
		case 1:
			var b []byte
			if b, err = d.bytes(); err == nil {
				var n NodeProto
				if n, err = decodeNode(b); err == nil {
					g.Nodes = append(g.Nodes, n)
				}
			}
		case 2:
			g.Name, err = d.str()
		case 5:
			var b []byte
			if b, err = d.bytes(); err == nil {
				var t TensorProto
				if t, err = decodeTensor(b); err == nil {
					g.Initializers = append(g.Initializers, t)
				}
			}
		case 10:
			g.DocString, err = d.str()
		case 11:
			var b []byte
			if b, err = d.bytes(); err == nil {
				var v ValueInfoProto
				if v, err = decodeValueInfo(b); err == nil {
					g.Inputs = append(g.Inputs, v)
				}
			}
		case 12:
			var b []byte
			if b, err = d.bytes(); err == nil {
				var v ValueInfoProto
				if v, err = decodeValueInfo(b); err == nil {
					g.Outputs = append(g.Outputs, v)
				}
			}
		default:
			err = d.skip(wire)
		}
		return err
	})
	return g, err
}

func decodeNode(buf []byte) (NodeProto, error) {
	var n NodeProto
	err := walk(buf, func(d *decoder, num, wire int) error {
		var err error
		switch num {
		case 1:
			var s string
			if s, err = d.str(); err == nil {
				n.Inputs = append(n.Inputs, s)
			}
		case 2:
			var s string
			if s, err = d.str(); err == nil {
				n.Outputs = append(n.Outputs, s)
			}
		case 3:
			n.Name, err = d.str()
		case 4:
			n.OpType, err = d.str()
		case 5:
			var b []byte
			if b, err = d.bytes(); err == nil {
				var a AttributeProto
				if a, err = decodeAttribute(b); err == nil {
					n.Attributes = append(n.Attributes, a)
				}
			}
		case 7:
			n.Domain, err = d.str()
		default:
			err = d.skip(wire)
		}
		return err
	})
	return n, err
}

func decodeTensor(buf []byte) (TensorProto, error) {
	var t TensorProto
	err := walk(buf, func(d *decoder, num, wire int) error {
		var err error
		switch num {
		case 1:
			t.Dims, err = packedInt64s(d, wire, t.Dims)
		case 2:
			var v int64
			if v, err = d.int64(); err == nil {
				t.DataType = int32(v)
			}
		case 4:
			t.FloatData, err = packedFloat32s(d, t.FloatData)
		case 7:
			t.Int64Data, err = packedInt64s(d, wire, t.Int64Data)
		case 8:
			t.Name, err = d.str()
		case 9:
			t.RawData, err = d.bytes()
		default:
			err = d.skip(wire)
		}
		return err
	})
	return t, err
}

func decodeValueInfo(buf []byte) (ValueInfoProto, error) {
	var v ValueInfoProto
	err := walk(buf, func(d *decoder, num, wire int) error {
		var err error
		switch num {
		case 1:
			v.Name, err = d.str()
		case 2:
			var b []byte
			if b, err = d.bytes(); err == nil {
				v.Type, err = decodeType(b)
			}
		default:
			err = d.skip(wire)
		}
		return err
	})
	return v, err
}

func decodeType(buf []byte) (*TypeProto, error) {
	t := &TypeProto{}
	err := walk(buf, func(d *decoder, num, wire int) error {
		var err error
		switch num {
		case 1:
			var b []byte
			if b, err = d.bytes(); err == nil {
				t.TensorType, err = decodeTensorType(b)
			}
		default:
			err = d.skip(wire)
		}
		return err
	})
	return t, err
}

func decodeTensorType(buf []byte) (*TensorTypeProto, error) {
	t := &TensorTypeProto{}
	err := walk(buf, func(d *decoder, num, wire int) error {
		var err error
		switch num {
		case 1:
			var v int64
			if v, err = d.int64(); err == nil {
				t.ElemType = int32(v)
			}
		case 2:
			var b []byte
			if b, err = d.bytes(); err == nil {
				t.Shape, err = decodeTensorShape(b)
			}
		default:
			err = d.skip(wire)
		}
		return err
	})
	return t, err
}

func decodeTensorShape(buf []byte) (*TensorShapeProto, error) {
	s := &TensorShapeProto{}
	err := walk(buf, func(d *decoder, num, wire int) error {
		var err error
		switch num {
		case 1:
			var b []byte
			if b, err = d.bytes(); err == nil {
				var dim DimensionProto
				if dim, err = decodeDimension(b); err == nil {
					s.Dims = append(s.Dims, dim)
				}
			}
		default:
			err = d.skip(wire)
		}
		return err
	})
	return s, err
}

func decodeDimension(buf []byte) (DimensionProto, error) {
	var dim DimensionProto
	err := walk(buf, func(d *decoder, num, wire int) error {
		var err error
		switch num {
		case 1:
			dim.DimValue, err = d.int64()
		case 2:
			dim.DimParam, err = d.str()
		default:
			err = d.skip(wire)
		}
		return err
	})
	return dim, err
}

func decodeAttribute(buf []byte) (AttributeProto, error) {
	var a AttributeProto
	err := walk(buf, func(d *decoder, num, wire int) error {
		var err error
		switch num {
		case 1:
			a.Name, err = d.str()
		case 2:
			a.F, err = d.float32()
		case 3:
			a.I, err = d.int64()
		case 4:
			a.S, err = d.bytes()
		case 7:
			a.Floats, err = packedFloat32s(d, a.Floats)
		case 8:
			a.Ints, err = packedInt64s(d, wire, a.Ints)
		case 9:
			var b []byte
			if b, err = d.bytes(); err == nil {
				a.Strings = append(a.Strings, b)
			}
		case 20:
			var v int64
			if v, err = d.int64(); err == nil {
				a.Type = int32(v)
			}
		default:
			err = d.skip(wire)
		}
		return err
	})
	return a, err
}

func decodeOpset(buf []byte) (OperatorSetID, error) {
	var op OperatorSetID
	err := walk(buf, func(d *decoder, num, wire int) error {
		var err error
		switch num {
		case 1:
			op.Domain, err = d.str()
		case 2:
			op.Version, err = d.int64()
		default:
			err = d.skip(wire)
		}
		return err
	})
	return op, err
}

func decodeMetadataEntry(buf []byte) (StringStringEntry, error) {
	var e StringStringEntry
	err := walk(buf, func(d *decoder, num, wire int) error {
		var err error
		switch num {
		case 1:
			e.Key, err = d.str()
		case 2:
			e.Value, err = d.str()
		default:
			err = d.skip(wire)
		}
		return err
	})
	return e, err
}
