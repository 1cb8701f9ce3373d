package onnx

import (
	"encoding/binary"
	"math"
)

// Marshal encodes a model into the protobuf wire format. The output is
// readable by any ONNX runtime and by Parse.
func Marshal(m *ModelProto) []byte {
	e := &encoder{}
	e.encodeModel(m)
	return e.buf
}

// encoder builds protobuf wire bytes. Nested messages are encoded into
// a fresh encoder and embedded as length-delimited fields.
type encoder struct {
	buf []byte
}

func (e *encoder) varint(v uint64) {
	e.buf = binary.AppendUvarint(e.buf, v)
}

func (e *encoder) tag(num, wire int) {
	e.varint(uint64(num)<<3 | uint64(wire))
}

func (e *encoder) int64Field(num int, v int64) {
	if v == 0 {
		return
	}
	e.tag(num, wireVarint)
	e.varint(uint64(v))
}

func (e *encoder) bytesField(num int, b []byte) {
	if len(b) == 0 {
		return
	}
	e.tag(num, wireBytes)
	e.varint(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *encoder) stringField(num int, s string) {
	e.bytesField(num, []byte(s))
}

func (e *encoder) float32Field(num int, v float32) {
	e.tag(num, wire32Bit)
	e.buf = binary.LittleEndian.AppendUint32(e.buf, math.Float32bits(v))
}

func (e *encoder) messageField(num int, fill func(*encoder)) {
	sub := &encoder{}
	fill(sub)
	e.tag(num, wireBytes)
	e.varint(uint64(len(sub.buf)))
	e.buf = append(e.buf, sub.buf...)
}

func (e *encoder) packedInt64s(num int, vs []int64) {
	if len(vs) == 0 {
		return
	}
	sub := &encoder{}
	for _, v := range vs {
		sub.varint(uint64(v))
	}
	e.bytesField(num, sub.buf)
}

func (e *encoder) packedFloat32s(num int, vs []float32) {
	if len(vs) == 0 {
		return
	}
	b := make([]byte, 0, len(vs)*4)
	for _, v := range vs {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
	}
	e.bytesField(num, b)
}

func (e *encoder) encodeModel(m *ModelProto) {
	e.int64Field(1, m.IRVersion)
	e.stringField(2, m.ProducerName)
	e.stringField(3, m.ProducerVersion)
	e.stringField(4, m.Domain)
	e.int64Field(5, m.ModelVersion)
	e.stringField(6, m.DocString)
	if m.Graph != nil {
		e.messageField(7, func(sub *encoder) { sub.encodeGraph(m.Graph) })
	}
	for i := range m.OpsetImport {
		op := m.OpsetImport[i]
		e.messageField(8, func(sub *encoder) {
			sub.stringField(1, op.Domain)
			sub.int64Field(2, op.Version)
		})
	}
	for i := range m.MetadataProps {
		p := m.MetadataProps[i]
		e.messageField(14, func(sub *encoder) {
			sub.stringField(1, p.Key)
			sub.stringField(2, p.Value)
		})
	}
}

func (e *encoder) encodeGraph(g *GraphProto) {
	for i := range g.Nodes {
		n := &g.Nodes[i]
		e.messageField(1, func(sub *encoder) { sub.encodeNode(n) })
	}
	e.stringField(2, g.Name)
	for i := range g.Initializers {
		t := &g.Initializers[i]
		e.messageField(5, func(sub *encoder) { sub.encodeTensor(t) })
	}
	e.stringField(10, g.DocString)
	for i := range g.Inputs {
		v := &g.Inputs[i]
		e.messageField(11, func(sub *encoder) { sub.encodeValueInfo(v) })
	}
	for i := range g.Outputs {
		v := &g.Outputs[i]
		e.messageField(12, func(sub *encoder) { sub.encodeValueInfo(v) })
	}
}

func (e *encoder) encodeNode(n *NodeProto) {
	for _, in := range n.Inputs {
		e.stringField(1, in)
	}
	for _, out := range n.Outputs {
		e.stringField(2, out)
	}
	e.stringField(3, n.Name)
	e.stringField(4, n.OpType)
	for i := range n.Attributes {
		a := &n.Attributes[i]
		e.messageField(5, func(sub *encoder) { sub.encodeAttribute(a) })
	}
	e.stringField(7, n.Domain)
}

func (e *encoder) encodeTensor(t *TensorProto) {
	e.packedInt64s(1, t.Dims)
	e.int64Field(2, int64(t.DataType))
	e.packedFloat32s(4, t.FloatData)
	e.packedInt64s(7, t.Int64Data)
	e.stringField(8, t.Name)
	e.bytesField(9, t.RawData)
}

func (e *encoder) encodeValueInfo(v *ValueInfoProto) {
	e.stringField(1, v.Name)
	if v.Type != nil && v.Type.TensorType != nil {
		tt := v.Type.TensorType
		e.messageField(2, func(sub *encoder) {
			sub.messageField(1, func(sub2 *encoder) {
				sub2.int64Field(1, int64(tt.ElemType))
				if tt.Shape != nil {
					sub2.messageField(2, func(sub3 *encoder) {
						for _, dim := range tt.Shape.Dims {
							d := dim
							sub3.messageField(1, func(sub4 *encoder) {
								if d.DimParam != "" {
									sub4.stringField(2, d.DimParam)
								} else {
									sub4.int64Field(1, d.DimValue)
								}
							})
						}
					})
				}
			})
		})
	}
}

// encodeAttribute always writes the type discriminator so consumers do
// not have to infer it from which value field is set.
func (e *encoder) encodeAttribute(a *AttributeProto) {
	e.stringField(1, a.Name)
	switch a.Type {
	case AttributeProtoFloat:
		e.float32Field(2, a.F)
	case AttributeProtoInt:
		// Written unconditionally: explicitly-zero attributes like transA
		// must keep their tag.
		e.tag(3, wireVarint)
		e.varint(uint64(a.I))
	case AttributeProtoString:
		e.bytesField(4, a.S)
	case AttributeProtoFloats:
		e.packedFloat32s(7, a.Floats)
	case AttributeProtoInts:
		e.packedInt64s(8, a.Ints)
	case AttributeProtoStrings:
		for _, s := range a.Strings {
			e.bytesField(9, s)
		}
	}
	e.int64Field(20, int64(a.Type))
}
