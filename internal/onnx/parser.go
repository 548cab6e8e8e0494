package onnx

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// ParseFile parses an ONNX model from file.
//
//nolint:gosec // G304: reading the model the caller asked for
func ParseFile(path string) (*ModelProto, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}
	return Parse(data)
}

// Parse parses an ONNX model from bytes. Unknown fields are skipped, so files
// written by newer exporters still load.
func Parse(data []byte) (*ModelProto, error) {
	model := &ModelProto{}
	if err := readModelProto(data, model); err != nil {
		return nil, errors.Wrap(err, "failed to parse model")
	}
	return model, nil
}

// fieldFunc decodes the value of field num (already past its tag) from b and
// returns how many bytes it consumed.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// walk iterates over the fields of one message.
func walk(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "tag")
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return errors.WithMessagef(err, "field %d", num)
		}
		b = b[m:]
	}
	return nil
}

func readModelProto(b []byte, m *ModelProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1: // ir_version
			return readInt64(typ, b, &m.IRVersion)
		case 2: // producer_name
			return readString(typ, b, &m.ProducerName)
		case 3: // producer_version
			return readString(typ, b, &m.ProducerVersion)
		case 4: // domain
			return readString(typ, b, &m.Domain)
		case 5: // model_version
			return readInt64(typ, b, &m.ModelVersion)
		case 6: // doc_string
			return readString(typ, b, &m.DocString)
		case 7: // graph
			m.Graph = &GraphProto{}
			return readMessage(typ, b, func(sub []byte) error { return readGraphProto(sub, m.Graph) })
		case 8: // opset_import
			return readMessage(typ, b, func(sub []byte) error {
				var opset OperatorSetID
				if err := readOperatorSetID(sub, &opset); err != nil {
					return err
				}
				m.OpsetImport = append(m.OpsetImport, opset)
				return nil
			})
		case 14: // metadata_props
			return readMessage(typ, b, func(sub []byte) error {
				var entry StringStringEntry
				if err := readStringStringEntry(sub, &entry); err != nil {
					return err
				}
				m.MetadataProps = append(m.MetadataProps, entry)
				return nil
			})
		}
		return skipField(num, typ, b)
	})
}

func readGraphProto(b []byte, m *GraphProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1: // node
			return readMessage(typ, b, func(sub []byte) error {
				var node NodeProto
				if err := readNodeProto(sub, &node); err != nil {
					return err
				}
				m.Nodes = append(m.Nodes, node)
				return nil
			})
		case 2: // name
			return readString(typ, b, &m.Name)
		case 5: // initializer
			return readMessage(typ, b, func(sub []byte) error {
				var t TensorProto
				if err := readTensorProto(sub, &t); err != nil {
					return err
				}
				m.Initializers = append(m.Initializers, t)
				return nil
			})
		case 10: // doc_string
			return readString(typ, b, &m.DocString)
		case 11: // input
			return readValueInfoInto(typ, b, &m.Inputs)
		case 12: // output
			return readValueInfoInto(typ, b, &m.Outputs)
		case 13: // value_info
			return readValueInfoInto(typ, b, &m.ValueInfo)
		}
		return skipField(num, typ, b)
	})
}

func readValueInfoInto(typ protowire.Type, b []byte, dst *[]ValueInfoProto) (int, error) {
	return readMessage(typ, b, func(sub []byte) error {
		var vi ValueInfoProto
		if err := readValueInfoProto(sub, &vi); err != nil {
			return err
		}
		*dst = append(*dst, vi)
		return nil
	})
}

func readNodeProto(b []byte, m *NodeProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1: // input
			return appendString(typ, b, &m.Inputs)
		case 2: // output
			return appendString(typ, b, &m.Outputs)
		case 3: // name
			return readString(typ, b, &m.Name)
		case 4: // op_type
			return readString(typ, b, &m.OpType)
		case 5: // attribute
			return readMessage(typ, b, func(sub []byte) error {
				var attr AttributeProto
				if err := readAttributeProto(sub, &attr); err != nil {
					return err
				}
				m.Attributes = append(m.Attributes, attr)
				return nil
			})
		case 6: // doc_string
			return readString(typ, b, &m.DocString)
		case 7: // domain
			return readString(typ, b, &m.Domain)
		}
		return skipField(num, typ, b)
	})
}

func readTensorProto(b []byte, m *TensorProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1: // dims
			return readRepeatedVarint(typ, b, func(v uint64) { m.Dims = append(m.Dims, int64(v)) })
		case 2: // data_type
			return readInt32(typ, b, &m.DataType)
		case 4: // float_data
			return readRepeatedFixed32(typ, b, func(v uint32) { m.FloatData = append(m.FloatData, math.Float32frombits(v)) })
		case 5: // int32_data
			return readRepeatedVarint(typ, b, func(v uint64) { m.Int32Data = append(m.Int32Data, int32(v)) }) //nolint:gosec // int32 on the wire
		case 7: // int64_data
			return readRepeatedVarint(typ, b, func(v uint64) { m.Int64Data = append(m.Int64Data, int64(v)) }) //nolint:gosec // int64 on the wire
		case 8: // name
			return readString(typ, b, &m.Name)
		case 9: // raw_data
			return readBytes(typ, b, &m.RawData)
		case 10: // double_data
			return readRepeatedFixed64(typ, b, func(v uint64) { m.DoubleData = append(m.DoubleData, math.Float64frombits(v)) })
		case 12: // doc_string
			return readString(typ, b, &m.DocString)
		}
		return skipField(num, typ, b)
	})
}

func readValueInfoProto(b []byte, m *ValueInfoProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1: // name
			return readString(typ, b, &m.Name)
		case 2: // type
			m.Type = &TypeProto{}
			return readMessage(typ, b, func(sub []byte) error { return readTypeProto(sub, m.Type) })
		case 3: // doc_string
			return readString(typ, b, &m.DocString)
		}
		return skipField(num, typ, b)
	})
}

func readTypeProto(b []byte, m *TypeProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 { // tensor_type
			m.TensorType = &TensorTypeProto{}
			return readMessage(typ, b, func(sub []byte) error { return readTensorTypeProto(sub, m.TensorType) })
		}
		return skipField(num, typ, b)
	})
}

func readTensorTypeProto(b []byte, m *TensorTypeProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1: // elem_type
			return readInt32(typ, b, &m.ElemType)
		case 2: // shape
			m.Shape = &TensorShapeProto{}
			return readMessage(typ, b, func(sub []byte) error { return readTensorShapeProto(sub, m.Shape) })
		}
		return skipField(num, typ, b)
	})
}

func readTensorShapeProto(b []byte, m *TensorShapeProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 { // dim
			return readMessage(typ, b, func(sub []byte) error {
				var dim DimensionProto
				if err := readDimensionProto(sub, &dim); err != nil {
					return err
				}
				m.Dims = append(m.Dims, dim)
				return nil
			})
		}
		return skipField(num, typ, b)
	})
}

func readDimensionProto(b []byte, m *DimensionProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1: // dim_value
			return readInt64(typ, b, &m.DimValue)
		case 2: // dim_param
			return readString(typ, b, &m.DimParam)
		}
		return skipField(num, typ, b)
	})
}

func readAttributeProto(b []byte, m *AttributeProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1: // name
			return readString(typ, b, &m.Name)
		case 2: // f
			return readFloat32(typ, b, &m.F)
		case 3: // i
			return readInt64(typ, b, &m.I)
		case 4: // s
			return readBytes(typ, b, &m.S)
		case 5: // t
			m.T = &TensorProto{}
			return readMessage(typ, b, func(sub []byte) error { return readTensorProto(sub, m.T) })
		case 7: // floats
			return readRepeatedFixed32(typ, b, func(v uint32) { m.Floats = append(m.Floats, math.Float32frombits(v)) })
		case 8: // ints
			return readRepeatedVarint(typ, b, func(v uint64) { m.Ints = append(m.Ints, int64(v)) }) //nolint:gosec // int64 on the wire
		case 9: // strings
			return readMessage(typ, b, func(sub []byte) error {
				m.Strings = append(m.Strings, sub)
				return nil
			})
		case 10: // tensors
			return readMessage(typ, b, func(sub []byte) error {
				var t TensorProto
				if err := readTensorProto(sub, &t); err != nil {
					return err
				}
				m.Tensors = append(m.Tensors, t)
				return nil
			})
		case 13: // doc_string
			return readString(typ, b, &m.DocString)
		case 20: // type
			return readInt32(typ, b, &m.Type)
		}
		return skipField(num, typ, b)
	})
}

func readOperatorSetID(b []byte, m *OperatorSetID) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1: // domain
			return readString(typ, b, &m.Domain)
		case 2: // version
			return readInt64(typ, b, &m.Version)
		}
		return skipField(num, typ, b)
	})
}

func readStringStringEntry(b []byte, m *StringStringEntry) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1: // key
			return readString(typ, b, &m.Key)
		case 2: // value
			return readString(typ, b, &m.Value)
		}
		return skipField(num, typ, b)
	})
}

// Scalar readers. Each checks the wire type before consuming the value.

func wireTypeError(want, got protowire.Type) error {
	return errors.Errorf("wire type %d, want %d", got, want)
}

func consumed(n int) (int, error) {
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return n, nil
}

func readInt64(typ protowire.Type, b []byte, dst *int64) (int, error) {
	if typ != protowire.VarintType {
		return 0, wireTypeError(protowire.VarintType, typ)
	}
	v, n := protowire.ConsumeVarint(b)
	*dst = int64(v) //nolint:gosec // two's complement int64 on the wire
	return consumed(n)
}

func readInt32(typ protowire.Type, b []byte, dst *int32) (int, error) {
	var v int64
	n, err := readInt64(typ, b, &v)
	*dst = int32(v) //nolint:gosec // enum/int32 fields fit
	return n, err
}

func readFloat32(typ protowire.Type, b []byte, dst *float32) (int, error) {
	if typ != protowire.Fixed32Type {
		return 0, wireTypeError(protowire.Fixed32Type, typ)
	}
	v, n := protowire.ConsumeFixed32(b)
	*dst = math.Float32frombits(v)
	return consumed(n)
}

func readBytes(typ protowire.Type, b []byte, dst *[]byte) (int, error) {
	if typ != protowire.BytesType {
		return 0, wireTypeError(protowire.BytesType, typ)
	}
	v, n := protowire.ConsumeBytes(b)
	*dst = v
	return consumed(n)
}

func readString(typ protowire.Type, b []byte, dst *string) (int, error) {
	var v []byte
	n, err := readBytes(typ, b, &v)
	*dst = string(v)
	return n, err
}

func appendString(typ protowire.Type, b []byte, dst *[]string) (int, error) {
	var s string
	n, err := readString(typ, b, &s)
	if err == nil {
		*dst = append(*dst, s)
	}
	return n, err
}

func readMessage(typ protowire.Type, b []byte, fn func(sub []byte) error) (int, error) {
	var sub []byte
	n, err := readBytes(typ, b, &sub)
	if err != nil {
		return n, err
	}
	return n, fn(sub)
}

// readRepeatedVarint accepts both the packed and the unpacked encoding.
func readRepeatedVarint(typ protowire.Type, b []byte, add func(uint64)) (int, error) {
	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(b)
		if n >= 0 {
			add(v)
		}
		return consumed(n)
	case protowire.BytesType:
		return readMessage(typ, b, func(packed []byte) error {
			for len(packed) > 0 {
				v, n := protowire.ConsumeVarint(packed)
				if n < 0 {
					return protowire.ParseError(n)
				}
				add(v)
				packed = packed[n:]
			}
			return nil
		})
	}
	return 0, wireTypeError(protowire.VarintType, typ)
}

// readRepeatedFixed32 accepts both the packed and the unpacked encoding.
func readRepeatedFixed32(typ protowire.Type, b []byte, add func(uint32)) (int, error) {
	switch typ {
	case protowire.Fixed32Type:
		v, n := protowire.ConsumeFixed32(b)
		if n >= 0 {
			add(v)
		}
		return consumed(n)
	case protowire.BytesType:
		return readMessage(typ, b, func(packed []byte) error {
			for len(packed) > 0 {
				v, n := protowire.ConsumeFixed32(packed)
				if n < 0 {
					return protowire.ParseError(n)
				}
				add(v)
				packed = packed[n:]
			}
			return nil
		})
	}
	return 0, wireTypeError(protowire.Fixed32Type, typ)
}

// readRepeatedFixed64 accepts both the packed and the unpacked encoding.
func readRepeatedFixed64(typ protowire.Type, b []byte, add func(uint64)) (int, error) {
	switch typ {
	case protowire.Fixed64Type:
		v, n := protowire.ConsumeFixed64(b)
		if n >= 0 {
			add(v)
		}
		return consumed(n)
	case protowire.BytesType:
		return readMessage(typ, b, func(packed []byte) error {
			for len(packed) > 0 {
				v, n := protowire.ConsumeFixed64(packed)
				if n < 0 {
					return protowire.ParseError(n)
				}
				add(v)
				packed = packed[n:]
			}
			return nil
		})
	}
	return 0, wireTypeError(protowire.Fixed64Type, typ)
}

func skipField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	return consumed(protowire.ConsumeFieldValue(num, typ, b))
}
