package onnx

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Marshal encodes the model in the protobuf wire format of onnx.proto.
//
// Fields are written in field-number order and zero values are omitted, so
// equal models always encode to identical bytes. Repeated scalars follow
// onnx.proto: tensor data arrays are packed, dims and attribute lists are not.
func Marshal(m *ModelProto) ([]byte, error) {
	if m == nil {
		return nil, errors.New("nil model")
	}
	if m.Graph == nil {
		return nil, errors.New("model has no graph")
	}
	return appendModelProto(nil, m), nil
}

// WriteFile encodes the model and writes it to path.
func WriteFile(path string, m *ModelProto) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	//nolint:gosec // G306: model files are meant to be shared
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

func appendModelProto(b []byte, m *ModelProto) []byte {
	b = appendInt64Field(b, 1, m.IRVersion)
	b = appendStringField(b, 2, m.ProducerName)
	b = appendStringField(b, 3, m.ProducerVersion)
	b = appendStringField(b, 4, m.Domain)
	b = appendInt64Field(b, 5, m.ModelVersion)
	b = appendStringField(b, 6, m.DocString)
	if m.Graph != nil {
		b = appendMessageField(b, 7, appendGraphProto(nil, m.Graph))
	}
	for i := range m.OpsetImport {
		b = appendMessageField(b, 8, appendOperatorSetID(nil, &m.OpsetImport[i]))
	}
	for i := range m.MetadataProps {
		b = appendMessageField(b, 14, appendStringStringEntry(nil, &m.MetadataProps[i]))
	}
	return b
}

func appendGraphProto(b []byte, m *GraphProto) []byte {
	for i := range m.Nodes {
		b = appendMessageField(b, 1, appendNodeProto(nil, &m.Nodes[i]))
	}
	b = appendStringField(b, 2, m.Name)
	for i := range m.Initializers {
		b = appendMessageField(b, 5, appendTensorProto(nil, &m.Initializers[i]))
	}
	b = appendStringField(b, 10, m.DocString)
	for i := range m.Inputs {
		b = appendMessageField(b, 11, appendValueInfoProto(nil, &m.Inputs[i]))
	}
	for i := range m.Outputs {
		b = appendMessageField(b, 12, appendValueInfoProto(nil, &m.Outputs[i]))
	}
	for i := range m.ValueInfo {
		b = appendMessageField(b, 13, appendValueInfoProto(nil, &m.ValueInfo[i]))
	}
	return b
}

func appendNodeProto(b []byte, m *NodeProto) []byte {
	for _, in := range m.Inputs {
		// Empty names mark omitted optional inputs and must keep their slot.
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, in)
	}
	for _, out := range m.Outputs {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, out)
	}
	b = appendStringField(b, 3, m.Name)
	b = appendStringField(b, 4, m.OpType)
	for i := range m.Attributes {
		b = appendMessageField(b, 5, appendAttributeProto(nil, &m.Attributes[i]))
	}
	b = appendStringField(b, 6, m.DocString)
	b = appendStringField(b, 7, m.Domain)
	return b
}

func appendTensorProto(b []byte, m *TensorProto) []byte {
	for _, d := range m.Dims {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(d)) //nolint:gosec // two's complement on the wire
	}
	b = appendInt64Field(b, 2, int64(m.DataType))
	if len(m.FloatData) > 0 {
		packed := make([]byte, 0, 4*len(m.FloatData))
		for _, v := range m.FloatData {
			packed = protowire.AppendFixed32(packed, math.Float32bits(v))
		}
		b = appendMessageField(b, 4, packed)
	}
	if len(m.Int32Data) > 0 {
		var packed []byte
		for _, v := range m.Int32Data {
			packed = protowire.AppendVarint(packed, uint64(int64(v))) //nolint:gosec // sign-extended like protoc
		}
		b = appendMessageField(b, 5, packed)
	}
	if len(m.Int64Data) > 0 {
		var packed []byte
		for _, v := range m.Int64Data {
			packed = protowire.AppendVarint(packed, uint64(v)) //nolint:gosec // two's complement on the wire
		}
		b = appendMessageField(b, 7, packed)
	}
	b = appendStringField(b, 8, m.Name)
	if len(m.RawData) > 0 {
		b = appendMessageField(b, 9, m.RawData)
	}
	if len(m.DoubleData) > 0 {
		packed := make([]byte, 0, 8*len(m.DoubleData))
		for _, v := range m.DoubleData {
			packed = protowire.AppendFixed64(packed, math.Float64bits(v))
		}
		b = appendMessageField(b, 10, packed)
	}
	b = appendStringField(b, 12, m.DocString)
	return b
}

func appendValueInfoProto(b []byte, m *ValueInfoProto) []byte {
	b = appendStringField(b, 1, m.Name)
	if m.Type != nil {
		b = appendMessageField(b, 2, appendTypeProto(nil, m.Type))
	}
	b = appendStringField(b, 3, m.DocString)
	return b
}

func appendTypeProto(b []byte, m *TypeProto) []byte {
	if m.TensorType != nil {
		b = appendMessageField(b, 1, appendTensorTypeProto(nil, m.TensorType))
	}
	return b
}

func appendTensorTypeProto(b []byte, m *TensorTypeProto) []byte {
	b = appendInt64Field(b, 1, int64(m.ElemType))
	if m.Shape != nil {
		b = appendMessageField(b, 2, appendTensorShapeProto(nil, m.Shape))
	}
	return b
}

func appendTensorShapeProto(b []byte, m *TensorShapeProto) []byte {
	for i := range m.Dims {
		b = appendMessageField(b, 1, appendDimensionProto(nil, &m.Dims[i]))
	}
	return b
}

func appendDimensionProto(b []byte, m *DimensionProto) []byte {
	if m.DimParam != "" {
		return appendStringField(b, 2, m.DimParam)
	}
	// dim_value sits in a oneof: presence matters even for zero.
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(m.DimValue)) //nolint:gosec // two's complement on the wire
}

func appendAttributeProto(b []byte, m *AttributeProto) []byte {
	b = appendStringField(b, 1, m.Name)
	if m.Type == AttributeProtoFloat || m.F != 0 {
		b = protowire.AppendTag(b, 2, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(m.F))
	}
	if m.Type == AttributeProtoInt || m.I != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.I)) //nolint:gosec // two's complement on the wire
	}
	if m.Type == AttributeProtoString || len(m.S) > 0 {
		b = appendMessageField(b, 4, m.S)
	}
	if m.T != nil {
		b = appendMessageField(b, 5, appendTensorProto(nil, m.T))
	}
	for _, v := range m.Floats {
		b = protowire.AppendTag(b, 7, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(v))
	}
	for _, v := range m.Ints {
		b = protowire.AppendTag(b, 8, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v)) //nolint:gosec // two's complement on the wire
	}
	for _, s := range m.Strings {
		b = appendMessageField(b, 9, s)
	}
	for i := range m.Tensors {
		b = appendMessageField(b, 10, appendTensorProto(nil, &m.Tensors[i]))
	}
	b = appendStringField(b, 13, m.DocString)
	b = appendInt64Field(b, 20, int64(m.Type))
	return b
}

func appendOperatorSetID(b []byte, m *OperatorSetID) []byte {
	b = appendStringField(b, 1, m.Domain)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(m.Version)) //nolint:gosec // opset versions are positive
}

func appendStringStringEntry(b []byte, m *StringStringEntry) []byte {
	b = appendStringField(b, 1, m.Key)
	return appendStringField(b, 2, m.Value)
}

func appendInt64Field(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v)) //nolint:gosec // two's complement on the wire
}

func appendStringField(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessageField(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
