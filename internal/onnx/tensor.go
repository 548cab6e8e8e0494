package onnx

import (
	"encoding/binary"
	"math"

	"github.com/born-ml/onnxgen/internal/tensor"
	"github.com/pkg/errors"
)

// TensorFromRaw converts a RawTensor to a TensorProto carrying little-endian
// raw_data, the layout exporters use for initializers.
func TensorFromRaw(name string, t *tensor.RawTensor) (TensorProto, error) {
	dataType, err := tensorTypeToProtoType(t.DType())
	if err != nil {
		return TensorProto{}, errors.WithMessagef(err, "tensor %q", name)
	}
	dims := make([]int64, len(t.Shape()))
	for i, d := range t.Shape() {
		dims[i] = int64(d)
	}

	raw := make([]byte, 0, t.ByteSize())
	switch t.DType() {
	case tensor.Float32:
		for _, v := range t.AsFloat32() {
			raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(v))
		}
	case tensor.Float64:
		for _, v := range t.AsFloat64() {
			raw = binary.LittleEndian.AppendUint64(raw, math.Float64bits(v))
		}
	case tensor.Int32:
		for _, v := range t.AsInt32() {
			raw = binary.LittleEndian.AppendUint32(raw, uint32(v)) //nolint:gosec // bit pattern copy
		}
	case tensor.Int64:
		for _, v := range t.AsInt64() {
			raw = binary.LittleEndian.AppendUint64(raw, uint64(v)) //nolint:gosec // bit pattern copy
		}
	default:
		raw = append(raw, t.Data()...)
	}

	return TensorProto{
		Name:     name,
		DataType: dataType,
		Dims:     dims,
		RawData:  raw,
	}, nil
}

// TensorToRaw converts a TensorProto to a RawTensor. raw_data takes
// precedence over the typed legacy fields, which are mutually exclusive.
func TensorToRaw(proto *TensorProto) (*tensor.RawTensor, error) {
	shape := make(tensor.Shape, len(proto.Dims))
	for i, dim := range proto.Dims {
		if dim > math.MaxInt {
			return nil, errors.Wrapf(tensor.ErrInvalidShape, "tensor %q: dimension %d is %d", proto.Name, i, dim)
		}
		shape[i] = int(dim)
	}
	if err := shape.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "tensor %q", proto.Name)
	}
	dtype, err := protoTypeToTensorType(proto.DataType)
	if err != nil {
		return nil, errors.WithMessagef(err, "tensor %q", proto.Name)
	}

	// The payload must fill the declared shape before anything is allocated.
	n := shape.NumElements()
	var got int
	if len(proto.RawData) > 0 {
		if len(proto.RawData)%dtype.Size() != 0 {
			return nil, errors.Wrapf(tensor.ErrShapeMismatch, "tensor %q: %d raw bytes for %s%v",
				proto.Name, len(proto.RawData), dtype, shape)
		}
		got = len(proto.RawData) / dtype.Size()
	} else {
		switch dtype {
		case tensor.Float32:
			got = len(proto.FloatData)
		case tensor.Float64:
			got = len(proto.DoubleData)
		case tensor.Int32, tensor.Uint8, tensor.Bool:
			// Uint8 and Bool are stored as int32_data, one element per value.
			got = len(proto.Int32Data)
		case tensor.Int64:
			got = len(proto.Int64Data)
		}
	}
	if got != n {
		return nil, errors.Wrapf(tensor.ErrShapeMismatch, "tensor %q: %d values for %s%v", proto.Name, got, dtype, shape)
	}

	t, err := tensor.NewRaw(shape, dtype)
	if err != nil {
		return nil, errors.WithMessagef(err, "tensor %q", proto.Name)
	}
	if len(proto.RawData) > 0 {
		decodeLittleEndian(proto.RawData, t)
		return t, nil
	}
	switch dtype {
	case tensor.Float32:
		copy(t.AsFloat32(), proto.FloatData)
	case tensor.Float64:
		copy(t.AsFloat64(), proto.DoubleData)
	case tensor.Int32:
		copy(t.AsInt32(), proto.Int32Data)
	case tensor.Int64:
		copy(t.AsInt64(), proto.Int64Data)
	case tensor.Uint8, tensor.Bool:
		data := t.Data()
		for i, v := range proto.Int32Data {
			data[i] = byte(v) //nolint:gosec // values are 0..255
		}
	}
	return t, nil
}

func decodeLittleEndian(raw []byte, t *tensor.RawTensor) {
	switch t.DType() {
	case tensor.Float32:
		dst := t.AsFloat32()
		for i := range dst {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
		}
	case tensor.Float64:
		dst := t.AsFloat64()
		for i := range dst {
			dst[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
		}
	case tensor.Int32:
		dst := t.AsInt32()
		for i := range dst {
			dst[i] = int32(binary.LittleEndian.Uint32(raw[4*i:])) //nolint:gosec // bit pattern copy
		}
	case tensor.Int64:
		dst := t.AsInt64()
		for i := range dst {
			dst[i] = int64(binary.LittleEndian.Uint64(raw[8*i:])) //nolint:gosec // bit pattern copy
		}
	default:
		copy(t.Data(), raw)
	}
}

// protoTypeToTensorType converts an ONNX data type to tensor.DataType.
func protoTypeToTensorType(onnxType int32) (tensor.DataType, error) {
	switch onnxType {
	case TensorProtoFloat:
		return tensor.Float32, nil
	case TensorProtoDouble:
		return tensor.Float64, nil
	case TensorProtoInt32:
		return tensor.Int32, nil
	case TensorProtoInt64:
		return tensor.Int64, nil
	case TensorProtoUint8:
		return tensor.Uint8, nil
	case TensorProtoBool:
		return tensor.Bool, nil
	default:
		return 0, errors.Wrapf(tensor.ErrUnsupportedDType, "ONNX data type %d", onnxType)
	}
}

// tensorTypeToProtoType converts a tensor.DataType to its ONNX data type.
func tensorTypeToProtoType(dtype tensor.DataType) (int32, error) {
	switch dtype {
	case tensor.Float32:
		return TensorProtoFloat, nil
	case tensor.Float64:
		return TensorProtoDouble, nil
	case tensor.Int32:
		return TensorProtoInt32, nil
	case tensor.Int64:
		return TensorProtoInt64, nil
	case tensor.Uint8:
		return TensorProtoUint8, nil
	case tensor.Bool:
		return TensorProtoBool, nil
	default:
		return 0, errors.Wrapf(tensor.ErrUnsupportedDType, "%s", dtype)
	}
}
