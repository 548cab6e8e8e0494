package onnx

import (
	"path/filepath"
	"testing"

	"github.com/born-ml/onnxgen/internal/tensor"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchNormModel(t *testing.T) *ModelProto {
	t.Helper()
	b := NewGraphBuilder("1l_batch_norm", 10)
	b.AddInput("input", TensorProtoFloat, Dims(tensor.Shape{1, 3, 2, 2}, map[int]string{0: "batch_size"}))
	for _, p := range []struct {
		name  string
		value float32
	}{{"bn.weight", 1}, {"bn.bias", 0}, {"bn.running_mean", 0}, {"bn.running_var", 1}} {
		require.NoError(t, b.AddInitializer(p.name, must.M1(tensor.Full(tensor.Shape{3}, p.value))))
	}
	out, err := b.AddNode("BatchNormalization",
		[]string{"input", "bn.weight", "bn.bias", "bn.running_mean", "bn.running_var"},
		AttrFloat("epsilon", 1e-5), AttrFloat("momentum", 0.9))
	require.NoError(t, err)
	require.NoError(t, b.Rename(out, "output"))
	b.AddOutput("output", TensorProtoFloat, Dims(tensor.Shape{1, 3, 2, 2}, map[int]string{0: "batch_size"}))
	return b.Build(ModelOptions{
		ProducerName:    "onnxgen",
		ProducerVersion: "test",
		Metadata:        map[string]string{"seed": "42"},
	})
}

func TestMarshalRoundTrip(t *testing.T) {
	model := batchNormModel(t)

	data, err := Marshal(model)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, model, parsed)
}

func TestMarshalDeterministic(t *testing.T) {
	a := must.M1(Marshal(batchNormModel(t)))
	b := must.M1(Marshal(batchNormModel(t)))
	assert.Equal(t, a, b)
}

func TestMarshalKeepsZeroDimValue(t *testing.T) {
	model := &ModelProto{Graph: &GraphProto{
		Inputs: []ValueInfoProto{valueInfo("x", TensorProtoFloat, []DimensionProto{{DimValue: 0}})},
	}}
	parsed := must.M1(Parse(must.M1(Marshal(model))))
	dims := parsed.Graph.Inputs[0].Type.TensorType.Shape.Dims
	assert.Equal(t, []DimensionProto{{DimValue: 0}}, dims)
}

func TestMarshalErrors(t *testing.T) {
	_, err := Marshal(nil)
	assert.Error(t, err)
	_, err = Marshal(&ModelProto{})
	assert.Error(t, err)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "network.onnx")
	model := batchNormModel(t)
	require.NoError(t, WriteFile(path, model))

	parsed, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, model, parsed)

	assert.Error(t, WriteFile(filepath.Join(t.TempDir(), "missing", "network.onnx"), model))
}

func TestTensorRawConversion(t *testing.T) {
	tests := []struct {
		name string
		raw  *tensor.RawTensor
	}{
		{"float32", must.M1(tensor.FromFloat32([]float32{1.5, -2, 3.25}, tensor.Shape{3}))},
		{"float64", must.M1(tensor.FromFloat64s([]float64{0.1, 0.2}, tensor.Shape{2, 1}))},
		{"int64", must.M1(tensor.FromInt64([]int64{1, -1, 1 << 40}, tensor.Shape{3}))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proto, err := TensorFromRaw("t", tt.raw)
			require.NoError(t, err)
			assert.Len(t, proto.RawData, tt.raw.ByteSize())

			back, err := TensorToRaw(&proto)
			require.NoError(t, err)
			assert.Equal(t, tt.raw.Shape(), back.Shape())
			assert.Equal(t, tt.raw.DType(), back.DType())
			assert.Equal(t, tt.raw.Data(), back.Data())
		})
	}
}

func TestTensorToRawLegacyFields(t *testing.T) {
	proto := &TensorProto{Name: "w", DataType: TensorProtoFloat, Dims: []int64{2}, FloatData: []float32{1, 2}}
	raw, err := TensorToRaw(proto)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, raw.AsFloat32())

	proto.FloatData = []float32{1}
	_, err = TensorToRaw(proto)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	proto = &TensorProto{Name: "w", DataType: TensorProtoFloat, Dims: []int64{2}, RawData: []byte{0, 0, 0}}
	_, err = TensorToRaw(proto)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	proto = &TensorProto{Name: "s", DataType: TensorProtoString, Dims: []int64{1}}
	_, err = TensorToRaw(proto)
	assert.ErrorIs(t, err, tensor.ErrUnsupportedDType)
}

func TestTensorToRawHugeDims(t *testing.T) {
	tests := []struct {
		name string
		dims []int64
		data []float32
	}{
		{"product wraps to zero", []int64{1 << 32, 1 << 32}, nil},
		{"negative", []int64{-1}, nil},
		{"larger than the payload", []int64{1 << 20, 1 << 20}, []float32{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proto := &TensorProto{Name: "w", DataType: TensorProtoFloat, Dims: tt.dims, FloatData: tt.data}
			raw, err := TensorToRaw(proto)
			require.Error(t, err)
			assert.Nil(t, raw)
		})
	}
}
