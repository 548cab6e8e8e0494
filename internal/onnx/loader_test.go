package onnx

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/born-ml/onnxgen/internal/onnx/operators"
	"github.com/born-ml/onnxgen/internal/tensor"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func erfModel(t *testing.T, opset int64) *ModelProto {
	t.Helper()
	b := NewGraphBuilder("1l_erf", opset)
	dynamic := map[int]string{0: "batch_size"}
	b.AddInput("input", TensorProtoFloat, Dims(tensor.Shape{1, 3}, dynamic))
	out, err := b.AddNode("Erf", []string{"input"})
	require.NoError(t, err)
	require.NoError(t, b.Rename(out, "output"))
	b.AddOutput("output", TensorProtoFloat, Dims(tensor.Shape{1, 3}, dynamic))
	return b.Build(ModelOptions{ProducerName: "onnxgen"})
}

func TestListSupportedOps(t *testing.T) {
	ops := ListSupportedOps()
	for _, essential := range []string{"Erf", "BatchNormalization", "Identity", "Add", "Reshape"} {
		assert.Contains(t, ops, essential)
	}
}

func TestTopologicalSort(t *testing.T) {
	// A -> B -> C
	//      B -> D
	nodes := []NodeProto{
		{Name: "C", Inputs: []string{"b_out"}, Outputs: []string{"c_out"}},
		{Name: "A", Inputs: []string{"input"}, Outputs: []string{"a_out"}},
		{Name: "D", Inputs: []string{"b_out"}, Outputs: []string{"d_out"}},
		{Name: "B", Inputs: []string{"a_out"}, Outputs: []string{"b_out"}},
	}

	sorted, err := topologicalSort(nodes)
	require.NoError(t, err)

	positions := make(map[string]int)
	for i, node := range sorted {
		positions[node.Name] = i
	}
	assert.Less(t, positions["A"], positions["B"])
	assert.Less(t, positions["B"], positions["C"])
	assert.Less(t, positions["B"], positions["D"])
}

func TestTopologicalSortCycle(t *testing.T) {
	nodes := []NodeProto{
		{Name: "A", Inputs: []string{"b_out"}, Outputs: []string{"a_out"}},
		{Name: "B", Inputs: []string{"a_out"}, Outputs: []string{"b_out"}},
	}
	_, err := topologicalSort(nodes)
	assert.ErrorIs(t, err, ErrInvalidModel)
}

func TestLoadErfModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "network.onnx")
	require.NoError(t, WriteFile(path, erfModel(t, 10)))

	model, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"input"}, model.InputNames())
	assert.Equal(t, []string{"output"}, model.OutputNames())
	assert.Equal(t, int64(10), model.OpsetVersion())
	assert.Equal(t, "onnxgen", model.Metadata()["producer_name"])

	x := must.M1(tensor.FromFloat32([]float32{0.1, 0.5, 0.9}, tensor.Shape{1, 3}))
	y, err := model.Forward(x)
	require.NoError(t, err)
	for i, v := range x.AsFloat32() {
		assert.InDelta(t, math.Erf(float64(v)), float64(y.AsFloat32()[i]), 1e-6)
	}

	// The batch axis is dynamic.
	batch := must.M1(tensor.Zeros(tensor.Shape{4, 3}))
	y, err = model.Forward(batch)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{4, 3}, y.Shape())
}

func TestForwardChecksDeclaredInputs(t *testing.T) {
	model := must.M1(LoadFromProto(erfModel(t, 10), DefaultLoadOptions()))

	_, err := model.Forward(must.M1(tensor.Zeros(tensor.Shape{1, 4})))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = model.Forward(must.M1(tensor.Zeros(tensor.Shape{3})))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = model.Forward(must.M1(tensor.FromInt64([]int64{1, 2, 3}, tensor.Shape{1, 3})))
	assert.ErrorIs(t, err, tensor.ErrDTypeMismatch)

	_, err = model.ForwardNamed(map[string]*tensor.RawTensor{})
	assert.ErrorIs(t, err, ErrInvalidModel)
}

func TestLoadBatchNormModel(t *testing.T) {
	data := must.M1(Marshal(batchNormModel(t)))
	model, err := LoadFromBytes(data, LoadOptions{StrictMode: true})
	require.NoError(t, err)

	values := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	x := must.M1(tensor.FromFloat32(values, tensor.Shape{1, 3, 2, 2}))
	y, err := model.Forward(x)
	require.NoError(t, err)

	scale := 1 / math.Sqrt(1+1e-5)
	for i, v := range values {
		assert.InDelta(t, float64(v)*scale, float64(y.AsFloat32()[i]), 1e-5)
	}
}

func TestLoadStrictMode(t *testing.T) {
	// Erf under opset 8 is rejected in strict mode and fails at run time otherwise.
	proto := erfModel(t, 10)
	proto.OpsetImport = []OperatorSetID{{Version: 8}}

	_, err := LoadFromProto(proto, LoadOptions{StrictMode: true})
	assert.ErrorIs(t, err, ErrOpsetTooOld)

	model, err := LoadFromProto(proto, DefaultLoadOptions())
	require.NoError(t, err)
	_, err = model.Forward(must.M1(tensor.Zeros(tensor.Shape{1, 3})))
	assert.ErrorIs(t, err, ErrOpsetTooOld)

	proto.Graph.Nodes[0].OpType = "Gelu"
	_, err = LoadFromProto(proto, LoadOptions{StrictMode: true})
	assert.ErrorIs(t, err, ErrUnsupportedOp)
}

func TestLoadCustomOps(t *testing.T) {
	proto := erfModel(t, 10)
	proto.Graph.Nodes[0].OpType = "Twice"

	opts := LoadOptions{
		StrictMode: true,
		CustomOps: map[string]operators.OpHandler{
			"Twice": func(_ *operators.Context, _ *operators.Node, in []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
				out, err := tensor.Add(in[0], in[0])
				return []*tensor.RawTensor{out}, err
			},
		},
	}
	model, err := LoadFromProto(proto, opts)
	require.NoError(t, err)

	y := must.M1(model.Forward(must.M1(tensor.Ones(tensor.Shape{1, 3}))))
	assert.Equal(t, []float32{2, 2, 2}, y.AsFloat32())
}

func TestGetModelInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "network.onnx")
	require.NoError(t, WriteFile(path, batchNormModel(t)))

	info, err := GetModelInfo(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.IRVersion)
	assert.Equal(t, int64(10), info.OpsetVersion)
	assert.Equal(t, "1l_batch_norm", info.GraphName)
	assert.Equal(t, []string{"input"}, info.InputNames)
	assert.Equal(t, []string{"output"}, info.OutputNames)
	assert.Equal(t, []string{"BatchNormalization"}, info.Operators)
	assert.Equal(t, 1, info.NodeCount)
	assert.Equal(t, 4, info.WeightCount)
}
