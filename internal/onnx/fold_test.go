package onnx

import (
	"testing"

	"github.com/born-ml/onnxgen/internal/onnx/operators"
	"github.com/born-ml/onnxgen/internal/tensor"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoldConstants(t *testing.T) {
	// output = input * sqrt(w + b); the Add and the Sqrt only read initializers.
	b := NewGraphBuilder("fold", 10)
	b.AddInput("input", TensorProtoFloat, Dims(tensor.Shape{3}, nil))
	require.NoError(t, b.AddInitializer("w", must.M1(tensor.FromFloat32([]float32{1, 2, 3}, tensor.Shape{3}))))
	require.NoError(t, b.AddInitializer("b", must.M1(tensor.FromFloat32([]float32{3, 2, 1}, tensor.Shape{3}))))
	sum := must.M1(b.AddNode("Add", []string{"w", "b"}))
	root := must.M1(b.AddNode("Sqrt", []string{sum}))
	out := must.M1(b.AddNode("Mul", []string{"input", root}))
	require.NoError(t, b.Rename(out, "output"))
	b.AddOutput("output", TensorProtoFloat, Dims(tensor.Shape{3}, nil))

	graph := b.Graph()
	folded, err := FoldConstants(graph, operators.NewRegistry(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, folded)

	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, "Mul", graph.Nodes[0].OpType)
	require.Len(t, graph.Initializers, 1, "w, b and the Add result are no longer read")
	assert.Equal(t, root, graph.Initializers[0].Name)

	folded2 := must.M1(TensorToRaw(&graph.Initializers[0]))
	assert.Equal(t, []float32{2, 2, 2}, folded2.AsFloat32())

	model := must.M1(LoadFromProto(b.Build(ModelOptions{}), DefaultLoadOptions()))
	y := must.M1(model.Forward(must.M1(tensor.FromFloat32([]float32{1, 2, 3}, tensor.Shape{3}))))
	assert.Equal(t, []float32{2, 4, 6}, y.AsFloat32())
}

func TestFoldConstantsKeepsOutputNodes(t *testing.T) {
	b := NewGraphBuilder("const", 10)
	out := must.M1(b.AddNode("Constant", nil, AttributeProto{
		Name: "value_floats", Type: AttributeProtoFloats, Floats: []float32{1, 2},
	}))
	require.NoError(t, b.Rename(out, "output"))
	b.AddOutput("output", TensorProtoFloat, nil)

	folded, err := FoldConstants(b.Graph(), operators.NewRegistry(), 10)
	require.NoError(t, err)
	assert.Zero(t, folded)
	assert.Len(t, b.Graph().Nodes, 1)
}

func TestFoldConstantsNothingToFold(t *testing.T) {
	model := batchNormModel(t)
	before := len(model.Graph.Initializers)

	folded, err := FoldConstants(model.Graph, operators.NewRegistry(), 10)
	require.NoError(t, err)
	assert.Zero(t, folded)
	assert.Len(t, model.Graph.Initializers, before)
}
