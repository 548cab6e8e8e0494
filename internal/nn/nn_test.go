package nn

import (
	"math"
	"testing"

	"github.com/born-ml/onnxgen/internal/onnx"
	"github.com/born-ml/onnxgen/internal/tensor"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

var channelInput = []float32{
	0.1, 0.2, 0.3, 0.4, // channel 0
	0.5, 0.6, 0.7, 0.8, // channel 1
	0.9, 0.0, 0.3, 0.6, // channel 2
}

func TestErfForward(t *testing.T) {
	x := must.M1(tensor.FromFloat32([]float32{-1, 0, 0.5}, tensor.Shape{1, 3}))
	y, err := NewErf().Forward(x)
	require.NoError(t, err)
	assert.Equal(t, x.Shape(), y.Shape())
	for i, v := range x.AsFloat32() {
		assert.InDelta(t, math.Erf(float64(v)), float64(y.AsFloat32()[i]), 1e-7)
	}
	assert.Empty(t, NewErf().Parameters())
}

func TestActivationsForward(t *testing.T) {
	x := must.M1(tensor.FromFloat32([]float32{-2, 0, 2}, tensor.Shape{3}))
	tests := []struct {
		module Module
		want   func(float64) float64
	}{
		{NewReLU(), func(v float64) float64 { return math.Max(0, v) }},
		{NewSigmoid(), func(v float64) float64 { return 1 / (1 + math.Exp(-v)) }},
		{NewTanh(), math.Tanh},
	}
	for _, tt := range tests {
		t.Run(tt.module.Name(), func(t *testing.T) {
			y := must.M1(tt.module.Forward(x))
			for i, v := range x.AsFloat32() {
				assert.InDelta(t, tt.want(float64(v)), float64(y.AsFloat32()[i]), 1e-6)
			}
		})
	}
}

func TestNewBatchNorm2d(t *testing.T) {
	bn, err := NewBatchNorm2d("layer", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, bn.NumFeatures())
	assert.InDelta(t, 1e-5, bn.Epsilon(), 1e-12)
	assert.InDelta(t, 0.1, bn.Momentum(), 1e-7)
	assert.True(t, bn.Training())

	names := make([]string, 0)
	for _, p := range bn.Parameters() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"layer.weight", "layer.bias", "layer.running_mean", "layer.running_var"}, names)
	assert.True(t, bn.Weight().Trainable())
	assert.False(t, bn.RunningVar().Trainable())
	assert.Equal(t, []float32{1, 1, 1}, bn.Weight().Tensor().AsFloat32())
	assert.Equal(t, []float32{0, 0, 0}, bn.RunningMean().Tensor().AsFloat32())

	_, err = NewBatchNorm2d("layer", 0)
	assert.ErrorIs(t, err, tensor.ErrInvalidShape)
}

func TestBatchNorm2dEval(t *testing.T) {
	bn := must.M1(NewBatchNorm2d("layer", 3))
	bn.SetTraining(false)

	x := must.M1(tensor.FromFloat32(channelInput, tensor.Shape{1, 3, 2, 2}))
	y, err := bn.Forward(x)
	require.NoError(t, err)
	require.Len(t, y.AsFloat32(), 12)

	// Default statistics only rescale by 1/sqrt(1+eps), so channel means do too.
	scale := 1 / math.Sqrt(1+1e-5)
	in := must.M1(tensor.ChannelValues(x))
	out := must.M1(tensor.ChannelValues(y))
	for c := range in {
		assert.InDelta(t, stat.Mean(in[c], nil)*scale, stat.Mean(out[c], nil), 1e-6)
	}
}

func TestBatchNorm2dTrain(t *testing.T) {
	bn := must.M1(NewBatchNorm2d("layer", 3))
	x := must.M1(tensor.FromFloat32(channelInput, tensor.Shape{1, 3, 2, 2}))

	y, err := bn.Forward(x)
	require.NoError(t, err)

	out := must.M1(tensor.ChannelValues(y))
	in := must.M1(tensor.ChannelValues(x))
	for c := range out {
		mean, variance := stat.PopMeanVariance(out[c], nil)
		assert.InDelta(t, 0, mean, 1e-6, "channel %d", c)
		_, inVar := stat.PopMeanVariance(in[c], nil)
		assert.InDelta(t, inVar/(inVar+1e-5), variance, 1e-4, "channel %d", c)

		wantMean := 0.1 * stat.Mean(in[c], nil)
		wantVar := 0.9 + 0.1*stat.Variance(in[c], nil)
		assert.InDelta(t, wantMean, float64(bn.RunningMean().Tensor().AsFloat32()[c]), 1e-6)
		assert.InDelta(t, wantVar, float64(bn.RunningVar().Tensor().AsFloat32()[c]), 1e-6)
	}
}

func TestBatchNorm2dTrainNeedsSeveralValues(t *testing.T) {
	bn := must.M1(NewBatchNorm2d("layer", 3))
	x := must.M1(tensor.Zeros(tensor.Shape{1, 3, 1, 1}))
	_, err := bn.Forward(x)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	bn.SetTraining(false)
	_, err = bn.Forward(x)
	assert.NoError(t, err)
}

func TestBatchNorm2dShapeErrors(t *testing.T) {
	bn := must.M1(NewBatchNorm2d("layer", 3))
	bn.SetTraining(false)

	_, err := bn.Forward(must.M1(tensor.Zeros(tensor.Shape{1, 4, 2, 2})))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = bn.Forward(must.M1(tensor.Zeros(tensor.Shape{3, 2, 2})))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestBatchNorm2dExport(t *testing.T) {
	bn := must.M1(NewBatchNorm2d("layer", 3))
	b := onnx.NewGraphBuilder("bn", 10)
	b.AddInput("input", onnx.TensorProtoFloat, nil)

	out, err := bn.Export(b, "input")
	require.NoError(t, err)

	graph := b.Graph()
	require.Len(t, graph.Nodes, 1)
	node := graph.Nodes[0]
	assert.Equal(t, "BatchNormalization", node.OpType)
	assert.Equal(t, []string{"input", "layer.weight", "layer.bias", "layer.running_mean", "layer.running_var"}, node.Inputs)
	assert.Equal(t, []string{out}, node.Outputs)

	require.Len(t, node.Attributes, 2)
	assert.Equal(t, "epsilon", node.Attributes[0].Name)
	assert.InDelta(t, 1e-5, node.Attributes[0].F, 1e-12)
	assert.Equal(t, "momentum", node.Attributes[1].Name)
	assert.InDelta(t, 0.9, node.Attributes[1].F, 1e-7)
	assert.Len(t, graph.Initializers, 4)
}

func TestSequential(t *testing.T) {
	bn := must.M1(NewBatchNorm2d("layer", 3))
	model := NewSequential("model", NewErf(), bn)
	SetTraining(model, false)
	assert.False(t, bn.Training())
	assert.Equal(t, 2, model.Len())
	assert.Len(t, model.Parameters(), 4)

	x := must.M1(tensor.FromFloat32(channelInput, tensor.Shape{1, 3, 2, 2}))
	y, err := model.Forward(x)
	require.NoError(t, err)
	erfed := must.M1(NewErf().Forward(x))
	want := must.M1(bn.Forward(erfed))
	assert.Equal(t, want.AsFloat32(), y.AsFloat32())

	b := onnx.NewGraphBuilder("model", 10)
	b.AddInput("input", onnx.TensorProtoFloat, nil)
	_, err = model.Export(b, "input")
	require.NoError(t, err)
	ops := []string{b.Graph().Nodes[0].OpType, b.Graph().Nodes[1].OpType}
	assert.Equal(t, []string{"Erf", "BatchNormalization"}, ops)

	_, err = NewSequential("old", NewErf()).Export(onnx.NewGraphBuilder("old", 8), "input")
	assert.ErrorIs(t, err, onnx.ErrOpsetTooOld)
}
