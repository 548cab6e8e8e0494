package onnx_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/born-ml/onnxgen/internal/fixture"
	"github.com/born-ml/onnxgen/onnx"
	"github.com/born-ml/onnxgen/tensor"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockModel implements the onnx.Model interface for testing.
type mockModel struct {
	forwardFunc func(*tensor.RawTensor) (*tensor.RawTensor, error)
}

func (m *mockModel) Forward(input *tensor.RawTensor) (*tensor.RawTensor, error) {
	return m.forwardFunc(input)
}

func (m *mockModel) ForwardNamed(inputs map[string]*tensor.RawTensor) (map[string]*tensor.RawTensor, error) {
	out, err := m.forwardFunc(inputs["input"])
	return map[string]*tensor.RawTensor{"output": out}, err
}

func (m *mockModel) InputNames() []string        { return []string{"input"} }
func (m *mockModel) OutputNames() []string       { return []string{"output"} }
func (m *mockModel) OpsetVersion() int64         { return 10 }
func (m *mockModel) Metadata() map[string]string { return map[string]string{} }

func TestModelInterface(_ *testing.T) {
	var _ onnx.Model = &mockModel{}
}

// TestLoadGeneratedFixture is what a consumer of generated fixtures does:
// load network.onnx, feed it input_data and compare with output_data.
func TestLoadGeneratedFixture(t *testing.T) {
	dir := t.TempDir()
	cfg := fixture.DefaultConfig()
	cfg.OutDir = dir
	cfg.Seed = 11
	res := must.M1(fixture.Generate(context.Background(), must.M1(fixture.Lookup("1l_erf")), cfg))

	model, err := onnx.Load(filepath.Join(dir, "network.onnx"))
	require.NoError(t, err)
	assert.Equal(t, []string{"input"}, model.InputNames())
	assert.Equal(t, []string{"output"}, model.OutputNames())
	assert.Equal(t, int64(10), model.OpsetVersion())
	assert.Equal(t, "onnxgen", model.Metadata()["producer_name"])

	x := must.M1(tensor.FromFloat64(res.Record.InputData[0], tensor.Shape{1, 3}))
	y, err := model.Forward(x)
	require.NoError(t, err)
	assert.InDeltaSlice(t, res.Record.OutputData[0], must.M1(y.Float64s()), 1e-6)

	info, err := onnx.GetModelInfo(filepath.Join(dir, "network.onnx"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Erf"}, info.Operators)
}

func TestLoadErrors(t *testing.T) {
	model, err := onnx.Load(filepath.Join(t.TempDir(), "missing.onnx"))
	assert.Error(t, err)
	assert.Nil(t, model)

	model, err = onnx.LoadFromBytes([]byte{0xff})
	assert.Error(t, err)
	assert.Nil(t, model)
}

func TestListSupportedOps(t *testing.T) {
	ops := onnx.ListSupportedOps()
	assert.Contains(t, ops, "Erf")
	assert.Contains(t, ops, "BatchNormalization")
}
