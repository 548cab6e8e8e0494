// Package onnx loads ONNX models, such as the fixtures onnxgen writes, and
// runs them.
//
// # Example Usage
//
//	model, err := onnx.Load("network.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	x, _ := tensor.FromFloat32([]float32{0.1, 0.2, 0.3}, tensor.Shape{1, 3})
//	y, err := model.Forward(x)
//
// # Supported Operators
//
//   - Arithmetic: Add, Sub, Mul, Div, Sqrt, Exp, Sum
//   - Activation: Erf, Relu, Sigmoid, Tanh
//   - Normalization: BatchNormalization (inference mode)
//   - Shape: Reshape, Flatten
//   - Other: Constant, Identity, Dropout
//
// Use [ListSupportedOps] to get the complete list of supported operators.
package onnx

import (
	internalonnx "github.com/born-ml/onnxgen/internal/onnx"
)

// LoadOptions configures ONNX model loading behavior.
type LoadOptions = internalonnx.LoadOptions

// Errors reported while loading or running models.
var (
	ErrUnsupportedOp = internalonnx.ErrUnsupportedOp
	ErrOpsetTooOld   = internalonnx.ErrOpsetTooOld
	ErrInvalidModel  = internalonnx.ErrInvalidModel
)

// DefaultLoadOptions returns the default options for loading ONNX models:
// unsupported operators are logged at load time and fail when they run.
func DefaultLoadOptions() LoadOptions {
	return internalonnx.DefaultLoadOptions()
}

// Load loads an ONNX model from a file path.
//
// For custom loading options, pass LoadOptions:
//
//	opts := onnx.DefaultLoadOptions()
//	opts.StrictMode = true // fail on unsupported or too new operators
//	model, err := onnx.Load("network.onnx", opts)
func Load(path string, opts ...LoadOptions) (Model, error) {
	m, err := internalonnx.Load(path, opts...)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// LoadFromBytes loads an ONNX model from raw bytes.
func LoadFromBytes(data []byte, opts ...LoadOptions) (Model, error) {
	m, err := internalonnx.LoadFromBytes(data, opts...)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ModelInfo contains metadata about an ONNX model without loading weights.
type ModelInfo = internalonnx.ModelInfo

// GetModelInfo extracts metadata from an ONNX file without loading the full model.
func GetModelInfo(path string) (*ModelInfo, error) {
	return internalonnx.GetModelInfo(path)
}

// ListSupportedOps returns a list of all supported ONNX operators.
func ListSupportedOps() []string {
	return internalonnx.ListSupportedOps()
}
