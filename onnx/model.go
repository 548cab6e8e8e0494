package onnx

import "github.com/born-ml/onnxgen/tensor"

// Model represents a loaded ONNX model ready for inference.
//
// This interface hides the internal implementation, so tests consuming
// fixtures can substitute their own models.
type Model interface {
	// Forward runs inference with a single input tensor.
	// For models with multiple inputs, use ForwardNamed.
	Forward(input *tensor.RawTensor) (*tensor.RawTensor, error)

	// ForwardNamed runs inference with named inputs and returns the
	// outputs by name. All input names from InputNames() must be provided.
	ForwardNamed(inputs map[string]*tensor.RawTensor) (map[string]*tensor.RawTensor, error)

	// InputNames returns the names of model inputs.
	InputNames() []string

	// OutputNames returns the names of model outputs.
	OutputNames() []string

	// OpsetVersion returns the ONNX opset version used by the model.
	OpsetVersion() int64

	// Metadata returns model metadata as key-value pairs.
	//
	// Keys always present:
	//   - "producer_name": exporter of the model ("onnxgen" for fixtures)
	//   - "producer_version": version of the exporter
	//   - "domain": domain of the model (usually "")
	//
	// plus every entry of the model's metadata_props.
	Metadata() map[string]string
}
