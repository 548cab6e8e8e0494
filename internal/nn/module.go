// Package nn implements the model definitions fixtures are generated from.
//
// This package provides:
//   - Module interface: forward pass plus ONNX export of the same computation
//   - Parameter: named weights and buffers
//   - Activations: Erf, ReLU, Sigmoid, Tanh
//   - BatchNorm2d: batch normalization over [N, C, H, W]
//   - Sequential: container for stacking layers
//
// Modules follow PyTorch's nn.Module conventions for names, defaults and
// parameter naming, so the exported graphs match what torch.onnx produces.
package nn

import (
	"github.com/born-ml/onnxgen/internal/onnx"
	"github.com/born-ml/onnxgen/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every module must implement:
//   - Forward: compute output from input
//   - Parameters: return weights and buffers
//   - Export: emit the ONNX nodes computing Forward
//
// Modules can be composed to build larger models:
//
//	model := nn.NewSequential("model",
//	    nn.NewErf(),
//	    must.M1(nn.NewBatchNorm2d("layer", 3)),
//	)
type Module interface {
	// Name identifies the module; it prefixes exported initializer names.
	Name() string

	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.RawTensor) (*tensor.RawTensor, error)

	// Parameters returns the module's parameters, including
	// non-trainable buffers such as running statistics.
	Parameters() []*Parameter

	// Export appends the module's nodes to b, reading the tensor named
	// input, and returns the name of the tensor holding the result.
	Export(b *onnx.GraphBuilder, input string) (string, error)
}

// Trainable is implemented by modules whose behavior differs between
// training and inference.
type Trainable interface {
	SetTraining(training bool)
	Training() bool
}

// SetTraining switches m, and every module it contains, to training or
// inference mode.
func SetTraining(m Module, training bool) {
	if t, ok := m.(Trainable); ok {
		t.SetTraining(training)
	}
	if s, ok := m.(*Sequential); ok {
		for _, child := range s.modules {
			SetTraining(child, training)
		}
	}
}
