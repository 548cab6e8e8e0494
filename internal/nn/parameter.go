package nn

import (
	"github.com/born-ml/onnxgen/internal/onnx"
	"github.com/born-ml/onnxgen/internal/tensor"
)

// Parameter is a named tensor owned by a module.
//
// Trainable parameters are weights and biases; the rest are buffers such as
// BatchNorm2d's running statistics. Both kinds are exported as initializers.
type Parameter struct {
	name      string            // Qualified name (e.g., "layer.running_mean")
	tensor    *tensor.RawTensor // Current value
	trainable bool
}

// NewParameter creates a trainable parameter.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return &Parameter{name: name, tensor: t, trainable: true}
}

// NewBuffer creates a non-trainable parameter.
func NewBuffer(name string, t *tensor.RawTensor) *Parameter {
	return &Parameter{name: name, tensor: t}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.RawTensor {
	return p.tensor
}

// SetTensor replaces the parameter value.
func (p *Parameter) SetTensor(t *tensor.RawTensor) {
	p.tensor = t
}

// Trainable reports whether the parameter is a weight rather than a buffer.
func (p *Parameter) Trainable() bool {
	return p.trainable
}

// export stores the parameter as an initializer under its name.
func (p *Parameter) export(b *onnx.GraphBuilder) (string, error) {
	if err := b.AddInitializer(p.name, p.tensor); err != nil {
		return "", err
	}
	return p.name, nil
}
