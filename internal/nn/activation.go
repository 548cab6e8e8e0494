package nn

import (
	"github.com/born-ml/onnxgen/internal/onnx"
	"github.com/born-ml/onnxgen/internal/tensor"
	"github.com/pkg/errors"
)

// elementwise is a parameterless module applying one ONNX unary operator.
type elementwise struct {
	name   string
	opType string
	fn     func(*tensor.RawTensor) (*tensor.RawTensor, error)
}

func (e *elementwise) Name() string {
	return e.name
}

func (e *elementwise) Forward(input *tensor.RawTensor) (*tensor.RawTensor, error) {
	out, err := e.fn(input)
	if err != nil {
		return nil, errors.WithMessage(err, e.name)
	}
	return out, nil
}

// Parameters returns an empty slice.
func (e *elementwise) Parameters() []*Parameter {
	return []*Parameter{}
}

func (e *elementwise) Export(b *onnx.GraphBuilder, input string) (string, error) {
	out, err := b.AddNode(e.opType, []string{input})
	if err != nil {
		return "", errors.WithMessagef(err, "exporting %s", e.name)
	}
	return out, nil
}

// Erf applies the Gauss error function element-wise:
//
//	erf(x) = 2/sqrt(pi) * integral from 0 to x of exp(-t^2) dt
//
// Exported as ONNX Erf, which exists from opset 9 on.
type Erf struct{ elementwise }

// NewErf creates an Erf module.
func NewErf() *Erf {
	return &Erf{elementwise{name: "erf", opType: "Erf", fn: tensor.Erf}}
}

// ReLU applies max(0, x) element-wise.
type ReLU struct{ elementwise }

// NewReLU creates a ReLU module.
func NewReLU() *ReLU {
	return &ReLU{elementwise{name: "relu", opType: "Relu", fn: tensor.ReLU}}
}

// Sigmoid applies 1 / (1 + exp(-x)) element-wise.
type Sigmoid struct{ elementwise }

// NewSigmoid creates a Sigmoid module.
func NewSigmoid() *Sigmoid {
	return &Sigmoid{elementwise{name: "sigmoid", opType: "Sigmoid", fn: tensor.Sigmoid}}
}

// Tanh applies the hyperbolic tangent element-wise.
type Tanh struct{ elementwise }

// NewTanh creates a Tanh module.
func NewTanh() *Tanh {
	return &Tanh{elementwise{name: "tanh", opType: "Tanh", fn: tensor.Tanh}}
}
