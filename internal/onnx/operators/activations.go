package operators

import "github.com/born-ml/onnxgen/internal/tensor"

// registerActivations adds element-wise activation operators to the registry.
func (r *Registry) registerActivations() {
	r.Register("Relu", unary("relu", tensor.ReLU))
	r.Register("Sigmoid", unary("sigmoid", tensor.Sigmoid))
	r.Register("Tanh", unary("tanh", tensor.Tanh))
	r.RegisterSince("Erf", 9, unary("erf", tensor.Erf))
}

// unary adapts a one-input, one-output kernel to an OpHandler.
func unary(op string, kernel func(*tensor.RawTensor) (*tensor.RawTensor, error)) OpHandler {
	return func(_ *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if err := wantInputs(op, inputs, 1, 1); err != nil {
			return nil, err
		}
		out, err := kernel(inputs[0])
		return single(op, out, err)
	}
}
