package operators

import "github.com/born-ml/onnxgen/internal/tensor"

// registerMathOps adds arithmetic operators to the registry.
func (r *Registry) registerMathOps() {
	r.Register("Add", binary("add", tensor.Add))
	r.Register("Sub", binary("sub", tensor.Sub))
	r.Register("Mul", binary("mul", tensor.Mul))
	r.Register("Div", binary("div", tensor.Div))
	r.Register("Sqrt", unary("sqrt", tensor.Sqrt))
	r.Register("Exp", unary("exp", tensor.Exp))
	r.Register("Sum", handleSum)
}

// binary adapts a broadcasting two-input kernel to an OpHandler.
func binary(op string, kernel func(a, b *tensor.RawTensor) (*tensor.RawTensor, error)) OpHandler {
	return func(_ *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if err := wantInputs(op, inputs, 2, 2); err != nil {
			return nil, err
		}
		out, err := kernel(inputs[0], inputs[1])
		return single(op, out, err)
	}
}

func handleSum(_ *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := wantInputs("sum", inputs, 1, len(inputs)); err != nil {
		return nil, err
	}
	result := inputs[0]
	for _, in := range inputs[1:] {
		var err error
		if result, err = tensor.Add(result, in); err != nil {
			return single("sum", nil, err)
		}
	}
	return []*tensor.RawTensor{result}, nil
}
