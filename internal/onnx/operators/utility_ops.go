package operators

import (
	"github.com/born-ml/onnxgen/internal/tensor"
	"github.com/pkg/errors"
)

// registerUtilityOps adds utility operators to the registry.
func (r *Registry) registerUtilityOps() {
	r.Register("Identity", handleIdentity)
	r.Register("Dropout", handleDropout)
	r.Register("Constant", handleConstant)
}

func handleIdentity(_ *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := wantInputs("identity", inputs, 1, 1); err != nil {
		return nil, err
	}
	return inputs, nil
}

// handleDropout is the identity at inference time; the optional mask output
// is not produced.
func handleDropout(_ *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := wantInputs("dropout", inputs, 1, 3); err != nil {
		return nil, err
	}
	return inputs[:1], nil
}

func handleConstant(_ *Context, node *Node, _ []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	for i := range node.Attributes {
		attr := &node.Attributes[i]
		var (
			t   *tensor.RawTensor
			err error
		)
		switch attr.Name {
		case "value":
			if attr.T == nil {
				return nil, errors.New("constant: value attribute carries no tensor")
			}
			t = attr.T
		case "value_float":
			t, err = tensor.FromFloat32([]float32{attr.F}, tensor.Shape{})
		case "value_floats":
			t, err = tensor.FromFloat32(attr.Floats, tensor.Shape{len(attr.Floats)})
		case "value_int":
			t, err = tensor.FromInt64([]int64{attr.I}, tensor.Shape{})
		case "value_ints":
			t, err = tensor.FromInt64(attr.Ints, tensor.Shape{len(attr.Ints)})
		default:
			continue
		}
		return single("constant", t, err)
	}
	return nil, errors.New("constant: no value attribute found")
}
