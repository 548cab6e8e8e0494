package operators

import (
	"github.com/born-ml/onnxgen/internal/tensor"
	"github.com/pkg/errors"
)

// registerShapeOps adds shape manipulation operators to the registry.
func (r *Registry) registerShapeOps() {
	r.Register("Reshape", handleReshape)
	r.Register("Flatten", handleFlatten)
}

// handleReshape reads the target shape from the second input (opset 5+) or,
// for older graphs, from the "shape" attribute.
func handleReshape(_ *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := wantInputs("reshape", inputs, 1, 2); err != nil {
		return nil, err
	}

	var dims []int64
	switch {
	case len(inputs) == 2 && inputs[1] != nil:
		if inputs[1].DType() != tensor.Int64 {
			return nil, errors.Wrapf(tensor.ErrDTypeMismatch, "reshape: shape input is %s", inputs[1])
		}
		dims = inputs[1].AsInt64()
	default:
		dims = GetAttrInts(node, "shape")
		if dims == nil {
			return nil, errors.New("reshape: no target shape")
		}
	}

	out, err := tensor.Reshape(inputs[0], dims)
	return single("reshape", out, err)
}

func handleFlatten(_ *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := wantInputs("flatten", inputs, 1, 1); err != nil {
		return nil, err
	}
	axis := int(GetAttrInt(node, "axis", 1))
	out, err := tensor.Flatten(inputs[0], axis)
	return single("flatten", out, err)
}
