package operators

import (
	"github.com/born-ml/onnxgen/internal/tensor"
	"github.com/pkg/errors"
)

// registerNormalization adds normalization operators to the registry.
func (r *Registry) registerNormalization() {
	r.Register("BatchNormalization", handleBatchNormalization)
}

// handleBatchNormalization implements inference-mode BatchNormalization:
// inputs X, scale, B, input_mean, input_var; output Y. The optional training
// outputs (running statistics) are not produced.
func handleBatchNormalization(_ *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := wantInputs("batchNormalization", inputs, 5, 5); err != nil {
		return nil, err
	}
	if GetAttrInt(node, "training_mode", 0) != 0 {
		return nil, errors.Wrap(ErrUnsupportedOp, "BatchNormalization with training_mode=1")
	}
	epsilon := GetAttrFloat(node, "epsilon", 1e-5)
	out, err := tensor.BatchNorm(inputs[0], inputs[1], inputs[2], inputs[3], inputs[4], epsilon)
	return single("batchNormalization", out, err)
}
