package onnx

import (
	"github.com/born-ml/onnxgen/internal/onnx/operators"
	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedOp is returned for nodes whose op type has no handler.
	ErrUnsupportedOp = operators.ErrUnsupportedOp

	// ErrOpsetTooOld is returned when a node needs a newer opset than the
	// model imports.
	ErrOpsetTooOld = operators.ErrOpsetTooOld

	// ErrInvalidModel is returned for structurally broken models: no graph,
	// dangling tensor names, cycles, inputs that do not match their declared type.
	ErrInvalidModel = errors.New("invalid model")
)
