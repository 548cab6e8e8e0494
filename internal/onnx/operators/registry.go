package operators

import (
	"sort"

	"github.com/born-ml/onnxgen/internal/tensor"
	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedOp is returned for op types the registry has no handler for.
	ErrUnsupportedOp = errors.New("unsupported operator")

	// ErrOpsetTooOld is returned when an operator is used under an opset that
	// predates it, e.g. Erf under opset 8.
	ErrOpsetTooOld = errors.New("operator not available in opset")
)

// OpHandler processes an ONNX node and returns output tensors.
type OpHandler func(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error)

// Context carries execution settings shared by all operators of a graph.
type Context struct {
	// OpsetVersion of the default domain; 0 disables opset checks.
	OpsetVersion int64
}

type entry struct {
	handler OpHandler
	since   int64
}

// Registry maps ONNX operator types to handler functions.
type Registry struct {
	handlers map[string]entry
}

// NewRegistry creates a new operator registry with all supported operators.
func NewRegistry() *Registry {
	r := &Registry{
		handlers: make(map[string]entry),
	}

	r.registerMathOps()
	r.registerActivations()
	r.registerNormalization()
	r.registerShapeOps()
	r.registerUtilityOps()

	return r
}

// Register adds an operator handler available in every opset.
func (r *Registry) Register(opType string, handler OpHandler) {
	r.RegisterSince(opType, 1, handler)
}

// RegisterSince adds an operator handler first defined in opset since.
func (r *Registry) RegisterSince(opType string, since int64, handler OpHandler) {
	r.handlers[opType] = entry{handler: handler, since: since}
}

// Get returns the handler for an operator type.
func (r *Registry) Get(opType string) (OpHandler, bool) {
	e, ok := r.handlers[opType]
	return e.handler, ok
}

// CheckOpset reports whether opType exists in the registry and in opset.
func (r *Registry) CheckOpset(opType string, opset int64) error {
	e, ok := r.handlers[opType]
	if !ok {
		return errors.Wrap(ErrUnsupportedOp, opType)
	}
	if opset > 0 && opset < e.since {
		return errors.Wrapf(ErrOpsetTooOld, "%s needs opset %d, have %d", opType, e.since, opset)
	}
	return nil
}

// Execute runs an operator with the given inputs.
func (r *Registry) Execute(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := r.CheckOpset(node.OpType, ctx.OpsetVersion); err != nil {
		return nil, err
	}
	return r.handlers[node.OpType].handler(ctx, node, inputs)
}

// SupportedOps returns the sorted list of supported operator types.
func (r *Registry) SupportedOps() []string {
	ops := make([]string, 0, len(r.handlers))
	for op := range r.handlers {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// wantInputs checks the number of inputs, counting omitted optional ones.
func wantInputs(op string, inputs []*tensor.RawTensor, minN, maxN int) error {
	if len(inputs) < minN || len(inputs) > maxN {
		if minN == maxN {
			return errors.Errorf("%s requires %d inputs, got %d", op, minN, len(inputs))
		}
		return errors.Errorf("%s requires %d to %d inputs, got %d", op, minN, maxN, len(inputs))
	}
	for i := 0; i < minN; i++ {
		if inputs[i] == nil {
			return errors.Errorf("%s: required input %d is missing", op, i)
		}
	}
	return nil
}

// single wraps a one-output kernel result.
func single(op string, t *tensor.RawTensor, err error) ([]*tensor.RawTensor, error) {
	if err != nil {
		return nil, errors.WithMessage(err, op)
	}
	return []*tensor.RawTensor{t}, nil
}
