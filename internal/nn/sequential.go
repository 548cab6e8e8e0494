package nn

import (
	"github.com/born-ml/onnxgen/internal/onnx"
	"github.com/born-ml/onnxgen/internal/tensor"
	"github.com/pkg/errors"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input, and Export emits
// the children's nodes in the same order.
//
// Example:
//
//	model := nn.NewSequential("model", nn.NewErf(), nn.NewTanh())
//	output, err := model.Forward(input)
type Sequential struct {
	name    string
	modules []Module
}

// NewSequential creates a new Sequential container.
func NewSequential(name string, modules ...Module) *Sequential {
	return &Sequential{
		name:    name,
		modules: modules,
	}
}

// Name returns the container name.
func (s *Sequential) Name() string {
	return s.name
}

// Forward applies all modules in sequence.
func (s *Sequential) Forward(input *tensor.RawTensor) (*tensor.RawTensor, error) {
	output := input
	for i, module := range s.modules {
		var err error
		if output, err = module.Forward(output); err != nil {
			return nil, errors.WithMessagef(err, "%s[%d]", s.name, i)
		}
	}
	return output, nil
}

// Parameters returns all parameters from all modules.
func (s *Sequential) Parameters() []*Parameter {
	params := make([]*Parameter, 0)
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// Export emits every module's nodes, feeding each the previous output.
func (s *Sequential) Export(b *onnx.GraphBuilder, input string) (string, error) {
	output := input
	for i, module := range s.modules {
		var err error
		if output, err = module.Export(b, output); err != nil {
			return "", errors.WithMessagef(err, "%s[%d]", s.name, i)
		}
	}
	return output, nil
}

// Len returns the number of modules in the container.
func (s *Sequential) Len() int {
	return len(s.modules)
}

// Module returns the module at index i.
func (s *Sequential) Module(i int) Module {
	return s.modules[i]
}
