package fixture

import (
	"slices"

	"github.com/born-ml/onnxgen/internal/nn"
	"github.com/born-ml/onnxgen/internal/tensor"
	"github.com/pkg/errors"
)

// Example is a fixed model definition together with the inputs it is fed.
type Example struct {
	// Name identifies the example and names the exported graph.
	Name string

	// Description is stored as the model doc string.
	Description string

	// InputShapes are the per-sample input shapes; a batch axis of one is
	// prepended when the input is drawn.
	InputShapes []tensor.Shape

	// NewModel constructs the model with its default parameters.
	NewModel func() (nn.Module, error)

	// Export controls the ONNX export.
	Export ExportOptions
}

// clone copies ex so that callers may edit the result without touching the
// catalog.
func (ex Example) clone() Example {
	shapes := make([]tensor.Shape, len(ex.InputShapes))
	for i, shape := range ex.InputShapes {
		shapes[i] = shape.Clone()
	}
	ex.InputShapes = shapes
	ex.Export = ex.Export.Clone()
	return ex
}

var catalog = []Example{
	{
		Name:        "1l_erf",
		Description: "element-wise error function",
		InputShapes: []tensor.Shape{{3}},
		NewModel: func() (nn.Module, error) {
			return nn.NewErf(), nil
		},
		Export: DefaultExportOptions(),
	},
	{
		Name:        "1l_batch_norm",
		Description: "2D batch normalization over 3 channels with default parameters",
		InputShapes: []tensor.Shape{{3, 2, 2}},
		NewModel: func() (nn.Module, error) {
			return nn.NewBatchNorm2d("layer", 3)
		},
		Export: DefaultExportOptions(),
	},
}

// Lookup returns the built-in example with the given name.
func Lookup(name string) (Example, error) {
	for _, ex := range catalog {
		if ex.Name == name {
			return ex.clone(), nil
		}
	}
	return Example{}, errors.Wrapf(ErrUnknownExample, "%q (known: %v)", name, Names())
}

// Names returns the names of the built-in examples, sorted.
func Names() []string {
	names := make([]string, len(catalog))
	for i, ex := range catalog {
		names[i] = ex.Name
	}
	slices.Sort(names)
	return names
}

// Examples returns the built-in examples in catalog order.
func Examples() []Example {
	examples := make([]Example, len(catalog))
	for i, ex := range catalog {
		examples[i] = ex.clone()
	}
	return examples
}
