package fixture

import (
	"github.com/born-ml/onnxgen/internal/nn"
	"github.com/born-ml/onnxgen/internal/onnx"
	"github.com/born-ml/onnxgen/internal/tensor"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Producer identifies onnxgen in the models it writes.
const Producer = "onnxgen"

// Version is stamped as producer_version.
const Version = "0.3.0"

// Export traces model into an ONNX graph. inputShape and outputShape are
// the shapes of one forward pass; axes listed in opts.DynamicAxes are
// written as named dimensions.
func Export(model nn.Module, name string, opts ExportOptions, inputShape, outputShape tensor.Shape) (*onnx.ModelProto, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	inputName, outputName := opts.InputNames[0], opts.OutputNames[0]

	b := onnx.NewGraphBuilder(name, opts.OpsetVersion)
	b.AddInput(inputName, onnx.TensorProtoFloat, onnx.Dims(inputShape, opts.DynamicAxes[inputName]))

	out, err := model.Export(b, inputName)
	if err != nil {
		return nil, errors.WithMessagef(err, "exporting %s", name)
	}
	if out == inputName {
		// The graph output has to be produced by a node.
		if out, err = b.AddNode("Identity", []string{inputName}); err != nil {
			return nil, err
		}
	}
	if err := b.Rename(out, outputName); err != nil {
		return nil, err
	}
	b.AddOutput(outputName, onnx.TensorProtoFloat, onnx.Dims(outputShape, opts.DynamicAxes[outputName]))

	if opts.DoConstantFolding {
		folded, err := onnx.FoldConstants(b.Graph(), b.Registry(), opts.OpsetVersion)
		if err != nil {
			return nil, err
		}
		klog.V(1).Infof("%s: folded %d constant nodes", name, folded)
	}
	if !opts.ExportParams {
		klog.Warningf("%s: parameters are not embedded; %s expects them as inputs", name, name)
		b.InitializersAsInputs()
	}

	return b.Build(onnx.ModelOptions{
		ProducerName:    Producer,
		ProducerVersion: Version,
	}), nil
}
