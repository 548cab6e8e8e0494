package onnx

import (
	"fmt"
	"maps"
	"slices"

	"github.com/born-ml/onnxgen/internal/onnx/operators"
	"github.com/born-ml/onnxgen/internal/tensor"
	"github.com/pkg/errors"
)

// GraphBuilder assembles an ONNX graph node by node.
//
// Operators are checked against the registry and the target opset as they
// are added, so a module asking for Erf under opset 8 fails at export time
// rather than in whatever runtime later loads the file.
type GraphBuilder struct {
	graph    GraphProto
	opset    int64
	registry *operators.Registry
	counters map[string]int
	names    map[string]bool
}

// NewGraphBuilder creates a builder for a graph targeting the default-domain opset.
func NewGraphBuilder(name string, opset int64) *GraphBuilder {
	return &GraphBuilder{
		graph:    GraphProto{Name: name},
		opset:    opset,
		registry: operators.NewRegistry(),
		counters: make(map[string]int),
		names:    make(map[string]bool),
	}
}

// OpsetVersion returns the opset the graph targets.
func (b *GraphBuilder) OpsetVersion() int64 {
	return b.opset
}

// Registry returns the operator registry used for opset checks.
func (b *GraphBuilder) Registry() *operators.Registry {
	return b.registry
}

// UniqueName returns prefix_N, with N counting up per prefix, skipping names
// already taken in the graph.
func (b *GraphBuilder) UniqueName(prefix string) string {
	for {
		name := fmt.Sprintf("%s_%d", prefix, b.counters[prefix])
		b.counters[prefix]++
		if !b.names[name] {
			b.names[name] = true
			return name
		}
	}
}

// AddInput declares a graph input.
func (b *GraphBuilder) AddInput(name string, elemType int32, dims []DimensionProto) {
	b.names[name] = true
	b.graph.Inputs = append(b.graph.Inputs, valueInfo(name, elemType, dims))
}

// AddOutput declares a graph output. The name must be produced by a node or
// be a graph input.
func (b *GraphBuilder) AddOutput(name string, elemType int32, dims []DimensionProto) {
	b.graph.Outputs = append(b.graph.Outputs, valueInfo(name, elemType, dims))
}

// AddInitializer stores t as a named constant of the graph.
func (b *GraphBuilder) AddInitializer(name string, t *tensor.RawTensor) error {
	if b.names[name] {
		return errors.Errorf("tensor name %q already used", name)
	}
	proto, err := TensorFromRaw(name, t)
	if err != nil {
		return err
	}
	b.names[name] = true
	b.graph.Initializers = append(b.graph.Initializers, proto)
	return nil
}

// AddNode appends a single-output node and returns the name of its output.
func (b *GraphBuilder) AddNode(opType string, inputs []string, attrs ...AttributeProto) (string, error) {
	if err := b.registry.CheckOpset(opType, b.opset); err != nil {
		return "", err
	}
	for _, in := range inputs {
		if in != "" && !b.names[in] {
			return "", errors.Wrapf(ErrInvalidModel, "%s: unknown input %q", opType, in)
		}
	}
	output := b.UniqueName(opType + "_output")
	b.graph.Nodes = append(b.graph.Nodes, NodeProto{
		Name:       b.UniqueName(opType),
		OpType:     opType,
		Inputs:     append([]string(nil), inputs...),
		Outputs:    []string{output},
		Attributes: attrs,
	})
	return output, nil
}

// Rename replaces every use of tensor name from by to. It is how the
// exporter gives the last node output the public output name.
func (b *GraphBuilder) Rename(from, to string) error {
	if from == to {
		return nil
	}
	if b.names[to] {
		return errors.Errorf("tensor name %q already used", to)
	}
	rename := func(names []string) {
		for i := range names {
			if names[i] == from {
				names[i] = to
			}
		}
	}
	for i := range b.graph.Nodes {
		rename(b.graph.Nodes[i].Inputs)
		rename(b.graph.Nodes[i].Outputs)
	}
	for i := range b.graph.Inputs {
		if b.graph.Inputs[i].Name == from {
			b.graph.Inputs[i].Name = to
		}
	}
	for i := range b.graph.Outputs {
		if b.graph.Outputs[i].Name == from {
			b.graph.Outputs[i].Name = to
		}
	}
	for i := range b.graph.Initializers {
		if b.graph.Initializers[i].Name == from {
			b.graph.Initializers[i].Name = to
		}
	}
	delete(b.names, from)
	b.names[to] = true
	return nil
}

// InitializersAsInputs moves every initializer to the graph inputs, keeping
// only its declared type. The model then expects its parameters to be fed
// at run time.
func (b *GraphBuilder) InitializersAsInputs() {
	for i := range b.graph.Initializers {
		init := &b.graph.Initializers[i]
		dims := make([]DimensionProto, len(init.Dims))
		for j, d := range init.Dims {
			dims[j] = DimensionProto{DimValue: d}
		}
		b.graph.Inputs = append(b.graph.Inputs, valueInfo(init.Name, init.DataType, dims))
	}
	b.graph.Initializers = nil
}

// Graph returns the graph built so far. The builder keeps ownership.
func (b *GraphBuilder) Graph() *GraphProto {
	return &b.graph
}

// ModelOptions are the model-level fields stamped by Build.
type ModelOptions struct {
	ProducerName    string
	ProducerVersion string
	DocString       string
	Metadata        map[string]string
}

// Build wraps the graph in a ModelProto importing the builder's opset.
func (b *GraphBuilder) Build(opts ModelOptions) *ModelProto {
	graph := b.graph
	model := &ModelProto{
		IRVersion:       IRVersionForOpset(b.opset),
		OpsetImport:     []OperatorSetID{{Version: b.opset}},
		ProducerName:    opts.ProducerName,
		ProducerVersion: opts.ProducerVersion,
		DocString:       opts.DocString,
		Graph:           &graph,
	}
	for _, key := range slices.Sorted(maps.Keys(opts.Metadata)) {
		model.MetadataProps = append(model.MetadataProps, StringStringEntry{Key: key, Value: opts.Metadata[key]})
	}
	return model
}

// Dims converts a shape to ONNX dimensions; axes present in dynamic become
// named (dim_param) dimensions.
func Dims(shape tensor.Shape, dynamic map[int]string) []DimensionProto {
	dims := make([]DimensionProto, len(shape))
	for i, d := range shape {
		if name, ok := dynamic[i]; ok && name != "" {
			dims[i] = DimensionProto{DimParam: name}
			continue
		}
		dims[i] = DimensionProto{DimValue: int64(d)}
	}
	return dims
}

// AttrFloat builds a FLOAT attribute.
func AttrFloat(name string, v float32) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoFloat, F: v}
}

// AttrInt builds an INT attribute.
func AttrInt(name string, v int64) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoInt, I: v}
}

// AttrInts builds an INTS attribute.
func AttrInts(name string, v ...int64) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoInts, Ints: v}
}

func valueInfo(name string, elemType int32, dims []DimensionProto) ValueInfoProto {
	return ValueInfoProto{
		Name: name,
		Type: &TypeProto{TensorType: &TensorTypeProto{
			ElemType: elemType,
			Shape:    &TensorShapeProto{Dims: dims},
		}},
	}
}
