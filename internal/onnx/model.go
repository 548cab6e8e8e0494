package onnx

import (
	"github.com/born-ml/onnxgen/internal/onnx/operators"
	"github.com/born-ml/onnxgen/internal/tensor"
	"github.com/pkg/errors"
)

// Model represents a loaded ONNX model ready for inference.
type Model struct {
	proto        *ModelProto
	registry     *operators.Registry
	tensors      map[string]*tensor.RawTensor // Initializers
	inputs       map[string]*ValueInfoProto   // Declared runtime inputs
	inputNames   []string
	outputNames  []string
	nodes        []*operators.Node // Topologically sorted
	opsetVersion int64
}

// InputNames returns the names of model inputs.
func (m *Model) InputNames() []string {
	return m.inputNames
}

// OutputNames returns the names of model outputs.
func (m *Model) OutputNames() []string {
	return m.outputNames
}

// OpsetVersion returns the ONNX opset version.
func (m *Model) OpsetVersion() int64 {
	return m.opsetVersion
}

// Metadata returns model metadata as key-value pairs.
func (m *Model) Metadata() map[string]string {
	meta := make(map[string]string)
	for _, prop := range m.proto.MetadataProps {
		meta[prop.Key] = prop.Value
	}
	meta["producer_name"] = m.proto.ProducerName
	meta["producer_version"] = m.proto.ProducerVersion
	meta["domain"] = m.proto.Domain
	return meta
}

// Forward runs inference with a single input tensor.
// For models with multiple inputs, use ForwardNamed.
func (m *Model) Forward(input *tensor.RawTensor) (*tensor.RawTensor, error) {
	if len(m.inputNames) != 1 {
		return nil, errors.Errorf("model has %d inputs, use ForwardNamed", len(m.inputNames))
	}
	outputs, err := m.ForwardNamed(map[string]*tensor.RawTensor{
		m.inputNames[0]: input,
	})
	if err != nil {
		return nil, err
	}
	if len(m.outputNames) != 1 {
		return nil, errors.Errorf("model has %d outputs, access via ForwardNamed result", len(m.outputNames))
	}
	return outputs[m.outputNames[0]], nil
}

// ForwardNamed runs inference with named inputs and returns the outputs by
// name. Inputs are checked against the element type and static dimensions
// the graph declares; named (dynamic) dimensions accept any size.
func (m *Model) ForwardNamed(inputs map[string]*tensor.RawTensor) (map[string]*tensor.RawTensor, error) {
	tensors := make(map[string]*tensor.RawTensor, len(m.tensors)+len(inputs))
	for name, t := range m.tensors {
		tensors[name] = t
	}
	for _, name := range m.inputNames {
		t, ok := inputs[name]
		if !ok || t == nil {
			return nil, errors.Wrapf(ErrInvalidModel, "missing input: %s", name)
		}
		if err := checkInput(m.inputs[name], t); err != nil {
			return nil, err
		}
		tensors[name] = t
	}

	ctx := &operators.Context{OpsetVersion: m.opsetVersion}
	for _, node := range m.nodes {
		nodeInputs := make([]*tensor.RawTensor, len(node.Inputs))
		for i, inputName := range node.Inputs {
			if inputName == "" {
				// Optional input not provided
				continue
			}
			t, ok := tensors[inputName]
			if !ok {
				return nil, errors.Wrapf(ErrInvalidModel, "node %s: missing input %s", node.Name, inputName)
			}
			nodeInputs[i] = t
		}

		outputs, err := m.registry.Execute(ctx, node, nodeInputs)
		if err != nil {
			return nil, errors.WithMessagef(err, "node %s (%s)", node.Name, node.OpType)
		}
		for i, outputName := range node.Outputs {
			if i < len(outputs) && outputName != "" {
				tensors[outputName] = outputs[i]
			}
		}
	}

	result := make(map[string]*tensor.RawTensor, len(m.outputNames))
	for _, outputName := range m.outputNames {
		t, ok := tensors[outputName]
		if !ok {
			return nil, errors.Wrapf(ErrInvalidModel, "missing output: %s", outputName)
		}
		result[outputName] = t
	}
	return result, nil
}

// checkInput compares a runtime input with its declared type.
func checkInput(info *ValueInfoProto, t *tensor.RawTensor) error {
	if info == nil || info.Type == nil || info.Type.TensorType == nil {
		return nil
	}
	tt := info.Type.TensorType
	if tt.ElemType != TensorProtoUndefined {
		want, err := protoTypeToTensorType(tt.ElemType)
		if err != nil {
			return errors.WithMessagef(err, "input %s", info.Name)
		}
		if want != t.DType() {
			return errors.Wrapf(tensor.ErrDTypeMismatch, "input %s: want %s, got %s", info.Name, want, t.DType())
		}
	}
	if tt.Shape == nil {
		return nil
	}
	shape := t.Shape()
	if len(tt.Shape.Dims) != len(shape) {
		return errors.Wrapf(tensor.ErrShapeMismatch, "input %s: want rank %d, got %v", info.Name, len(tt.Shape.Dims), shape)
	}
	for i, dim := range tt.Shape.Dims {
		if dim.DimParam != "" || dim.DimValue <= 0 {
			continue
		}
		if int64(shape[i]) != dim.DimValue {
			return errors.Wrapf(tensor.ErrShapeMismatch, "input %s: axis %d must be %d, got %v",
				info.Name, i, dim.DimValue, shape)
		}
	}
	return nil
}

// compile prepares the model for inference.
func (m *Model) compile() error {
	graph := m.proto.Graph
	if graph == nil {
		return errors.Wrap(ErrInvalidModel, "model has no graph")
	}

	m.tensors = make(map[string]*tensor.RawTensor, len(graph.Initializers))
	for i := range graph.Initializers {
		init := &graph.Initializers[i]
		t, err := TensorToRaw(init)
		if err != nil {
			return errors.WithMessagef(err, "failed to load initializer %s", init.Name)
		}
		m.tensors[init.Name] = t
	}

	// Inputs are graph inputs minus initializers
	m.inputs = make(map[string]*ValueInfoProto)
	for i := range graph.Inputs {
		in := &graph.Inputs[i]
		if _, ok := m.tensors[in.Name]; !ok {
			m.inputNames = append(m.inputNames, in.Name)
			m.inputs[in.Name] = in
		}
	}
	for i := range graph.Outputs {
		m.outputNames = append(m.outputNames, graph.Outputs[i].Name)
	}

	sorted, err := topologicalSort(graph.Nodes)
	if err != nil {
		return err
	}
	m.nodes = make([]*operators.Node, len(sorted))
	for i := range sorted {
		if m.nodes[i], err = nodeProtoToOperatorNode(&sorted[i]); err != nil {
			return err
		}
	}

	m.opsetVersion = m.proto.DefaultOpsetVersion()
	return nil
}

// nodeProtoToOperatorNode converts NodeProto to operators.Node, decoding
// tensor-valued attributes.
func nodeProtoToOperatorNode(proto *NodeProto) (*operators.Node, error) {
	attrs := make([]operators.Attribute, len(proto.Attributes))
	for i := range proto.Attributes {
		attr := &proto.Attributes[i]
		attrs[i] = operators.Attribute{
			Name:    attr.Name,
			Type:    attr.Type,
			F:       attr.F,
			I:       attr.I,
			S:       attr.S,
			Floats:  attr.Floats,
			Ints:    attr.Ints,
			Strings: attr.Strings,
		}
		if attr.T != nil {
			t, err := TensorToRaw(attr.T)
			if err != nil {
				return nil, errors.WithMessagef(err, "node %s attribute %s", proto.Name, attr.Name)
			}
			attrs[i].T = t
		}
	}
	return &operators.Node{
		Name:       proto.Name,
		OpType:     proto.OpType,
		Inputs:     proto.Inputs,
		Outputs:    proto.Outputs,
		Attributes: attrs,
		Domain:     proto.Domain,
	}, nil
}

// topologicalSort sorts nodes in execution order.
// Ensures dependencies are executed before dependents; a cycle is an error.
func topologicalSort(nodes []NodeProto) ([]NodeProto, error) {
	outputToNode := make(map[string]int)
	for i := range nodes {
		for _, output := range nodes[i].Outputs {
			outputToNode[output] = i
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(nodes))
	result := make([]NodeProto, 0, len(nodes))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return errors.Wrapf(ErrInvalidModel, "cycle through node %s", nodes[i].Name)
		}
		state[i] = visiting
		for _, input := range nodes[i].Inputs {
			if depIdx, ok := outputToNode[input]; ok {
				if err := visit(depIdx); err != nil {
					return err
				}
			}
		}
		state[i] = done
		result = append(result, nodes[i])
		return nil
	}

	for i := range nodes {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return result, nil
}
