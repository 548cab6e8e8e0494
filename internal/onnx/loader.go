package onnx

import (
	"slices"

	"github.com/born-ml/onnxgen/internal/onnx/operators"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// LoadOptions configures model loading behavior.
type LoadOptions struct {
	// StrictMode fails on unsupported operators or operators newer than the
	// model's opset (default: false = warn and fail only when such a node runs).
	StrictMode bool

	// CustomOps provides custom operator handlers.
	CustomOps map[string]operators.OpHandler
}

// DefaultLoadOptions returns default loading options.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		StrictMode: false,
		CustomOps:  nil,
	}
}

// Load loads an ONNX model from file and prepares it for inference.
//
// Example:
//
//	model, err := onnx.Load("network.onnx")
//	if err != nil {
//	    klog.Fatalf("%+v", err)
//	}
//	output, err := model.Forward(input)
func Load(path string, opts ...LoadOptions) (*Model, error) {
	opt := DefaultLoadOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	proto, err := ParseFile(path)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to parse ONNX file")
	}
	return LoadFromProto(proto, opt)
}

// LoadFromBytes loads an ONNX model from bytes.
func LoadFromBytes(data []byte, opts ...LoadOptions) (*Model, error) {
	opt := DefaultLoadOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	proto, err := Parse(data)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to parse ONNX data")
	}
	return LoadFromProto(proto, opt)
}

// LoadFromProto loads a model from parsed ModelProto.
func LoadFromProto(proto *ModelProto, opt LoadOptions) (*Model, error) {
	registry := operators.NewRegistry()
	for opType, handler := range opt.CustomOps {
		registry.Register(opType, handler)
	}

	if err := validateOperators(proto.Graph, registry, proto.DefaultOpsetVersion()); err != nil {
		if opt.StrictMode {
			return nil, err
		}
		klog.Warningf("loading model anyway: %v", err)
	}

	model := &Model{
		proto:    proto,
		registry: registry,
	}
	if err := model.compile(); err != nil {
		return nil, errors.WithMessage(err, "failed to compile model")
	}
	return model, nil
}

// validateOperators checks that all operators are supported under opset.
func validateOperators(graph *GraphProto, registry *operators.Registry, opset int64) error {
	if graph == nil {
		return errors.Wrap(ErrInvalidModel, "model has no graph")
	}
	if registry == nil {
		return errors.New("registry is nil")
	}
	for i := range graph.Nodes {
		node := &graph.Nodes[i]
		if err := registry.CheckOpset(node.OpType, opset); err != nil {
			return errors.WithMessagef(err, "node %s", node.Name)
		}
	}
	return nil
}

// ModelInfo contains basic information about an ONNX model without fully loading it.
type ModelInfo struct {
	IRVersion       int64
	OpsetVersion    int64
	ProducerName    string
	ProducerVersion string
	GraphName       string
	InputNames      []string
	OutputNames     []string
	Operators       []string // Distinct op types, sorted
	NodeCount       int
	WeightCount     int
}

// GetModelInfo extracts basic info from an ONNX file.
func GetModelInfo(path string) (*ModelInfo, error) {
	proto, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return InfoFromProto(proto), nil
}

// InfoFromProto summarizes a parsed model.
func InfoFromProto(proto *ModelProto) *ModelInfo {
	info := &ModelInfo{
		IRVersion:       proto.IRVersion,
		OpsetVersion:    proto.DefaultOpsetVersion(),
		ProducerName:    proto.ProducerName,
		ProducerVersion: proto.ProducerVersion,
	}
	if proto.Graph == nil {
		return info
	}
	graph := proto.Graph
	info.GraphName = graph.Name

	// Inputs exclude initializers
	initNames := make(map[string]bool)
	for i := range graph.Initializers {
		initNames[graph.Initializers[i].Name] = true
	}
	for i := range graph.Inputs {
		if !initNames[graph.Inputs[i].Name] {
			info.InputNames = append(info.InputNames, graph.Inputs[i].Name)
		}
	}
	for i := range graph.Outputs {
		info.OutputNames = append(info.OutputNames, graph.Outputs[i].Name)
	}
	for i := range graph.Nodes {
		if !slices.Contains(info.Operators, graph.Nodes[i].OpType) {
			info.Operators = append(info.Operators, graph.Nodes[i].OpType)
		}
	}
	slices.Sort(info.Operators)

	info.NodeCount = len(graph.Nodes)
	info.WeightCount = len(graph.Initializers)
	return info
}

// ListSupportedOps returns all supported ONNX operators.
func ListSupportedOps() []string {
	return operators.NewRegistry().SupportedOps()
}
