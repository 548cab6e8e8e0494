package onnx

import (
	"github.com/born-ml/onnxgen/internal/onnx/operators"
	"github.com/born-ml/onnxgen/internal/tensor"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// FoldConstants evaluates every node whose inputs are all initializers and
// replaces it by initializers holding its outputs. Nodes producing graph
// outputs are kept so the graph still has something to run. Initializers no
// node reads any more are dropped, unless they are declared graph inputs.
//
// It returns the number of nodes folded.
func FoldConstants(graph *GraphProto, registry *operators.Registry, opset int64) (int, error) {
	if graph == nil {
		return 0, errors.Wrap(ErrInvalidModel, "no graph")
	}
	sorted, err := topologicalSort(graph.Nodes)
	if err != nil {
		return 0, err
	}

	constants := make(map[string]*tensor.RawTensor, len(graph.Initializers))
	for i := range graph.Initializers {
		t, err := TensorToRaw(&graph.Initializers[i])
		if err != nil {
			return 0, errors.WithMessage(err, "constant folding")
		}
		constants[graph.Initializers[i].Name] = t
	}
	graphOutputs := make(map[string]bool, len(graph.Outputs))
	for i := range graph.Outputs {
		graphOutputs[graph.Outputs[i].Name] = true
	}

	ctx := &operators.Context{OpsetVersion: opset}
	kept := make([]NodeProto, 0, len(sorted))
	var added []TensorProto
	folded := 0
	for i := range sorted {
		node := &sorted[i]
		inputs, foldable := constantInputs(node, constants)
		for _, out := range node.Outputs {
			if graphOutputs[out] {
				foldable = false
			}
		}
		if !foldable {
			kept = append(kept, *node)
			continue
		}

		opNode, err := nodeProtoToOperatorNode(node)
		if err != nil {
			return 0, err
		}
		outputs, err := registry.Execute(ctx, opNode, inputs)
		if err != nil {
			return 0, errors.WithMessagef(err, "folding node %s (%s)", node.Name, node.OpType)
		}
		for j, name := range node.Outputs {
			if j >= len(outputs) || name == "" {
				continue
			}
			proto, err := TensorFromRaw(name, outputs[j])
			if err != nil {
				return 0, err
			}
			constants[name] = outputs[j]
			added = append(added, proto)
		}
		klog.V(2).Infof("folded %s (%s)", node.Name, node.OpType)
		folded++
	}

	graph.Nodes = kept
	graph.Initializers = append(graph.Initializers, added...)
	pruneInitializers(graph)
	return folded, nil
}

// constantInputs gathers the inputs of node when every one of them is known.
// Omitted optional inputs count as known.
func constantInputs(node *NodeProto, constants map[string]*tensor.RawTensor) ([]*tensor.RawTensor, bool) {
	inputs := make([]*tensor.RawTensor, len(node.Inputs))
	for i, name := range node.Inputs {
		if name == "" {
			continue
		}
		t, ok := constants[name]
		if !ok {
			return nil, false
		}
		inputs[i] = t
	}
	return inputs, true
}

func pruneInitializers(graph *GraphProto) {
	used := make(map[string]bool)
	for i := range graph.Nodes {
		for _, in := range graph.Nodes[i].Inputs {
			used[in] = true
		}
	}
	for i := range graph.Outputs {
		used[graph.Outputs[i].Name] = true
	}
	for i := range graph.Inputs {
		used[graph.Inputs[i].Name] = true
	}

	kept := graph.Initializers[:0]
	for _, init := range graph.Initializers {
		if used[init.Name] {
			kept = append(kept, init)
		}
	}
	graph.Initializers = kept
}
