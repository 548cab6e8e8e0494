// Package operators implements ONNX operators on top of the tensor kernels.
//
// The registry maps an op type to a handler and to the first default-domain
// opset that defines it. The same registry serves two callers: the runtime
// in package onnx, which executes loaded graphs, and constant folding, which
// evaluates parameter-only subgraphs at export time.
package operators
