// Package onnx reads, writes, builds and runs ONNX models.
//
// The protobuf messages are modelled by hand (proto.go) and encoded with
// protowire, so the package needs no generated code. GraphBuilder assembles
// the inference graph emitted by nn modules, FoldConstants evaluates the
// parts of it that depend only on initializers, and Load turns a model file
// back into something that can run Forward for round-trip checks.
package onnx
