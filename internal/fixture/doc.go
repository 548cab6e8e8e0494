// Package fixture generates ONNX test fixtures: a model file and a JSON
// record of one input and the output the model computes for it.
//
// Each Example pairs a model constructor with the shape of the input it is
// fed. Generate draws the input from a seeded generator, runs the model,
// exports it, and writes network.onnx and input.json together. Verify loads
// such a pair back and checks that the ONNX graph reproduces the recorded
// output.
package fixture
