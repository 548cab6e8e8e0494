// Package tensor exposes the float tensors onnxgen models consume and produce.
//
// Use it together with package onnx to feed generated fixtures back into
// their models:
//
//	x, err := tensor.FromFloat64(record.InputData[0], tensor.Shape{1, 3})
//	y, err := model.Forward(x)
package tensor

import (
	internaltensor "github.com/born-ml/onnxgen/internal/tensor"
)

// RawTensor is a dense, row-major tensor of one data type.
type RawTensor = internaltensor.RawTensor

// Shape represents the dimensions of a tensor.
type Shape = internaltensor.Shape

// DataType identifies the element type of a tensor.
type DataType = internaltensor.DataType

// Supported data types.
const (
	Float32 = internaltensor.Float32
	Float64 = internaltensor.Float64
	Int32   = internaltensor.Int32
	Int64   = internaltensor.Int64
	Uint8   = internaltensor.Uint8
	Bool    = internaltensor.Bool
)

// Errors reported by tensor operations.
var (
	ErrInvalidShape  = internaltensor.ErrInvalidShape
	ErrShapeMismatch = internaltensor.ErrShapeMismatch
	ErrDTypeMismatch = internaltensor.ErrDTypeMismatch
)

// FromFloat32 creates a Float32 tensor holding data.
func FromFloat32(data []float32, shape Shape) (*RawTensor, error) {
	return internaltensor.FromFloat32(data, shape)
}

// FromFloat64 creates a Float32 tensor from float64 values, the way JSON
// records store them.
func FromFloat64(data []float64, shape Shape) (*RawTensor, error) {
	return internaltensor.FromFloat64s(data, shape)
}

// Zeros creates a Float32 tensor filled with zeros.
func Zeros(shape Shape) (*RawTensor, error) {
	return internaltensor.Zeros(shape)
}
