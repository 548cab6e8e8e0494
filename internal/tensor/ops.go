package tensor

import (
	"math"

	"github.com/pkg/errors"
)

// Map applies fn element-wise to a Float32 tensor and returns a new tensor of
// the same shape. fn runs in float64 and the result is narrowed back.
func Map(x *RawTensor, fn func(float64) float64) (*RawTensor, error) {
	if x.DType() != Float32 {
		return nil, errors.Wrapf(ErrUnsupportedDType, "element-wise op on %s", x)
	}
	out, err := NewRaw(x.Shape(), Float32)
	if err != nil {
		return nil, err
	}
	dst := out.AsFloat32()
	for i, v := range x.AsFloat32() {
		dst[i] = float32(fn(float64(v)))
	}
	return out, nil
}

// Erf computes the Gauss error function element-wise.
func Erf(x *RawTensor) (*RawTensor, error) {
	return Map(x, math.Erf)
}

// Exp computes e^x element-wise.
func Exp(x *RawTensor) (*RawTensor, error) {
	return Map(x, math.Exp)
}

// Sqrt computes the square root element-wise.
func Sqrt(x *RawTensor) (*RawTensor, error) {
	return Map(x, math.Sqrt)
}

// ReLU computes max(0, x) element-wise.
func ReLU(x *RawTensor) (*RawTensor, error) {
	return Map(x, func(v float64) float64 { return math.Max(0, v) })
}

// Sigmoid computes 1 / (1 + e^-x) element-wise.
func Sigmoid(x *RawTensor) (*RawTensor, error) {
	return Map(x, func(v float64) float64 { return 1 / (1 + math.Exp(-v)) })
}

// Tanh computes the hyperbolic tangent element-wise.
func Tanh(x *RawTensor) (*RawTensor, error) {
	return Map(x, math.Tanh)
}

// Add returns a + b with broadcasting.
func Add(a, b *RawTensor) (*RawTensor, error) {
	return zip(a, b, func(x, y float32) float32 { return x + y })
}

// Sub returns a - b with broadcasting.
func Sub(a, b *RawTensor) (*RawTensor, error) {
	return zip(a, b, func(x, y float32) float32 { return x - y })
}

// Mul returns a * b with broadcasting.
func Mul(a, b *RawTensor) (*RawTensor, error) {
	return zip(a, b, func(x, y float32) float32 { return x * y })
}

// Div returns a / b with broadcasting.
func Div(a, b *RawTensor) (*RawTensor, error) {
	return zip(a, b, func(x, y float32) float32 { return x / y })
}

// zip applies a binary Float32 kernel over the broadcast shape of a and b.
func zip(a, b *RawTensor, fn func(x, y float32) float32) (*RawTensor, error) {
	if a.DType() != Float32 || b.DType() != Float32 {
		return nil, errors.Wrapf(ErrDTypeMismatch, "binary op on %s and %s", a, b)
	}
	shape, err := BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		return nil, err
	}
	out, err := NewRaw(shape, Float32)
	if err != nil {
		return nil, err
	}

	av, bv, dst := a.AsFloat32(), b.AsFloat32(), out.AsFloat32()
	if a.Shape().Equal(b.Shape()) {
		for i := range dst {
			dst[i] = fn(av[i], bv[i])
		}
		return out, nil
	}

	aStrides, bStrides := a.Shape().ComputeStrides(), b.Shape().ComputeStrides()
	for i := range dst {
		ai := broadcastIndex(i, shape, a.Shape(), aStrides)
		bi := broadcastIndex(i, shape, b.Shape(), bStrides)
		dst[i] = fn(av[ai], bv[bi])
	}
	return out, nil
}

// Reshape returns a tensor with the same data and a new shape. As in ONNX,
// a dimension of 0 copies the input dimension at that axis and a single -1
// is inferred from the remaining elements.
func Reshape(x *RawTensor, dims []int64) (*RawTensor, error) {
	shape := make(Shape, len(dims))
	inferred := -1
	known := 1
	for i, d := range dims {
		switch {
		case d == 0:
			if i >= len(x.Shape()) {
				return nil, errors.Wrapf(ErrInvalidShape, "reshape %v: axis %d has no input dimension to copy", x.Shape(), i)
			}
			shape[i] = x.Shape()[i]
		case d == -1:
			if inferred >= 0 {
				return nil, errors.Wrapf(ErrInvalidShape, "reshape %v: more than one -1 in %v", x.Shape(), dims)
			}
			inferred = i
			continue
		case d < 0:
			return nil, errors.Wrapf(ErrInvalidShape, "reshape %v: negative dimension %d", x.Shape(), d)
		default:
			shape[i] = int(d)
		}
		known *= shape[i]
	}
	if inferred >= 0 {
		if known == 0 || x.NumElements()%known != 0 {
			return nil, errors.Wrapf(ErrShapeMismatch, "reshape %v into %v", x.Shape(), dims)
		}
		shape[inferred] = x.NumElements() / known
	}
	if shape.NumElements() != x.NumElements() {
		return nil, errors.Wrapf(ErrShapeMismatch, "reshape %v into %v", x.Shape(), shape)
	}

	out := x.Clone()
	out.shape = shape
	return out, nil
}

// Flatten reshapes x into a matrix: dimensions before axis form the rows and
// the rest form the columns. Negative axes count from the end.
func Flatten(x *RawTensor, axis int) (*RawTensor, error) {
	rank := len(x.Shape())
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis > rank {
		return nil, errors.Wrapf(ErrInvalidShape, "flatten axis %d out of range for %v", axis, x.Shape())
	}
	rows := x.Shape()[:axis].NumElements()
	return Reshape(x, []int64{int64(rows), int64(x.NumElements() / rows)})
}
