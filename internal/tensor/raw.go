package tensor

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/pkg/errors"
)

// RawTensor is the untyped tensor representation: a contiguous row-major
// byte buffer plus shape and dtype. Kernels read and write it through the
// typed As* views.
type RawTensor struct {
	data  []byte
	shape Shape
	dtype DataType
}

// NewRaw creates a new zero-filled RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	if !dtype.Valid() {
		return nil, errors.Wrapf(ErrUnsupportedDType, "data type %d", int(dtype))
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() > math.MaxInt/dtype.Size() {
		return nil, errors.Wrapf(ErrInvalidShape, "%s%v does not fit in memory", dtype, shape)
	}
	return &RawTensor{
		data:  make([]byte, shape.NumElements()*dtype.Size()),
		shape: shape.Clone(),
		dtype: dtype,
	}, nil
}

// FromFloat32 creates a Float32 tensor holding a copy of data.
func FromFloat32(data []float32, shape Shape) (*RawTensor, error) {
	if len(data) != shape.NumElements() {
		return nil, errors.Wrapf(ErrShapeMismatch, "%d values do not fill shape %v", len(data), shape)
	}
	t, err := NewRaw(shape, Float32)
	if err != nil {
		return nil, err
	}
	copy(t.AsFloat32(), data)
	return t, nil
}

// FromFloat64s creates a Float32 tensor from float64 values, narrowing each
// one. This is how JSON-decoded fixture data is turned back into tensors.
func FromFloat64s(data []float64, shape Shape) (*RawTensor, error) {
	values := make([]float32, len(data))
	for i, v := range data {
		values[i] = float32(v)
	}
	return FromFloat32(values, shape)
}

// FromInt64 creates an Int64 tensor holding a copy of data.
func FromInt64(data []int64, shape Shape) (*RawTensor, error) {
	if len(data) != shape.NumElements() {
		return nil, errors.Wrapf(ErrShapeMismatch, "%d values do not fill shape %v", len(data), shape)
	}
	t, err := NewRaw(shape, Int64)
	if err != nil {
		return nil, err
	}
	copy(t.AsInt64(), data)
	return t, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return len(r.data)
}

// Data returns the raw byte slice in host byte order.
func (r *RawTensor) Data() []byte {
	return r.data
}

// String describes the tensor without its values, e.g. "float32[1, 3]".
func (r *RawTensor) String() string {
	return r.dtype.String() + r.shape.String()
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	r.mustBe(Float32)
	if len(r.data) == 0 {
		return nil
	}
	//nolint:gosec // zero-copy view, length bounded by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	r.mustBe(Float64)
	if len(r.data) == 0 {
		return nil
	}
	//nolint:gosec // zero-copy view, length bounded by NumElements()
	return unsafe.Slice((*float64)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsInt32 interprets the data as []int32.
// Panics if the tensor's dtype is not Int32.
func (r *RawTensor) AsInt32() []int32 {
	r.mustBe(Int32)
	if len(r.data) == 0 {
		return nil
	}
	//nolint:gosec // zero-copy view, length bounded by NumElements()
	return unsafe.Slice((*int32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsInt64 interprets the data as []int64.
// Panics if the tensor's dtype is not Int64.
func (r *RawTensor) AsInt64() []int64 {
	r.mustBe(Int64)
	if len(r.data) == 0 {
		return nil
	}
	//nolint:gosec // zero-copy view, length bounded by NumElements()
	return unsafe.Slice((*int64)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

func (r *RawTensor) mustBe(dtype DataType) {
	if r.dtype != dtype {
		panic(fmt.Sprintf("tensor dtype is %s, not %s", r.dtype, dtype))
	}
}

// Clone returns a deep copy of the tensor.
func (r *RawTensor) Clone() *RawTensor {
	return &RawTensor{
		data:  append([]byte(nil), r.data...),
		shape: r.shape.Clone(),
		dtype: r.dtype,
	}
}

// Float64s flattens the tensor in row-major order and widens every element to
// float64. Float32 values are widened exactly, so printing the result with the
// shortest round-trip representation reproduces the float32 value.
func (r *RawTensor) Float64s() ([]float64, error) {
	out := make([]float64, r.NumElements())
	switch r.dtype {
	case Float32:
		for i, v := range r.AsFloat32() {
			out[i] = float64(v)
		}
	case Float64:
		copy(out, r.AsFloat64())
	case Int32:
		for i, v := range r.AsInt32() {
			out[i] = float64(v)
		}
	case Int64:
		for i, v := range r.AsInt64() {
			out[i] = float64(v)
		}
	default:
		return nil, errors.Wrapf(ErrUnsupportedDType, "cannot flatten %s tensor", r.dtype)
	}
	return out, nil
}

// Unbind splits the tensor along its first axis and flattens every slice.
// A [2, 3, 4] tensor yields two sequences of 12 values.
func (r *RawTensor) Unbind() ([][]float64, error) {
	if len(r.shape) == 0 {
		return nil, errors.Wrap(ErrInvalidShape, "cannot unbind a scalar")
	}
	flat, err := r.Float64s()
	if err != nil {
		return nil, err
	}
	n := r.shape[0]
	size := len(flat) / n
	out := make([][]float64, n)
	for i := range out {
		out[i] = flat[i*size : (i+1)*size : (i+1)*size]
	}
	return out, nil
}
