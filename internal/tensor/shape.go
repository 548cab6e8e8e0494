package tensor

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	n := 1 // a scalar has one element
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that every dimension is positive and that the element
// count fits in an int.
func (s Shape) Validate() error {
	n := 1
	for i, dim := range s {
		if dim <= 0 {
			return errors.Wrapf(ErrInvalidShape, "dimension %d of %v is %d (must be > 0)", i, s, dim)
		}
		if n > math.MaxInt/dim {
			return errors.Wrapf(ErrInvalidShape, "shape %v has too many elements", s)
		}
		n *= dim
	}
	return nil
}

// ValidateNonScalar is Validate plus a rank check: model inputs are never scalars.
func (s Shape) ValidateNonScalar() error {
	if len(s) == 0 {
		return errors.Wrap(ErrInvalidShape, "empty shape")
	}
	return s.Validate()
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// String formats the shape as "[d0, d1, ...]".
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ComputeStrides calculates row-major strides for the shape.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// BroadcastShapes implements NumPy-style broadcasting rules: shapes are
// compared right to left, and two dimensions are compatible when they are
// equal or one of them is 1.
//
//	(3, 1) + (3, 5) → (3, 5)
//	(5)    + (3, 5) → (3, 5)
//	(3, 4) + (3, 5) → error
func BroadcastShapes(a, b Shape) (Shape, error) {
	maxLen := max(len(a), len(b))
	result := make(Shape, maxLen)

	for i := 0; i < maxLen; i++ {
		aDim, bDim := 1, 1
		if idx := len(a) - 1 - i; idx >= 0 {
			aDim = a[idx]
		}
		if idx := len(b) - 1 - i; idx >= 0 {
			bDim = b[idx]
		}

		switch {
		case aDim == bDim, bDim == 1:
			result[maxLen-1-i] = aDim
		case aDim == 1:
			result[maxLen-1-i] = bDim
		default:
			return nil, errors.Wrapf(ErrShapeMismatch, "cannot broadcast %v with %v (axis %d: %d vs %d)",
				a, b, maxLen-1-i, aDim, bDim)
		}
	}
	return result, nil
}

// broadcastIndex maps a flat index in the output shape onto the flat index of
// an operand with the given shape, right-aligned.
func broadcastIndex(flat int, out Shape, operand Shape, operandStrides []int) int {
	idx := 0
	offset := len(out) - len(operand)
	for axis := len(out) - 1; axis >= 0; axis-- {
		coord := flat % out[axis]
		flat /= out[axis]
		opAxis := axis - offset
		if opAxis < 0 {
			break
		}
		if operand[opAxis] != 1 {
			idx += coord * operandStrides[opAxis]
		}
	}
	return idx
}
