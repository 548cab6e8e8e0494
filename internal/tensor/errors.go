package tensor

import "github.com/pkg/errors"

// Common errors. Kernels wrap these with the offending shapes so callers can
// still match them with errors.Is.
var (
	ErrInvalidShape     = errors.New("invalid shape")
	ErrShapeMismatch    = errors.New("shape mismatch")
	ErrDTypeMismatch    = errors.New("dtype mismatch")
	ErrUnsupportedDType = errors.New("unsupported dtype")
)
