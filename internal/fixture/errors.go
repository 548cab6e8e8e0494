package fixture

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrUnknownExample is returned by Lookup for names not in the catalog.
	ErrUnknownExample = errors.New("unknown example")

	// ErrInvalidRecord is returned for JSON records violating their invariants.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrPairMismatch is returned when a model file was not generated
	// together with the record next to it.
	ErrPairMismatch = errors.New("model and record were not generated together")
)

// MismatchError reports the first output value the ONNX model computes
// differently from the record.
type MismatchError struct {
	Output int     // Index into output_data
	Index  int     // Index into the flattened output
	Want   float64 // Recorded value
	Got    float64 // Value computed from network.onnx
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("output %d differs at index %d: recorded %g, model computes %g",
		e.Output, e.Index, e.Want, e.Got)
}
