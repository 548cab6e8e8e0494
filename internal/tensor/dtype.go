// Package tensor provides the raw tensor type and the CPU kernels used by onnxgen
// to run models and to serialize their inputs and outputs.
package tensor

// DataType is the element type of a RawTensor.
//
// Every value maps to exactly one ONNX TensorProto element type; the codec in
// internal/onnx rejects the others with ErrUnsupportedDType. Generated fixtures
// only ever carry Float32. The integer types exist for the shape operands of
// Reshape and for Constant nodes found in models read back from disk.
type DataType int

const (
	Float32 DataType = iota // TensorProto FLOAT (1), model inputs, outputs and parameters
	Float64                 // TensorProto DOUBLE (11)
	Int32                   // TensorProto INT32 (6)
	Int64                   // TensorProto INT64 (7), Reshape shapes
	Uint8                   // TensorProto UINT8 (2), stored in int32_data
	Bool                    // TensorProto BOOL (9), stored in int32_data
)

// Valid reports whether dt is one of the declared types.
func (dt DataType) Valid() bool {
	return dt >= Float32 && dt <= Bool
}

// Size returns the byte size of one element. It panics on an invalid type;
// constructors check Valid first.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Uint8, Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns the numpy-style name used in shapes like "float32[1, 3]".
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}
