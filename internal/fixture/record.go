package fixture

import (
	"encoding/json"
	"os"

	"github.com/born-ml/onnxgen/internal/tensor"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// digestNamespace scopes the name-based UUIDs identifying records.
var digestNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/born-ml/onnxgen/record"))

// DigestKey is the model metadata key holding the digest of the record
// generated together with the model.
const DigestKey = "onnxgen.record_digest"

// Record is the JSON companion of a generated model.
//
// InputShapes holds per-sample shapes, without the batch axis. InputData
// holds each input flattened row-major, OutputData one flattened sequence
// per batch entry of the output.
type Record struct {
	InputShapes [][]int     `json:"input_shapes"`
	InputData   [][]float64 `json:"input_data"`
	OutputData  [][]float64 `json:"output_data"`
}

// NewRecord builds the record for one forward pass. shapes are the
// per-sample input shapes, inputs the tensors fed to the model.
func NewRecord(shapes []tensor.Shape, inputs []*tensor.RawTensor, output *tensor.RawTensor) (*Record, error) {
	if len(shapes) != len(inputs) {
		return nil, errors.Errorf("%d input shapes for %d inputs", len(shapes), len(inputs))
	}
	r := &Record{
		InputShapes: make([][]int, len(shapes)),
		InputData:   make([][]float64, len(inputs)),
	}
	for i, x := range inputs {
		r.InputShapes[i] = []int(shapes[i].Clone())
		data, err := x.Float64s()
		if err != nil {
			return nil, errors.WithMessagef(err, "input %d", i)
		}
		r.InputData[i] = data
	}
	outputs, err := output.Unbind()
	if err != nil {
		return nil, errors.WithMessage(err, "output")
	}
	r.OutputData = outputs
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks that every input holds as many values as its shape
// describes and that there is some output.
func (r *Record) Validate() error {
	if len(r.InputShapes) == 0 {
		return errors.Wrap(ErrInvalidRecord, "no inputs")
	}
	if len(r.InputShapes) != len(r.InputData) {
		return errors.Wrapf(ErrInvalidRecord, "%d input shapes for %d inputs", len(r.InputShapes), len(r.InputData))
	}
	for i, shape := range r.InputShapes {
		if err := tensor.Shape(shape).ValidateNonScalar(); err != nil {
			return errors.Wrapf(ErrInvalidRecord, "input %d: %v", i, err)
		}
		if n := tensor.Shape(shape).NumElements(); n != len(r.InputData[i]) {
			return errors.Wrapf(ErrInvalidRecord, "input %d: shape %v holds %d values, got %d",
				i, shape, n, len(r.InputData[i]))
		}
	}
	if len(r.OutputData) == 0 {
		return errors.Wrap(ErrInvalidRecord, "no outputs")
	}
	return nil
}

// Input returns input i as a float32 tensor of shape [1, InputShapes[i]...].
func (r *Record) Input(i int) (*tensor.RawTensor, error) {
	if i < 0 || i >= len(r.InputData) {
		return nil, errors.Errorf("record has %d inputs, asked for %d", len(r.InputData), i)
	}
	return tensor.FromFloat64s(r.InputData[i], batchShape(tensor.Shape(r.InputShapes[i])))
}

// Marshal encodes the record as compact JSON.
func (r *Record) Marshal() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode record")
	}
	return data, nil
}

// Digest identifies encoded record bytes.
func Digest(data []byte) string {
	return uuid.NewSHA1(digestNamespace, data).String()
}

// ParseRecord decodes and validates a JSON record.
func ParseRecord(data []byte) (*Record, error) {
	r := &Record{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, errors.Wrap(err, "failed to decode record")
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// ReadRecord reads and validates a JSON record file.
//
//nolint:gosec // G304: reading the record the caller asked for
func ReadRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read record")
	}
	r, err := ParseRecord(data)
	return r, errors.WithMessage(err, path)
}
