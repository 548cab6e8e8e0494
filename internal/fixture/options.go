package fixture

import (
	"maps"
	"slices"
	"time"

	"github.com/born-ml/onnxgen/internal/tensor"
	"github.com/pkg/errors"
)

// Default artifact names.
const (
	DefaultModelFile = "network.onnx"
	DefaultDataFile  = "input.json"
)

// ExportOptions controls how a model is written to ONNX. The defaults
// reproduce the torch.onnx.export call fixtures have always been made with.
type ExportOptions struct {
	// InputNames names the graph inputs, one per model input.
	InputNames []string

	// OutputNames names the graph outputs, one per model output.
	OutputNames []string

	// OpsetVersion of the default ONNX domain. The IR version follows from it.
	OpsetVersion int64

	// DoConstantFolding precomputes nodes that only read initializers.
	DoConstantFolding bool

	// ExportParams stores parameters as initializers. When false they
	// become graph inputs the consumer has to feed.
	ExportParams bool

	// DynamicAxes names axes of inputs and outputs that may vary, keyed by
	// tensor name and then axis.
	DynamicAxes map[string]map[int]string
}

// DefaultExportOptions returns opset 10, constant folding, embedded
// parameters, tensors named input and output, and a dynamic batch axis.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		InputNames:        []string{"input"},
		OutputNames:       []string{"output"},
		OpsetVersion:      10,
		DoConstantFolding: true,
		ExportParams:      true,
		DynamicAxes: map[string]map[int]string{
			"input":  {0: "batch_size"},
			"output": {0: "batch_size"},
		},
	}
}

// Clone returns a deep copy of the options.
func (o *ExportOptions) Clone() ExportOptions {
	c := *o
	c.InputNames = slices.Clone(o.InputNames)
	c.OutputNames = slices.Clone(o.OutputNames)
	if o.DynamicAxes != nil {
		c.DynamicAxes = make(map[string]map[int]string, len(o.DynamicAxes))
		for name, names := range o.DynamicAxes {
			c.DynamicAxes[name] = maps.Clone(names)
		}
	}
	return c
}

// Validate checks the options can describe a single-input, single-output model.
func (o *ExportOptions) Validate() error {
	if len(o.InputNames) != 1 || o.InputNames[0] == "" {
		return errors.Errorf("export needs exactly one input name, got %q", o.InputNames)
	}
	if len(o.OutputNames) != 1 || o.OutputNames[0] == "" {
		return errors.Errorf("export needs exactly one output name, got %q", o.OutputNames)
	}
	if o.InputNames[0] == o.OutputNames[0] {
		return errors.Errorf("input and output are both named %q", o.InputNames[0])
	}
	if o.OpsetVersion <= 0 {
		return errors.Errorf("invalid opset version %d", o.OpsetVersion)
	}
	return nil
}

// Config configures one generator run.
type Config struct {
	// OutDir receives the artifacts; it is created if missing.
	OutDir string

	// Seed for the input generator. Runs with equal seeds write identical files.
	Seed int64

	// Verify reloads the written pair and checks the round trip.
	Verify bool

	// ModelFile and DataFile are the artifact names inside OutDir.
	ModelFile string
	DataFile  string
}

// DefaultConfig returns the configuration matching the original fixture
// scripts: artifacts in the working directory, seeded from the clock.
func DefaultConfig() Config {
	return Config{
		OutDir:    ".",
		Seed:      time.Now().UnixNano(),
		Verify:    false,
		ModelFile: DefaultModelFile,
		DataFile:  DefaultDataFile,
	}
}

func (c *Config) modelFile() string {
	if c.ModelFile == "" {
		return DefaultModelFile
	}
	return c.ModelFile
}

func (c *Config) dataFile() string {
	if c.DataFile == "" {
		return DefaultDataFile
	}
	return c.DataFile
}

// batchShape prepends the batch axis of one the input is drawn with.
func batchShape(shape tensor.Shape) tensor.Shape {
	return append(tensor.Shape{1}, shape...)
}
