package fixture

import (
	"context"
	"math"
	"os"
	"path/filepath"

	"github.com/born-ml/onnxgen/internal/onnx"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Tolerance bounds |got - want| <= Tolerance * (1 + |want|) in Verify.
const Tolerance = 1e-5

// Verify loads the model at modelPath, runs it on the inputs of the record
// at dataPath, and compares the result with the recorded output. A
// difference is reported as a *MismatchError. A model stamped with the
// digest of a different record fails with ErrPairMismatch.
func Verify(ctx context.Context, modelPath, dataPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	//nolint:gosec // G304: reading the record the caller asked for
	recordData, err := os.ReadFile(dataPath)
	if err != nil {
		return errors.Wrap(err, "failed to read record")
	}
	record, err := ParseRecord(recordData)
	if err != nil {
		return errors.WithMessage(err, dataPath)
	}

	proto, err := onnx.ParseFile(modelPath)
	if err != nil {
		return errors.WithMessage(err, modelPath)
	}
	if err := checkDigest(proto, recordData); err != nil {
		return errors.WithMessagef(err, "%s and %s", modelPath, dataPath)
	}
	model, err := onnx.LoadFromProto(proto, onnx.LoadOptions{StrictMode: true})
	if err != nil {
		return errors.WithMessage(err, modelPath)
	}
	if len(record.InputData) != len(model.InputNames()) {
		return errors.Errorf("record has %d inputs, model takes %v", len(record.InputData), model.InputNames())
	}

	input, err := record.Input(0)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	output, err := model.Forward(input)
	if err != nil {
		return errors.WithMessagef(err, "running %s", modelPath)
	}

	got, err := output.Unbind()
	if err != nil {
		return err
	}
	if len(got) != len(record.OutputData) {
		return errors.Errorf("model computes %d outputs, record holds %d", len(got), len(record.OutputData))
	}
	for i := range got {
		if err := compare(i, record.OutputData[i], got[i]); err != nil {
			return err
		}
	}
	klog.V(1).Infof("verified %s against %s", modelPath, dataPath)
	return nil
}

// VerifyDir verifies the default artifact pair inside dir.
func VerifyDir(ctx context.Context, dir string) error {
	return Verify(ctx, filepath.Join(dir, DefaultModelFile), filepath.Join(dir, DefaultDataFile))
}

// checkDigest compares the record digest stamped in the model, if any.
func checkDigest(proto *onnx.ModelProto, recordData []byte) error {
	for _, prop := range proto.MetadataProps {
		if prop.Key != DigestKey {
			continue
		}
		if got := Digest(recordData); prop.Value != got {
			return errors.Wrapf(ErrPairMismatch, "model expects record %s, found %s", prop.Value, got)
		}
		return nil
	}
	klog.V(1).Infof("model carries no %s, skipping pair check", DigestKey)
	return nil
}

func compare(output int, want, got []float64) error {
	if len(want) != len(got) {
		return errors.Errorf("output %d: model computes %d values, record holds %d", output, len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > Tolerance*(1+math.Abs(want[i])) || math.IsNaN(got[i]) != math.IsNaN(want[i]) {
			return &MismatchError{Output: output, Index: i, Want: want[i], Got: got[i]}
		}
	}
	return nil
}
