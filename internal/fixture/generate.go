package fixture

import (
	"context"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/born-ml/onnxgen/internal/nn"
	"github.com/born-ml/onnxgen/internal/onnx"
	"github.com/born-ml/onnxgen/internal/tensor"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Result describes the artifacts of one Generate run.
type Result struct {
	ModelPath string
	DataPath  string
	Seed      int64
	Record    *Record
	Model     *onnx.ModelProto
}

// Generate builds the example's model, feeds it one input drawn uniformly
// from [0, 1) with cfg.Seed, and writes the ONNX model and the JSON record
// to cfg.OutDir. Both files are replaced together or not at all: on any
// failure the previous pair, if there was one, is left in place.
//
// The model runs in inference mode, so the exported graph computes exactly
// the recorded output.
func Generate(ctx context.Context, ex Example, cfg Config) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(ex.InputShapes) != 1 {
		return nil, errors.Errorf("%s: models take exactly one input, got %d shapes", ex.Name, len(ex.InputShapes))
	}
	shape := ex.InputShapes[0]
	if err := shape.ValidateNonScalar(); err != nil {
		return nil, errors.WithMessagef(err, "%s: input shape", ex.Name)
	}
	if ex.NewModel == nil {
		return nil, errors.Errorf("%s: no model constructor", ex.Name)
	}

	klog.V(1).Infof("%s: building model", ex.Name)
	model, err := ex.NewModel()
	if err != nil {
		return nil, errors.WithMessagef(err, "%s: building model", ex.Name)
	}
	nn.SetTraining(model, false)

	klog.V(1).Infof("%s: drawing input %v with seed %d", ex.Name, batchShape(shape), cfg.Seed)
	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // fixtures need reproducibility, not secrecy
	input, err := tensor.Rand(batchShape(shape), rng)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	output, err := model.Forward(input)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s: forward pass", ex.Name)
	}
	klog.V(2).Infof("%s: output %s", ex.Name, output)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record, err := NewRecord(ex.InputShapes, []*tensor.RawTensor{input}, output)
	if err != nil {
		return nil, errors.WithMessage(err, ex.Name)
	}
	recordData, err := record.Marshal()
	if err != nil {
		return nil, err
	}

	proto, err := Export(model, ex.Name, ex.Export, input.Shape(), output.Shape())
	if err != nil {
		return nil, err
	}
	proto.DocString = ex.Description
	proto.MetadataProps = append(proto.MetadataProps, onnx.StringStringEntry{Key: DigestKey, Value: Digest(recordData)})
	modelData, err := onnx.Marshal(proto)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		ModelPath: filepath.Join(cfg.OutDir, cfg.modelFile()),
		DataPath:  filepath.Join(cfg.OutDir, cfg.dataFile()),
		Seed:      cfg.Seed,
		Record:    record,
		Model:     proto,
	}
	if err := writePair(cfg.OutDir, []artifact{
		{path: res.ModelPath, data: modelData},
		{path: res.DataPath, data: recordData},
	}); err != nil {
		return nil, errors.WithMessage(err, ex.Name)
	}
	klog.Infof("%s: wrote %s (%s) and %s (%s)", ex.Name,
		res.ModelPath, humanize.Bytes(uint64(len(modelData))),
		res.DataPath, humanize.Bytes(uint64(len(recordData))))

	if cfg.Verify {
		if err := Verify(ctx, res.ModelPath, res.DataPath); err != nil {
			return nil, err
		}
		klog.Infof("%s: round trip verified", ex.Name)
	}
	return res, nil
}

type artifact struct {
	path string
	data []byte
}

// move tracks one artifact through writePair so a failure can be undone.
type move struct {
	tmp    string // staged content
	target string
	backup string // previous target, moved aside; empty if there was none
	placed bool   // tmp was renamed onto target
}

// rename is swapped in tests to simulate I/O failures.
var rename = os.Rename

// writePair stages every artifact as a temporary file in dir, moves existing
// targets aside, and renames the staged files into place. If any step fails
// the previous targets are restored and the staged files removed.
func writePair(dir string, artifacts []artifact) (err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dir)
	}
	for _, a := range artifacts {
		info, err := os.Lstat(a.path)
		if err == nil && !info.Mode().IsRegular() {
			return errors.Errorf("%s exists and is not a regular file", a.path)
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Wrapf(err, "failed to inspect %s", a.path)
		}
	}

	var (
		moves     []*move
		backupDir string
	)
	defer func() {
		if err != nil {
			if rerr := rollback(moves); rerr != nil {
				klog.Errorf("previous artifacts are kept in %s: %v", backupDir, rerr)
				return
			}
		}
		if backupDir != "" {
			_ = os.RemoveAll(backupDir)
		}
	}()

	for _, a := range artifacts {
		tmp, err := stage(dir, a)
		if tmp != "" {
			moves = append(moves, &move{tmp: tmp, target: a.path})
		}
		if err != nil {
			return err
		}
	}

	backupDir, err = os.MkdirTemp(dir, ".onnxgen-backup-*")
	if err != nil {
		return errors.Wrapf(err, "failed to create backup directory in %s", dir)
	}
	for i, m := range moves {
		backup := filepath.Join(backupDir, strconv.Itoa(i)+"-"+filepath.Base(m.target))
		if err := rename(m.target, backup); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return errors.Wrapf(err, "failed to move %s aside", m.target)
		}
		m.backup = backup
	}
	for _, m := range moves {
		if err := rename(m.tmp, m.target); err != nil {
			return errors.Wrapf(err, "failed to move %s into place", m.target)
		}
		m.placed = true
	}
	return nil
}

// rollback undoes moves in reverse order: new files are removed, staged
// files discarded, and backups renamed back onto their targets.
func rollback(moves []*move) error {
	var firstErr error
	for i := len(moves) - 1; i >= 0; i-- {
		m := moves[i]
		switch {
		case !m.placed:
			_ = os.Remove(m.tmp)
		case m.backup == "":
			_ = os.Remove(m.target)
		}
		if m.backup == "" {
			continue
		}
		if err := rename(m.backup, m.target); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "failed to restore %s", m.target)
		}
	}
	return firstErr
}

// stage writes one artifact to a temporary file and returns its name.
func stage(dir string, a artifact) (string, error) {
	f, err := os.CreateTemp(dir, "."+filepath.Base(a.path)+".*.tmp")
	if err != nil {
		return "", errors.Wrapf(err, "failed to stage %s", a.path)
	}
	if _, err := f.Write(a.data); err != nil {
		_ = f.Close()
		return f.Name(), errors.Wrapf(err, "failed to write %s", a.path)
	}
	if err := f.Close(); err != nil {
		return f.Name(), errors.Wrapf(err, "failed to write %s", a.path)
	}
	//nolint:gosec // G302: artifacts are meant to be shared
	if err := os.Chmod(f.Name(), 0o644); err != nil {
		return f.Name(), errors.Wrapf(err, "failed to write %s", a.path)
	}
	return f.Name(), nil
}
