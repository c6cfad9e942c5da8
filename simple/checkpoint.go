package simple

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// checkpointMarker is the name prefix of the files gomlx writes into a
// checkpoint directory.
const checkpointMarker = "checkpoint"

// isCheckpointDir reports whether entries look like gomlx checkpoint
// output: flat, with at least one checkpoint marker file.
func isCheckpointDir(entries []os.DirEntry) bool {
	found := false
	for _, e := range entries {
		if e.IsDir() {
			return false
		}
		if strings.HasPrefix(e.Name(), checkpointMarker) {
			found = true
		}
	}
	return found
}

// ClearCheckpoint removes the checkpoint directory at path. A missing path
// is not an error, and an empty directory or one holding only gomlx
// checkpoint files is removed. Anything else (a regular file, or a directory
// with other content) is refused, so a mistyped save path never destroys
// unrelated data.
func ClearCheckpoint(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "checkpoint path %s", path)
	}
	if !info.IsDir() {
		return errors.Errorf("checkpoint path %s exists and is not a directory", path)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return errors.Wrapf(err, "read checkpoint dir %s", path)
	}
	if len(entries) > 0 && !isCheckpointDir(entries) {
		return errors.Errorf("refusing to overwrite %s: not empty and not a checkpoint directory", path)
	}
	if err := os.RemoveAll(path); err != nil {
		return errors.Wrapf(err, "clear checkpoint dir %s", path)
	}
	return nil
}

// Save writes the current parameters to a checkpoint directory at path.
// The first save of a model clears path with ClearCheckpoint, so that a
// stale checkpoint from an earlier run is never loaded back into this model;
// later saves replace the previous checkpoint, keeping only the latest one.
func (m *Model) Save(path string) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "resolve checkpoint path %s", path)
	}
	if m.ckpt == nil || m.ckptPath != path {
		if err := ClearCheckpoint(path); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return errors.Wrapf(err, "mkdir %s", filepath.Dir(path))
		}
		m.ckpt, err = checkpoints.Build(m.ctx).Dir(path).Keep(1).Done()
		if err != nil {
			return errors.Wrapf(err, "create checkpoint handler for %s", path)
		}
		m.ckptPath = path
	}
	if err := m.ckpt.Save(); err != nil {
		return errors.Wrapf(err, "save checkpoint to %s", path)
	}
	return nil
}

// LoadModel restores a model saved with Save into a freshly constructed
// model for inputDim features. Every parameter of the topology must be
// present in the checkpoint with a matching shape; otherwise an error is
// returned.
func LoadModel(backend backends.Backend, path string, inputDim int, cfg Config) (*Model, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "checkpoint %s", path)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("checkpoint %s is not a directory", path)
	}
	m, err := NewModel(backend, inputDim, cfg)
	if err != nil {
		return nil, err
	}

	// Loaded models only reuse variables: a missing or differently shaped
	// parameter fails graph construction instead of being initialized.
	m.ctx = context.New()
	if _, err := checkpoints.Build(m.ctx).Dir(path).Immediate().Done(); err != nil {
		return nil, errors.Wrapf(err, "load checkpoint %s", path)
	}
	m.ctx = m.ctx.Reuse()

	probe := tensors.FromFlatDataAndDimensions(make([]float32, inputDim), 1, inputDim)
	if _, err := m.predictTensor(probe); err != nil {
		return nil, errors.Wrapf(err, "checkpoint %s does not match a model with %d inputs", path, inputDim)
	}
	klog.V(1).Infof("Loaded model checkpoint from %s", path)
	return m, nil
}
