package datasets

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Example is one row of a TensorDataset.
type Example struct {
	Features []float32
	Label    float32
	// HasLabel is false for datasets built without labels (test tables).
	HasLabel bool
}

// TensorDataset wraps a feature matrix and optional label vector. Values are
// copied in at construction and the dataset is read-only afterwards.
type TensorDataset struct {
	features [][]float32
	labels   []float32
	width    int
}

// NewTensorDataset copies features (and labels, when non-nil) into a new
// dataset. All feature rows must share the same width, and labels, when
// given, must align with the rows.
func NewTensorDataset(features [][]float32, labels []float32) (*TensorDataset, error) {
	if labels != nil && len(labels) != len(features) {
		return nil, errors.Errorf("features and labels sizes don't match: %d != %d", len(features), len(labels))
	}
	ds := &TensorDataset{features: make([][]float32, len(features))}
	for i, row := range features {
		if i == 0 {
			ds.width = len(row)
		} else if len(row) != ds.width {
			return nil, errors.Errorf("inconsistent feature dimensions at row %d: expected %d, got %d", i, ds.width, len(row))
		}
		ds.features[i] = append([]float32(nil), row...)
	}
	if labels != nil {
		ds.labels = append([]float32{}, labels...)
	}
	return ds, nil
}

// Len returns the number of rows.
func (d *TensorDataset) Len() int { return len(d.features) }

// Width returns the number of feature columns.
func (d *TensorDataset) Width() int { return d.width }

// HasLabels reports whether the dataset was built with labels.
func (d *TensorDataset) HasLabels() bool { return d.labels != nil }

// Get returns row i. The returned feature slice is a copy.
func (d *TensorDataset) Get(i int) (Example, error) {
	if i < 0 || i >= len(d.features) {
		return Example{}, errors.Errorf("index %d out of range [0, %d)", i, len(d.features))
	}
	ex := Example{Features: append([]float32(nil), d.features[i]...)}
	if d.labels != nil {
		ex.Label = d.labels[i]
		ex.HasLabel = true
	}
	return ex, nil
}

// Batch gathers the given rows into contiguous buffers.
func (d *TensorDataset) Batch(indices []int) (*BatchFlat, error) {
	b := &BatchFlat{
		Inputs:    make([]float32, 0, len(indices)*d.width),
		BatchSize: len(indices),
		InputDim:  d.width,
	}
	if d.labels != nil {
		b.Labels = make([]float32, 0, len(indices))
	}
	for _, idx := range indices {
		if idx < 0 || idx >= len(d.features) {
			return nil, errors.Errorf("batch index %d out of range [0, %d)", idx, len(d.features))
		}
		b.Inputs = append(b.Inputs, d.features[idx]...)
		if d.labels != nil {
			b.Labels = append(b.Labels, d.labels[idx])
		}
	}
	return b, nil
}

// BatchFlat stores a batch in flat contiguous buffers. Labels is nil for
// unlabeled datasets.
type BatchFlat struct {
	Inputs    []float32
	Labels    []float32
	BatchSize int
	InputDim  int
}

// ToGomlxTensors converts the batch to gomlx tensors shaped [batch, dim]
// for inputs and [batch] for labels. The labels tensor is nil when the batch
// has no labels.
func (b *BatchFlat) ToGomlxTensors() (inputs *tensors.Tensor, labels *tensors.Tensor, err error) {
	if b.BatchSize == 0 {
		return nil, nil, errors.New("cannot build tensors from an empty batch")
	}
	if len(b.Inputs) != b.BatchSize*b.InputDim {
		return nil, nil, errors.Errorf("flat inputs length mismatch: %d vs %d", len(b.Inputs), b.BatchSize*b.InputDim)
	}
	inputs = tensors.FromFlatDataAndDimensions(b.Inputs, b.BatchSize, b.InputDim)
	if b.Labels != nil {
		labels = tensors.FromFlatDataAndDimensions(b.Labels, b.BatchSize)
	}
	return inputs, labels, nil
}
