// Package datasets loads the case-count CSV tables and presents them as
// examples suitable for model training.
//
// Layout and intended usage:
//
// Table
//   - Holds a whole CSV (header + numeric rows) in a gonum matrix.
//   - Train tables carry the regression target as the last column; the
//     test table has one column fewer.
//
// TensorDataset
//   - Immutable copy of a feature matrix and, optionally, its labels.
//   - Indexable with Get and length-queryable with Len.
//
// Loader
//   - Groups a TensorDataset into mini-batches of gomlx tensors. Training
//     loaders reshuffle every pass using the caller's *rand.Rand.
//
// The split utility and the feature selector sit between the two: raw
// tables are split into train/valid tables, columns are selected, and the
// resulting matrices are wrapped into TensorDatasets.
package datasets

import "github.com/gomlx/gomlx/pkg/core/tensors"

// Dataset is the minimal read-only view shared by the dataset types in this
// package.
type Dataset interface {
	Len() int
	Get(i int) (Example, error)
}

// Batcher is implemented by datasets that can produce flattened batches.
// It is what Loader needs to build tensors.
type Batcher interface {
	Dataset
	Width() int
	HasLabels() bool
	Batch(indices []int) (*BatchFlat, error)
}

// Yielder mirrors gomlx's train.Dataset iteration: Yield returns io.EOF
// once a pass is exhausted and Reset starts a new pass.
type Yielder interface {
	Name() string
	Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error)
	Reset()
}
