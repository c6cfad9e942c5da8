package datasets

import "github.com/pkg/errors"

// DefaultColumns is the fixed feature subset used when a Selection neither
// asks for all columns nor lists its own. It is a placeholder, not the
// output of any statistical selection.
var DefaultColumns = []int{0, 1, 2, 3, 4}

// Selection chooses which feature columns reach the model.
type Selection struct {
	// All selects every non-label column.
	All bool
	// Columns lists feature column indices, used when All is false. If empty,
	// DefaultColumns is used.
	Columns []int
}

// resolve returns the selected columns against a table with featureCols
// non-label columns.
func (s Selection) resolve(featureCols int) []int {
	if s.All {
		return columnRange(featureCols)
	}
	if len(s.Columns) > 0 {
		return append([]int(nil), s.Columns...)
	}
	return append([]int(nil), DefaultColumns...)
}

// Features is the output of SelectFeatures.
type Features struct {
	TrainX, ValidX, TestX [][]float32
	TrainY, ValidY        []float32
	// Columns are the selected column indices, in order.
	Columns []int
}

// SelectFeatures restricts the train, valid and test tables to the selected
// feature columns and separates the train/valid labels (their last column).
// The test table has no label column.
func SelectFeatures(train, valid, test *Table, sel Selection) (*Features, error) {
	if train == nil || valid == nil || test == nil {
		return nil, errors.New("train, valid and test tables are required")
	}
	featureCols := train.Cols() - 1
	if featureCols < 1 {
		return nil, errors.Errorf("train table needs at least one feature and one label column, has %d columns", train.Cols())
	}
	if valid.Cols()-1 != featureCols {
		return nil, errors.Errorf("valid table has %d feature columns, train has %d", valid.Cols()-1, featureCols)
	}
	if test.Cols() != featureCols {
		return nil, errors.Errorf("test table has %d feature columns, train has %d", test.Cols(), featureCols)
	}

	cols := sel.resolve(featureCols)
	for _, c := range cols {
		if c < 0 || c >= featureCols {
			return nil, errors.Errorf("selected column %d out of range [0, %d)", c, featureCols)
		}
	}

	f := &Features{Columns: cols}
	var err error
	if f.TrainX, err = train.SelectColumns(cols); err != nil {
		return nil, errors.Wrap(err, "train features")
	}
	if f.ValidX, err = valid.SelectColumns(cols); err != nil {
		return nil, errors.Wrap(err, "valid features")
	}
	if f.TestX, err = test.SelectColumns(cols); err != nil {
		return nil, errors.Wrap(err, "test features")
	}
	f.TrainY = toFloat32(train.Column(featureCols))
	f.ValidY = toFloat32(valid.Column(featureCols))
	return f, nil
}

func toFloat32(xs []float64) []float32 {
	out := make([]float32, len(xs))
	for i, x := range xs {
		out[i] = float32(x)
	}
	return out
}
