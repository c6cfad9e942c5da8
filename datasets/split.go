package datasets

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// SplitIndices partitions 0..n-1 into a training subset of n-floor(ratio*n)
// indices and a validation subset of floor(ratio*n) indices using a
// permutation drawn from rng. The training subset takes the head of the
// permutation.
func SplitIndices(n int, ratio float64, rng *rand.Rand) (train, valid []int, err error) {
	if ratio < 0 || ratio >= 1 {
		return nil, nil, errors.Errorf("valid ratio must be in [0, 1), got %g", ratio)
	}
	if n < 0 {
		return nil, nil, errors.Errorf("negative dataset size %d", n)
	}
	if rng == nil {
		return nil, nil, errors.New("rng is nil")
	}
	validSize := int(math.Floor(ratio * float64(n)))
	perm := rng.Perm(n)
	return perm[:n-validSize], perm[n-validSize:], nil
}

// SplitTable splits the rows of t into training and validation tables.
func SplitTable(t *Table, ratio float64, rng *rand.Rand) (train, valid *Table, err error) {
	trainIdx, validIdx, err := SplitIndices(t.Rows(), ratio, rng)
	if err != nil {
		return nil, nil, err
	}
	if len(validIdx) == 0 {
		return nil, nil, errors.Errorf("valid ratio %g leaves no validation rows out of %d", ratio, t.Rows())
	}
	if train, err = t.SubsetRows(trainIdx); err != nil {
		return nil, nil, errors.Wrap(err, "training subset")
	}
	if valid, err = t.SubsetRows(validIdx); err != nil {
		return nil, nil, errors.Wrap(err, "validation subset")
	}
	return train, valid, nil
}
