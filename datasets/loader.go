package datasets

import (
	"io"
	"math/rand"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Loader yields a Batcher in mini-batches of gomlx tensors, one pass at a
// time. Shuffled loaders draw a fresh permutation from rng on every Reset, so
// the order of each pass is a function of the rng state only.
type Loader struct {
	name      string
	ds        Batcher
	batchSize int
	shuffle   bool
	rng       *rand.Rand

	order []int
	pos   int
}

var _ Yielder = (*Loader)(nil)

// NewLoader creates a loader over ds. rng is required when shuffle is true.
func NewLoader(name string, ds Batcher, batchSize int, shuffle bool, rng *rand.Rand) (*Loader, error) {
	if ds == nil {
		return nil, errors.New("dataset is nil")
	}
	if ds.Len() == 0 {
		return nil, errors.Errorf("dataset %q is empty", name)
	}
	if batchSize <= 0 {
		return nil, errors.Errorf("batch size must be positive, got %d", batchSize)
	}
	if shuffle && rng == nil {
		return nil, errors.New("shuffled loader needs an rng")
	}
	l := &Loader{
		name:      name,
		ds:        ds,
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rng,
		order:     columnRange(ds.Len()),
	}
	l.Reset()
	return l, nil
}

// Name returns the name of the loader.
func (l *Loader) Name() string { return l.name }

// Width returns the feature width of the underlying dataset.
func (l *Loader) Width() int { return l.ds.Width() }

// Len returns the number of examples per pass.
func (l *Loader) Len() int { return l.ds.Len() }

// NumBatches returns the number of batches per pass; the last batch may be
// smaller than the batch size.
func (l *Loader) NumBatches() int {
	return (l.ds.Len() + l.batchSize - 1) / l.batchSize
}

// Reset starts a new pass, reshuffling if the loader shuffles.
func (l *Loader) Reset() {
	l.pos = 0
	if l.shuffle {
		l.rng.Shuffle(len(l.order), func(i, j int) {
			l.order[i], l.order[j] = l.order[j], l.order[i]
		})
	}
}

// Next returns the next flat batch, or io.EOF when the pass is exhausted.
func (l *Loader) Next() (*BatchFlat, error) {
	if l.pos >= len(l.order) {
		return nil, io.EOF
	}
	end := min(l.pos+l.batchSize, len(l.order))
	batch, err := l.ds.Batch(l.order[l.pos:end])
	if err != nil {
		return nil, err
	}
	l.pos = end
	return batch, nil
}

// Yield returns the next batch as gomlx tensors. labels is empty for
// unlabeled datasets. It returns io.EOF at the end of a pass.
func (l *Loader) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	batch, err := l.Next()
	if err != nil {
		return nil, nil, nil, err
	}
	in, la, err := batch.ToGomlxTensors()
	if err != nil {
		return nil, nil, nil, err
	}
	inputs = []*tensors.Tensor{in}
	if la != nil {
		labels = []*tensors.Tensor{la}
	}
	return nil, inputs, labels, nil
}
