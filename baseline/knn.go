// Package baseline provides a k-nearest-neighbour regressor used as a
// reference point for the network's validation loss.
package baseline

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/Noofbiz/covidCases/datasets"
)

// KNN predicts the mean label of the K closest labeled examples in
// Euclidean feature space.
type KNN struct {
	K int

	features [][]float64
	labels   []float64
}

// neighbor holds a candidate from the reference set.
type neighbor struct {
	idx      int
	distance float64
}

// NewKNN copies the labeled examples of ds. k must be >= 1.
func NewKNN(ds datasets.Dataset, k int) (*KNN, error) {
	if ds == nil {
		return nil, errors.New("dataset cannot be nil")
	}
	if k < 1 {
		return nil, errors.Errorf("k must be >= 1, got %d", k)
	}
	n := ds.Len()
	if n == 0 {
		return nil, errors.New("reference dataset is empty")
	}
	m := &KNN{K: k, features: make([][]float64, n), labels: make([]float64, n)}
	for i := 0; i < n; i++ {
		ex, err := ds.Get(i)
		if err != nil {
			return nil, errors.Wrapf(err, "example %d", i)
		}
		if !ex.HasLabel {
			return nil, errors.Errorf("example %d has no label", i)
		}
		if i > 0 && len(ex.Features) != len(m.features[0]) {
			return nil, errors.Errorf("example %d has %d features, want %d", i, len(ex.Features), len(m.features[0]))
		}
		m.features[i] = toFloat64(ex.Features)
		m.labels[i] = float64(ex.Label)
	}
	return m, nil
}

// Predict returns the mean label of the K nearest neighbours of x.
func (m *KNN) Predict(x []float32) (float64, error) {
	neighbors, err := m.nearest(toFloat64(x), m.K)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, nb := range neighbors {
		sum += m.labels[nb.idx]
	}
	return sum / float64(len(neighbors)), nil
}

// PredictAll runs Predict over every example of ds, in order.
func (m *KNN) PredictAll(ds datasets.Dataset) ([]float64, error) {
	out := make([]float64, ds.Len())
	for i := range out {
		ex, err := ds.Get(i)
		if err != nil {
			return nil, errors.Wrapf(err, "example %d", i)
		}
		if out[i], err = m.Predict(ex.Features); err != nil {
			return nil, errors.Wrapf(err, "example %d", i)
		}
	}
	return out, nil
}

// RMSE scores the regressor on a labeled dataset.
func (m *KNN) RMSE(ds datasets.Dataset) (float64, error) {
	n := ds.Len()
	if n == 0 {
		return 0, errors.New("evaluation dataset is empty")
	}
	preds, err := m.PredictAll(ds)
	if err != nil {
		return 0, err
	}
	targets := make([]float64, n)
	for i := range targets {
		ex, err := ds.Get(i)
		if err != nil {
			return 0, errors.Wrapf(err, "example %d", i)
		}
		if !ex.HasLabel {
			return 0, errors.Errorf("example %d has no label", i)
		}
		targets[i] = float64(ex.Label)
	}
	// Distance with L=2 is the residual norm.
	return floats.Distance(preds, targets, 2) / math.Sqrt(float64(n)), nil
}

// nearest performs a linear scan over the reference set and returns up to k
// neighbours sorted by increasing distance, breaking ties by index.
func (m *KNN) nearest(x []float64, k int) ([]neighbor, error) {
	n := len(m.features)
	if len(x) != len(m.features[0]) {
		return nil, errors.Errorf("query has %d features, want %d", len(x), len(m.features[0]))
	}

	jobs := make(chan int, n)
	resultsCh := make(chan neighbor, n)

	workerCount := runtime.NumCPU()
	if workerCount > n {
		workerCount = n
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				resultsCh <- neighbor{idx: i, distance: floats.Distance(x, m.features[i], 2)}
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	candidates := make([]neighbor, 0, n)
	for nb := range resultsCh {
		candidates = append(candidates, nb)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].idx < candidates[j].idx
	})
	if k > len(candidates) {
		k = len(candidates)
	}
	return candidates[:k], nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
