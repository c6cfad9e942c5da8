package datasets

import (
	"encoding/csv"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// writeCSV writes a CSV file with the given header and rows to path.
func writeCSV(t *testing.T, path, header string, rows []string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create csv %s: %v", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(header + "\n"); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	for _, r := range rows {
		if _, err := f.WriteString(r + "\n"); err != nil {
			t.Fatalf("failed to write row: %v", err)
		}
	}
}

func mustTable(t *testing.T, header []string, rows [][]float64) *Table {
	t.Helper()
	tbl, err := NewTable(header, rows)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	return tbl
}

func TestLoadTable(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "covid.train.csv")
	writeCSV(t, path, "f0, F1 ,f2,tested_positive", []string{
		"1,2,3,10",
		"4,5,6,20",
		"7,8,9,30",
	})

	tbl, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable failed: %v", err)
	}
	if tbl.Rows() != 3 || tbl.Cols() != 4 {
		t.Fatalf("unexpected dims: rows=%d cols=%d", tbl.Rows(), tbl.Cols())
	}
	if tbl.Header[1] != "f1" {
		t.Fatalf("header not normalized: %q", tbl.Header[1])
	}
	if tbl.At(1, 2) != 6 {
		t.Fatalf("unexpected value at (1,2): %v", tbl.At(1, 2))
	}
	labels := tbl.Column(3)
	if labels[0] != 10 || labels[2] != 30 {
		t.Fatalf("unexpected label column: %v", labels)
	}
}

func TestLoadTableErrors(t *testing.T) {
	tmp := t.TempDir()

	if _, err := LoadTable(filepath.Join(tmp, "missing.csv")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	bad := filepath.Join(tmp, "bad.csv")
	writeCSV(t, bad, "a,b", []string{"1,x"})
	if _, err := LoadTable(bad); err == nil {
		t.Fatalf("expected error for non-numeric cell")
	}

	headerOnly := filepath.Join(tmp, "header.csv")
	writeCSV(t, headerOnly, "a,b", nil)
	if _, err := LoadTable(headerOnly); err == nil {
		t.Fatalf("expected error for table without rows")
	}

	ragged := filepath.Join(tmp, "ragged.csv")
	writeCSV(t, ragged, "a,b", []string{"1,2", "3"})
	if _, err := LoadTable(ragged); err == nil {
		t.Fatalf("expected error for ragged rows")
	}
}

func TestSplitIndicesSizesAndCoverage(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7, 10, 101} {
		for _, ratio := range []float64{0, 0.1, 0.2, 0.5, 0.99} {
			train, valid, err := SplitIndices(n, ratio, rand.New(rand.NewSource(5201314)))
			if err != nil {
				t.Fatalf("SplitIndices(%d, %g) error: %v", n, ratio, err)
			}
			wantValid := int(math.Floor(ratio * float64(n)))
			if len(valid) != wantValid || len(train) != n-wantValid {
				t.Fatalf("n=%d ratio=%g: got train=%d valid=%d, want valid=%d", n, ratio, len(train), len(valid), wantValid)
			}
			all := append(append([]int{}, train...), valid...)
			sort.Ints(all)
			for i, idx := range all {
				if idx != i {
					t.Fatalf("n=%d ratio=%g: indices do not cover 0..n-1 exactly: %v", n, ratio, all)
				}
			}
		}
	}
}

func TestSplitIndicesDeterministic(t *testing.T) {
	train1, valid1, err := SplitIndices(50, 0.2, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("SplitIndices error: %v", err)
	}
	train2, valid2, err := SplitIndices(50, 0.2, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("SplitIndices error: %v", err)
	}
	for i := range train1 {
		if train1[i] != train2[i] {
			t.Fatalf("train partitions differ at %d: %v vs %v", i, train1, train2)
		}
	}
	for i := range valid1 {
		if valid1[i] != valid2[i] {
			t.Fatalf("valid partitions differ at %d: %v vs %v", i, valid1, valid2)
		}
	}
}

func TestSplitIndicesRejectsBadRatio(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, ratio := range []float64{-0.1, 1, 1.5} {
		if _, _, err := SplitIndices(10, ratio, rng); err == nil {
			t.Fatalf("expected error for ratio %g", ratio)
		}
	}
}

func TestSplitTable(t *testing.T) {
	rows := make([][]float64, 10)
	for i := range rows {
		rows[i] = []float64{float64(i), float64(i * 2), float64(i * 3), float64(i * 4), float64(i * 10)}
	}
	tbl := mustTable(t, []string{"a", "b", "c", "d", "y"}, rows)

	train, valid, err := SplitTable(tbl, 0.2, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("SplitTable error: %v", err)
	}
	if train.Rows() != 8 || valid.Rows() != 2 {
		t.Fatalf("unexpected split sizes: train=%d valid=%d", train.Rows(), valid.Rows())
	}
	// every row keeps its values together: column y is 10x column a
	for _, part := range []*Table{train, valid} {
		for i := 0; i < part.Rows(); i++ {
			if part.At(i, 4) != 10*part.At(i, 0) {
				t.Fatalf("row %d scrambled: %v vs %v", i, part.At(i, 0), part.At(i, 4))
			}
		}
	}
}

func TestTensorDataset(t *testing.T) {
	features := [][]float32{{1, 2}, {3, 4}, {5, 6}}
	labels := []float32{10, 20, 30}

	ds, err := NewTensorDataset(features, labels)
	if err != nil {
		t.Fatalf("NewTensorDataset error: %v", err)
	}
	// mutate inputs after construction: the dataset must keep its copy
	features[0][0] = 99
	labels[0] = 99

	if ds.Len() != 3 || ds.Width() != 2 || !ds.HasLabels() {
		t.Fatalf("unexpected dataset shape: len=%d width=%d labels=%v", ds.Len(), ds.Width(), ds.HasLabels())
	}
	for i := 0; i < ds.Len(); i++ {
		ex, err := ds.Get(i)
		if err != nil {
			t.Fatalf("Get(%d) error: %v", i, err)
		}
		wantFirst := float32(2*i + 1)
		if ex.Features[0] != wantFirst || ex.Label != float32(10*(i+1)) || !ex.HasLabel {
			t.Fatalf("Get(%d) = %+v", i, ex)
		}
	}
	for _, idx := range []int{-1, 3, 100} {
		if _, err := ds.Get(idx); err == nil {
			t.Fatalf("expected error for Get(%d)", idx)
		}
	}
}

func TestTensorDatasetWithoutLabels(t *testing.T) {
	ds, err := NewTensorDataset([][]float32{{1}, {2}}, nil)
	if err != nil {
		t.Fatalf("NewTensorDataset error: %v", err)
	}
	ex, err := ds.Get(1)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if ex.HasLabel || ex.Features[0] != 2 {
		t.Fatalf("unexpected example: %+v", ex)
	}
}

func TestTensorDatasetRejectsMismatch(t *testing.T) {
	if _, err := NewTensorDataset([][]float32{{1}, {2}}, []float32{1}); err == nil {
		t.Fatalf("expected error for label count mismatch")
	}
	if _, err := NewTensorDataset([][]float32{{1, 2}, {3}}, nil); err == nil {
		t.Fatalf("expected error for ragged features")
	}
}

func TestSelectFeaturesAll(t *testing.T) {
	train := mustTable(t, []string{"a", "b", "c", "y"}, [][]float64{{1, 2, 3, 4}, {5, 6, 7, 8}, {9, 10, 11, 12}})
	valid := mustTable(t, []string{"a", "b", "c", "y"}, [][]float64{{0, 0, 0, 1}})
	test := mustTable(t, []string{"a", "b", "c"}, [][]float64{{1, 1, 1}, {2, 2, 2}})

	f, err := SelectFeatures(train, valid, test, Selection{All: true})
	if err != nil {
		t.Fatalf("SelectFeatures error: %v", err)
	}
	if len(f.TrainX) != 3 || len(f.TrainX[0]) != 3 {
		t.Fatalf("unexpected train features: %v", f.TrainX)
	}
	if len(f.ValidX) != 1 || len(f.ValidX[0]) != 3 {
		t.Fatalf("unexpected valid features: %v", f.ValidX)
	}
	if len(f.TestX) != 2 || len(f.TestX[0]) != 3 {
		t.Fatalf("unexpected test features: %v", f.TestX)
	}
	if len(f.TrainY) != 3 || f.TrainY[2] != 12 || len(f.ValidY) != 1 || f.ValidY[0] != 1 {
		t.Fatalf("unexpected labels: train=%v valid=%v", f.TrainY, f.ValidY)
	}
}

func TestSelectFeaturesColumns(t *testing.T) {
	header := []string{"a", "b", "c", "d", "e", "f", "y"}
	row := []float64{0, 1, 2, 3, 4, 5, 6}
	train := mustTable(t, header, [][]float64{row})
	valid := mustTable(t, header, [][]float64{row})
	test := mustTable(t, header[:6], [][]float64{row[:6]})

	f, err := SelectFeatures(train, valid, test, Selection{Columns: []int{5, 1}})
	if err != nil {
		t.Fatalf("SelectFeatures error: %v", err)
	}
	if f.TrainX[0][0] != 5 || f.TrainX[0][1] != 1 || f.TestX[0][0] != 5 {
		t.Fatalf("unexpected selected values: train=%v test=%v", f.TrainX, f.TestX)
	}

	f, err = SelectFeatures(train, valid, test, Selection{})
	if err != nil {
		t.Fatalf("SelectFeatures default error: %v", err)
	}
	if len(f.Columns) != len(DefaultColumns) || len(f.TrainX[0]) != len(DefaultColumns) {
		t.Fatalf("default selection not applied: %v", f.Columns)
	}

	if _, err := SelectFeatures(train, valid, test, Selection{Columns: []int{6}}); err == nil {
		t.Fatalf("expected error selecting the label column")
	}
}

func TestSelectFeaturesWidthMismatch(t *testing.T) {
	train := mustTable(t, []string{"a", "b", "y"}, [][]float64{{1, 2, 3}})
	valid := mustTable(t, []string{"a", "b", "y"}, [][]float64{{1, 2, 3}})
	test := mustTable(t, []string{"a", "b", "c"}, [][]float64{{1, 2, 3}})
	if _, err := SelectFeatures(train, valid, test, Selection{All: true}); err == nil {
		t.Fatalf("expected error for test width mismatch")
	}
}

func TestLoaderCoversDatasetInBatches(t *testing.T) {
	features := make([][]float32, 10)
	labels := make([]float32, 10)
	for i := range features {
		features[i] = []float32{float32(i), float32(-i)}
		labels[i] = float32(i)
	}
	ds, err := NewTensorDataset(features, labels)
	if err != nil {
		t.Fatalf("NewTensorDataset error: %v", err)
	}
	l, err := NewLoader("train", ds, 4, true, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("NewLoader error: %v", err)
	}
	if l.NumBatches() != 3 {
		t.Fatalf("expected 3 batches, got %d", l.NumBatches())
	}

	for pass := 0; pass < 2; pass++ {
		l.Reset()
		seen := make(map[float32]bool)
		sizes := []int{}
		for {
			_, inputs, lab, err := l.Yield()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("Yield error: %v", err)
			}
			dims := inputs[0].Shape().Dimensions
			if len(dims) != 2 || dims[1] != 2 {
				t.Fatalf("unexpected input dims %v", dims)
			}
			if len(lab) != 1 || lab[0].Shape().Dimensions[0] != dims[0] {
				t.Fatalf("labels not aligned with inputs")
			}
			sizes = append(sizes, dims[0])
			batch := lab[0].Value().([]float32)
			for _, v := range batch {
				seen[v] = true
			}
		}
		if len(sizes) != 3 || sizes[0] != 4 || sizes[2] != 2 {
			t.Fatalf("unexpected batch sizes %v", sizes)
		}
		if len(seen) != 10 {
			t.Fatalf("pass %d did not cover every example: %v", pass, seen)
		}
	}
}

func TestLoaderKeepsOrderWithoutShuffle(t *testing.T) {
	ds, err := NewTensorDataset([][]float32{{0}, {1}, {2}, {3}, {4}}, nil)
	if err != nil {
		t.Fatalf("NewTensorDataset error: %v", err)
	}
	l, err := NewLoader("test", ds, 2, false, nil)
	if err != nil {
		t.Fatalf("NewLoader error: %v", err)
	}
	var got []float32
	for {
		b, err := l.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next error: %v", err)
		}
		if b.Labels != nil {
			t.Fatalf("unlabeled dataset produced labels")
		}
		got = append(got, b.Inputs...)
	}
	for i, v := range got {
		if v != float32(i) {
			t.Fatalf("order not preserved: %v", got)
		}
	}
}

func TestWriteSubmission(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "pred.csv")
	if err := WriteSubmission(path, []float32{1.5, 2, 3.25}); err != nil {
		t.Fatalf("WriteSubmission error: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open submission: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read submission: %v", err)
	}
	if len(records) != 4 || records[0][0] != "id" || records[0][1] != "tested_positive" {
		t.Fatalf("unexpected submission: %v", records)
	}
	if records[1][0] != "0" || records[1][1] != "1.5" || records[3][0] != "2" || records[3][1] != "3.25" {
		t.Fatalf("unexpected rows: %v", records[1:])
	}
	matches, _ := filepath.Glob(path + ".tmp.*")
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}
