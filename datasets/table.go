package datasets

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Table is a raw numeric CSV table: a header row plus one matrix row per
// example. Tables are loaded once and never mutated; every accessor returns
// copies.
type Table struct {
	// Header holds the column names, normalized to lower case.
	Header []string

	data *mat.Dense
}

// LoadTable reads a CSV file with a header row where every remaining cell
// parses as a number.
func LoadTable(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open CSV %s", path)
	}
	defer file.Close()

	t, err := ReadTable(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load table %s", path)
	}
	return t, nil
}

// ReadTable parses a CSV stream with a header row.
func ReadTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("csv is empty")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}
	cols := len(header)
	names := make([]string, cols)
	for i, col := range header {
		names[i] = strings.TrimSpace(strings.ToLower(col))
	}

	var flat []float64
	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read row %d", rows)
		}
		for j, cell := range record {
			val, err := parseFloat64(cell)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to parse row %d, column %q", rows, names[j])
			}
			flat = append(flat, val)
		}
		rows++
	}
	if rows == 0 {
		return nil, errors.New("csv has no data rows")
	}

	return &Table{Header: names, data: mat.NewDense(rows, cols, flat)}, nil
}

// NewTable builds a table from in-memory rows. Rows must all have
// len(header) values.
func NewTable(header []string, rows [][]float64) (*Table, error) {
	if len(rows) == 0 {
		return nil, errors.New("table has no rows")
	}
	cols := len(header)
	flat := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, errors.Errorf("row %d has %d values, header has %d columns", i, len(row), cols)
		}
		flat = append(flat, row...)
	}
	names := make([]string, cols)
	copy(names, header)
	return &Table{Header: names, data: mat.NewDense(len(rows), cols, flat)}, nil
}

// Rows returns the number of examples.
func (t *Table) Rows() int {
	r, _ := t.data.Dims()
	return r
}

// Cols returns the number of columns, including a trailing label column if
// the table has one.
func (t *Table) Cols() int {
	_, c := t.data.Dims()
	return c
}

// At returns the value at row i, column j.
func (t *Table) At(i, j int) float64 {
	return t.data.At(i, j)
}

// Column returns a copy of column j.
func (t *Table) Column(j int) []float64 {
	return mat.Col(nil, j, t.data)
}

// SubsetRows returns a new table holding the given rows in the given order.
func (t *Table) SubsetRows(indices []int) (*Table, error) {
	if len(indices) == 0 {
		return nil, errors.New("row subset is empty")
	}
	n := t.Rows()
	out := mat.NewDense(len(indices), t.Cols(), nil)
	for i, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, errors.Errorf("row index %d out of range [0, %d)", idx, n)
		}
		out.SetRow(i, t.data.RawRowView(idx))
	}
	header := make([]string, len(t.Header))
	copy(header, t.Header)
	return &Table{Header: header, data: out}, nil
}

// SelectColumns returns rows restricted to the given columns, converted to
// float32 for tensor construction.
func (t *Table) SelectColumns(cols []int) ([][]float32, error) {
	width := t.Cols()
	for _, c := range cols {
		if c < 0 || c >= width {
			return nil, errors.Errorf("column index %d out of range [0, %d)", c, width)
		}
	}
	out := make([][]float32, t.Rows())
	for i := range out {
		row := t.data.RawRowView(i)
		vals := make([]float32, len(cols))
		for k, c := range cols {
			vals[k] = float32(row[c])
		}
		out[i] = vals
	}
	return out, nil
}
