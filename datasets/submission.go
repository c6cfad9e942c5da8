package datasets

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// SubmissionHeader is the header row of the prediction CSV.
var SubmissionHeader = []string{"id", "tested_positive"}

// WriteSubmission writes one row per prediction with a synthetic id
// 0..len(preds)-1. The file is written to a temp file in the same directory
// and renamed into place.
func WriteSubmission(path string, preds []float32) error {
	if path == "" {
		return errors.New("empty submission path")
	}
	if err := ensureParentDir(path); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return errors.Wrap(err, "create temp submission file")
	}
	tmpName := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		_ = os.Remove(tmpName)
	}()

	w := csv.NewWriter(tmpFile)
	if err := w.Write(SubmissionHeader); err != nil {
		return errors.Wrap(err, "write submission header")
	}
	for i, p := range preds {
		row := []string{strconv.Itoa(i), strconv.FormatFloat(float64(p), 'f', -1, 32)}
		if err := w.Write(row); err != nil {
			return errors.Wrapf(err, "write submission row %d", i)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "flush submission")
	}
	if err := tmpFile.Close(); err != nil {
		return errors.Wrap(err, "close temp submission file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrap(err, "rename temp submission to target")
	}
	return nil
}
