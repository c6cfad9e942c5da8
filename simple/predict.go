package simple

import (
	"io"

	"github.com/pkg/errors"
)

// Predict runs the model in inference mode over every batch of l, in the
// loader's order, and returns the concatenated predictions. Labels yielded
// by l, if any, are ignored.
func (m *Model) Predict(l Loader) ([]float32, error) {
	if l == nil {
		return nil, errors.New("loader is nil")
	}
	if l.Width() != m.inputDim {
		return nil, errors.Errorf("loader has %d features, model expects %d", l.Width(), m.inputDim)
	}
	l.Reset()
	var preds []float32
	for {
		_, inputs, _, err := l.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read batch")
		}
		batch, err := m.predictTensor(inputs[0])
		if err != nil {
			return nil, err
		}
		preds = append(preds, batch...)
	}
	return preds, nil
}
