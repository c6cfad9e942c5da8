package metrics

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecorderSeries(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Add("Loss/train", 3, 4))
	require.NoError(t, r.Add("Loss/valid", 2, 4))
	require.NoError(t, r.Add("Loss/train", 1, 8))

	train := r.Series("Loss/train")
	require.Len(t, train, 2)
	require.Equal(t, Event{Name: "Loss/train", Value: 1, Step: 8}, train[1])
	require.Len(t, r.Events(), 3)
}

func TestCSVSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")

	s, err := NewCSVSink(path, false)
	require.NoError(t, err)
	require.NoError(t, s.Add("Loss/train", 0.5, 1))
	require.NoError(t, s.Close())

	s, err = NewCSVSink(path, true)
	require.NoError(t, err)
	require.NoError(t, s.Add("Loss/valid", 0.25, 2))
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"name", "value", "step"},
		{"Loss/train", "0.5", "1"},
		{"Loss/valid", "0.25", "2"},
	}, records)
}

func TestMultiFansOut(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	require.NoError(t, Multi{a, b, Discard}.Add("x", 1, 0))
	require.Len(t, a.Events(), 1)
	require.Len(t, b.Events(), 1)
}

func TestPlotSeries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plots", "loss.png")
	events := []Event{
		{Name: "Loss/train", Value: 3, Step: 1},
		{Name: "Loss/train", Value: 2, Step: 2},
		{Name: "Loss/valid", Value: 2.5, Step: 2},
	}
	require.NoError(t, PlotSeries(path, "loss", events, "Loss/train", "Loss/valid"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))

	require.Error(t, PlotSeries(path, "loss", events, "missing"))
}
