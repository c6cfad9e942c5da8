// Package metrics is an append-only stream of scalar training events
// (name, value, step) for plotting and inspection after a run.
package metrics

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Event is one scalar observation.
type Event struct {
	Name  string
	Value float64
	Step  int
}

// Sink receives events in the order they are produced.
type Sink interface {
	Add(name string, value float64, step int) error
}

type discard struct{}

func (discard) Add(string, float64, int) error { return nil }

// Discard drops every event.
var Discard Sink = discard{}

// Recorder keeps events in memory.
type Recorder struct {
	events []Event
}

// Add implements Sink.
func (r *Recorder) Add(name string, value float64, step int) error {
	r.events = append(r.events, Event{Name: name, Value: value, Step: step})
	return nil
}

// Events returns a copy of every recorded event.
func (r *Recorder) Events() []Event {
	return append([]Event(nil), r.events...)
}

// Series returns the events with the given name, in order.
func (r *Recorder) Series(name string) []Event {
	var out []Event
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// CSVSink appends events to a CSV file with columns name,value,step.
type CSVSink struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVSink opens path for writing. With appendMode the file is extended
// and the header is only written when the file is empty.
func NewCSVSink(path string, appendMode bool) (*CSVSink, error) {
	mode := os.O_CREATE | os.O_WRONLY
	if appendMode {
		mode |= os.O_APPEND
	} else {
		mode |= os.O_TRUNC
	}
	file, err := os.OpenFile(path, mode, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open metrics file %s", path)
	}
	s := &CSVSink{file: file, writer: csv.NewWriter(file)}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "stat metrics file %s", path)
	}
	if info.Size() == 0 {
		if err := s.writer.Write([]string{"name", "value", "step"}); err != nil {
			file.Close()
			return nil, errors.Wrap(err, "write metrics header")
		}
		s.writer.Flush()
	}
	return s, nil
}

// Add implements Sink. Every event is flushed so the file can be tailed
// while training.
func (s *CSVSink) Add(name string, value float64, step int) error {
	record := []string{name, strconv.FormatFloat(value, 'g', -1, 64), strconv.Itoa(step)}
	if err := s.writer.Write(record); err != nil {
		return errors.Wrap(err, "write metrics record")
	}
	s.writer.Flush()
	return errors.Wrap(s.writer.Error(), "flush metrics record")
}

// Close flushes and closes the file.
func (s *CSVSink) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return errors.Wrap(err, "flush metrics")
	}
	return s.file.Close()
}

// Multi fans every event out to several sinks, stopping at the first error.
type Multi []Sink

// Add implements Sink.
func (m Multi) Add(name string, value float64, step int) error {
	for _, s := range m {
		if err := s.Add(name, value, step); err != nil {
			return err
		}
	}
	return nil
}
