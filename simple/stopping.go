package simple

import (
	"fmt"
	"math"
)

// State is the trainer state after observing an epoch.
type State int

const (
	// Running is the state before any epoch has been observed.
	Running State = iota
	// Improved means the last validation loss was a strict new best.
	Improved
	// Stalled means the last validation loss did not improve on the best.
	Stalled
	// Done means patience is exhausted and training must halt.
	Done
)

func (s State) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Improved:
		return "IMPROVED"
	case Stalled:
		return "STALLED"
	case Done:
		return "DONE"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// EarlyStopper tracks the best validation loss and the number of
// consecutive epochs without strict improvement.
type EarlyStopper struct {
	Patience int

	best  float64
	stall int
	state State
}

// NewEarlyStopper returns a stopper with best loss +Inf.
func NewEarlyStopper(patience int) *EarlyStopper {
	return &EarlyStopper{Patience: patience, best: math.Inf(1), state: Running}
}

// Observe records the validation loss of an epoch and returns the new state.
// A loss equal to the best so far counts as a stall.
func (s *EarlyStopper) Observe(loss float64) State {
	if loss < s.best {
		s.best = loss
		s.stall = 0
		s.state = Improved
		return s.state
	}
	s.stall++
	s.state = Stalled
	if s.stall >= s.Patience {
		s.state = Done
	}
	return s.state
}

// Best returns the best validation loss observed.
func (s *EarlyStopper) Best() float64 { return s.best }

// StallCount returns the number of consecutive non-improving epochs.
func (s *EarlyStopper) StallCount() int { return s.stall }

// State returns the current state.
func (s *EarlyStopper) State() State { return s.state }
