package sampler

import (
	"log"
)

// Phase is a state of a run. Phases only move forward.
type Phase int

// Run phases in order
const (
	SeekingStart Phase = iota
	Balancing
	Sampling
	Finalizing
	Converged
	Failed
)

func (p Phase) String() string {
	switch p {
	case SeekingStart:
		return "SEEKING_START"
	case Balancing:
		return "BALANCING"
	case Sampling:
		return "SAMPLING"
	case Finalizing:
		return "FINALIZING"
	case Converged:
		return "CONVERGED"
	case Failed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// Terminal is true for Converged and Failed
func (p Phase) Terminal() bool {
	return p == Converged || p == Failed
}

// Event is a progress report from a run: sent on each phase change and at
// every adaptation checkpoint. Acceptance is the acceptance ratio since the
// previous checkpoint (mean over dimensions while balancing), or NaN when
// there is nothing to report.
type Event struct {
	Chain      int
	Phase      Phase
	Iteration  int
	Acceptance float64
	Err        error // set on the transition to Failed
}

// Observer receives progress events. Observers are advisory: they can't
// change the run.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to an Observer
type ObserverFunc func(Event)

// Observe calls f
func (f ObserverFunc) Observe(e Event) {
	f(e)
}

type nopObserver struct{}

func (nopObserver) Observe(Event) {}

// NopObserver discards every event
var NopObserver Observer = nopObserver{}

// LogObserver writes events to a logger
func LogObserver(logger *log.Logger) Observer {
	return ObserverFunc(func(e Event) {
		if e.Err != nil {
			logger.Printf("chain %d %-13s iter %8d: %v\n", e.Chain, e.Phase, e.Iteration, e.Err)
			return
		}
		logger.Printf("chain %d %-13s iter %8d accept %.4f\n", e.Chain, e.Phase, e.Iteration, e.Acceptance)
	})
}

// MultiObserver sends every event to each non-nil observer in turn
func MultiObserver(obs ...Observer) Observer {
	return ObserverFunc(func(e Event) {
		for _, o := range obs {
			if o != nil {
				o.Observe(e)
			}
		}
	})
}
