package update

import (
	"fmt"
	"time"
)

// State is a step of an update run.
type State int

// States of an update run in order.
const (
	Idle State = iota
	ProbingBefore
	CapturingSnapshot
	Flashing
	ProbingAfter
	RestoringSettings
	RestoringDevices
	Done
	Failed
)

var stateNames = []string{
	"idle",
	"probing-before",
	"capturing-snapshot",
	"flashing",
	"probing-after",
	"restoring-settings",
	"restoring-devices",
	"done",
	"failed",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if s < Idle || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ParseState converts a name back to a State.
func ParseState(name string) (State, bool) {
	for n, s := range stateNames {
		if s == name {
			return State(n), true
		}
	}
	return Idle, false
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	parsed, ok := ParseState(string(text))
	if !ok {
		return fmt.Errorf("unknown state %q", text)
	}
	*s = parsed
	return nil
}

// Terminal indicates the run has finished.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}

// Event reports a state transition.
type Event struct {
	RunID   string
	Port    string
	From    State
	To      State
	Time    time.Time
	Message string
	Err     error
}

// Observer receives every state transition of a run.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc is func type of Observer.
type ObserverFunc func(Event)

// OnEvent implements Observer.
func (f ObserverFunc) OnEvent(e Event) {
	f(e)
}

// Observers fans events out to multiple observers.
type Observers []Observer

// OnEvent implements Observer.
func (o Observers) OnEvent(e Event) {
	for _, observer := range o {
		if observer != nil {
			observer.OnEvent(e)
		}
	}
}
