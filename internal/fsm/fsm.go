// Package fsm tracks which kind of request is in flight with the external
// tool. Replies carry no correlation identifier, so the active state is the
// only way to know what a reply answers.
//
// The machine cycles between StateDefault and one of the *Sent states for
// its whole lifetime. StateOn is an umbrella state that is always active.
package fsm

import "fmt"

// State is a named protocol state.
type State string

const (
	StateOn              State = "On"
	StateDefault         State = "Default"
	StateCodeSent        State = "CodeSent"
	StateGoToDefSent     State = "GoToDefSent"
	StateOccurencesSent  State = "OccurencesSent"
	StateCompletionsSent State = "CompletionsSent"
)

// Event is a named protocol event.
type Event string

const (
	EventSendCode            Event = "sendCode"
	EventGoToDefAsked        Event = "goToDefAsked"
	EventOccurencesAsked     Event = "occurencesAsked"
	EventCompletionsAsked    Event = "completionsAsked"
	EventDiagnosticsReceived Event = "diagnosticsReceived"
	EventDefinitionsReceived Event = "definitionsReceived"
	EventOccurencesReceived  Event = "occurencesReceived"
	EventCompletionsReceived Event = "completionsReceived"
	EventErrorHappend        Event = "errorHappend"
)

var transitions = map[State]map[Event]State{
	StateDefault: {
		EventSendCode:         StateCodeSent,
		EventGoToDefAsked:     StateGoToDefSent,
		EventOccurencesAsked:  StateOccurencesSent,
		EventCompletionsAsked: StateCompletionsSent,
	},
	StateCodeSent: {
		EventDiagnosticsReceived: StateDefault,
		EventErrorHappend:        StateDefault,
	},
	StateGoToDefSent: {
		EventDefinitionsReceived: StateDefault,
		EventErrorHappend:        StateDefault,
	},
	StateOccurencesSent: {
		EventOccurencesReceived: StateDefault,
		EventErrorHappend:       StateDefault,
	},
	StateCompletionsSent: {
		EventCompletionsReceived: StateDefault,
		EventErrorHappend:        StateDefault,
	},
}

// Machine is the protocol state machine. It is not safe for concurrent use;
// the dispatcher confines it to its control goroutine.
type Machine struct {
	active State
	logf   func(format string, args ...interface{})
}

// New returns a Machine in StateDefault. logf receives a line for every
// event that is not valid in the active state.
func New(logf func(format string, args ...interface{})) *Machine {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Machine{
		active: StateDefault,
		logf:   logf,
	}
}

// Active returns the active leaf state.
func (m *Machine) Active() State {
	return m.active
}

// IsActive reports whether s is active. StateOn is always active.
func (m *Machine) IsActive(s State) bool {
	return s == StateOn || s == m.active
}

// Submit applies e. An event that is not valid in the active state is
// logged and ignored, leaving the state unchanged; Submit then returns
// false. The machine favours availability over strictness, so this is never
// fatal.
func (m *Machine) Submit(e Event) bool {
	next, ok := transitions[m.active][e]
	if !ok {
		m.logf("fsm: ignoring event %q in state %q", e, m.active)
		return false
	}
	m.active = next
	return true
}

// Reset forces the machine back to StateDefault.
func (m *Machine) Reset() {
	if m.active != StateDefault {
		m.logf("fsm: forcing reset from state %q", m.active)
	}
	m.active = StateDefault
}

// Received returns the event that completes the request which moved the
// machine into s.
func Received(s State) (Event, error) {
	switch s {
	case StateCodeSent:
		return EventDiagnosticsReceived, nil
	case StateGoToDefSent:
		return EventDefinitionsReceived, nil
	case StateOccurencesSent:
		return EventOccurencesReceived, nil
	case StateCompletionsSent:
		return EventCompletionsReceived, nil
	}
	return "", fmt.Errorf("no request is in flight in state %q", s)
}
