package fsm

import (
	"fmt"
	"testing"
)

func TestCycle(t *testing.T) {
	testVals := []struct {
		ask     Event
		sent    State
		receive Event
	}{
		{EventSendCode, StateCodeSent, EventDiagnosticsReceived},
		{EventGoToDefAsked, StateGoToDefSent, EventDefinitionsReceived},
		{EventOccurencesAsked, StateOccurencesSent, EventOccurencesReceived},
		{EventCompletionsAsked, StateCompletionsSent, EventCompletionsReceived},
	}
	m := New(nil)
	for _, v := range testVals {
		if !m.Submit(v.ask) {
			t.Fatalf("Submit(%q) from %q was rejected", v.ask, StateDefault)
		}
		if !m.IsActive(v.sent) || !m.IsActive(StateOn) {
			t.Fatalf("after %q active state is %q; want %q", v.ask, m.Active(), v.sent)
		}
		got, err := Received(m.Active())
		if err != nil {
			t.Fatalf("Received(%q) failed: %v", m.Active(), err)
		}
		if got != v.receive {
			t.Errorf("Received(%q) gave %q; want %q", m.Active(), got, v.receive)
		}
		if !m.Submit(got) {
			t.Fatalf("Submit(%q) from %q was rejected", got, v.sent)
		}
		if m.Active() != StateDefault {
			t.Errorf("after %q active state is %q; want %q", got, m.Active(), StateDefault)
		}
	}
}

func TestErrorHappendReturnsToDefault(t *testing.T) {
	for _, ask := range []Event{EventSendCode, EventGoToDefAsked, EventOccurencesAsked, EventCompletionsAsked} {
		m := New(nil)
		m.Submit(ask)
		if !m.Submit(EventErrorHappend) {
			t.Errorf("errorHappend rejected after %q", ask)
		}
		if m.Active() != StateDefault {
			t.Errorf("after %q and errorHappend active state is %q; want %q", ask, m.Active(), StateDefault)
		}
	}
}

func TestUnexpectedEventIsTolerated(t *testing.T) {
	var logged []string
	m := New(func(format string, args ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, args...))
	})
	if m.Submit(EventCompletionsReceived) {
		t.Errorf("completionsReceived accepted in %q", StateDefault)
	}
	m.Submit(EventSendCode)
	if m.Submit(EventGoToDefAsked) {
		t.Errorf("goToDefAsked accepted in %q", StateCodeSent)
	}
	if m.Active() != StateCodeSent {
		t.Errorf("rejected event changed state to %q", m.Active())
	}
	if len(logged) != 2 {
		t.Errorf("got %v log lines; want 2: %q", len(logged), logged)
	}
	m.Reset()
	if m.Active() != StateDefault {
		t.Errorf("Reset left state %q", m.Active())
	}
	if _, err := Received(StateDefault); err == nil {
		t.Errorf("Received(%q) succeeded; want error", StateDefault)
	}
}
