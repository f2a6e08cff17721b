package engine

import "testing"

func TestStateStringKnownValues(t *testing.T) {
	cases := map[State]string{
		StateUninitialized: "Uninitialized",
		StateInitialized:   "Initialized",
		StatePrepared:      "Prepared",
		StateReady:         "Ready",
		StatePlaying:       "Playing",
		StateTesting:       "Testing",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}

func TestStateStringUnknown(t *testing.T) {
	var s State = 999
	if s.String() != "Unknown" {
		t.Errorf("String() for an out-of-range state = %q, want %q", s.String(), "Unknown")
	}
}
