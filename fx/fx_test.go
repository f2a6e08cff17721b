package fx

import "testing"

func TestPassThroughRoundTrips(t *testing.T) {
	p := NewPassThrough(16)
	in := []int16{1, 2, 3, 4}
	if rem := p.InputSamples(in); rem != 12 {
		t.Errorf("InputSamples remaining = %d, want 12", rem)
	}
	out := make([]int16, 4)
	if n := p.GetAudio(out); n != 4 {
		t.Fatalf("GetAudio returned %d, want 4", n)
	}
	for i, v := range in {
		if out[i] != v {
			t.Errorf("out[%d] = %d, want %d", i, out[i], v)
		}
	}
}

func TestPassThroughEmptyReadsZero(t *testing.T) {
	p := NewPassThrough(16)
	out := make([]int16, 4)
	if n := p.GetAudio(out); n != 0 {
		t.Errorf("GetAudio on empty buffer = %d, want 0", n)
	}
}

func TestCombAddGetAudioNeverExceedsAvailable(t *testing.T) {
	c := NewCombAdd(4, 0.3, 10, 44100)
	c.InputSamples([]int16{1, 2})
	out := make([]int16, 10)
	n := c.GetAudio(out)
	if n != 2 {
		t.Errorf("GetAudio = %d, want 2 (only 2 samples were ever fed in)", n)
	}
}

func TestFromConfigNoneIsPassThrough(t *testing.T) {
	chain, err := FromConfig("none", 44100)
	if err != nil {
		t.Fatalf("FromConfig error: %v", err)
	}
	if _, ok := chain.(*PassThrough); !ok {
		t.Errorf("FromConfig(\"none\") = %T, want *PassThrough", chain)
	}
}

func TestFromConfigUnrecognizedStillReturnsAChain(t *testing.T) {
	chain, err := FromConfig("bogus", 44100)
	if err == nil {
		t.Error("FromConfig with an unrecognized tag returned nil error")
	}
	if chain == nil {
		t.Error("FromConfig with an unrecognized tag returned a nil Chain")
	}
}
