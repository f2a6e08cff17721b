package engine

import (
	"testing"

	"github.com/beatforge/beatforge/notequeue"
	"github.com/beatforge/beatforge/transport"
)

// TestScenarioSteadyStatePlaybackAdvancesMonotonically runs several
// consecutive buffers at a constant tempo and checks the audible frame
// advances by exactly nFrames each cycle with no drops or jumps.
func TestScenarioSteadyStatePlaybackAdvancesMonotonically(t *testing.T) {
	e := playableEngine(t)
	e.Sampler = &fakeSampler{}
	if err := e.Play(); err != nil {
		t.Fatalf("Play error: %v", err)
	}

	const nFrames = 128
	var last int64
	for i := 0; i < 20; i++ {
		e.Process(nFrames)
		want := int64(i+1) * nFrames
		if e.Audible.Frame != want {
			t.Fatalf("cycle %d: Audible.Frame = %d, want %d", i, e.Audible.Frame, want)
		}
		if e.Audible.Frame <= last && i > 0 {
			t.Fatalf("cycle %d: Audible.Frame did not advance (%d)", i, e.Audible.Frame)
		}
		last = e.Audible.Frame
	}
}

// TestScenarioTempoChangeMidPlaybackKeepsFrameContinuous verifies that
// changing the queued tempo mid-playback does not produce a
// discontinuity in the audible frame counter on the cycle the new
// tempo takes effect.
func TestScenarioTempoChangeMidPlaybackKeepsFrameContinuous(t *testing.T) {
	e := playableEngine(t)
	e.Sampler = &fakeSampler{}
	if err := e.Play(); err != nil {
		t.Fatalf("Play error: %v", err)
	}

	const nFrames = 256
	for i := 0; i < 5; i++ {
		e.Process(nFrames)
	}
	before := e.Audible.Frame

	e.SetNextBpm(90)
	e.Process(nFrames)

	got := e.Audible.Frame - before
	if got != nFrames {
		t.Errorf("frame advanced by %d across a tempo-change cycle, want exactly %d", got, nFrames)
	}
}

// TestScenarioStopThenPlayResumesFromAudiblePosition checks that
// stopping playback and restarting it does not relocate the
// transport: the audible frame picks up where it left off.
func TestScenarioStopThenPlayResumesFromAudiblePosition(t *testing.T) {
	e := playableEngine(t)
	e.Sampler = &fakeSampler{}
	if err := e.Play(); err != nil {
		t.Fatalf("Play error: %v", err)
	}
	e.Process(128)
	e.Process(128)
	frameAtStop := e.Audible.Frame

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	e.Process(128) // applies the Ready transition, does not advance Audible

	if e.Audible.Frame != frameAtStop {
		t.Errorf("Audible.Frame after Stop = %d, want unchanged %d", e.Audible.Frame, frameAtStop)
	}

	if err := e.Play(); err != nil {
		t.Fatalf("Play error: %v", err)
	}
	e.Process(128)
	if e.Audible.Frame != frameAtStop+128 {
		t.Errorf("Audible.Frame after resuming = %d, want %d", e.Audible.Frame, frameAtStop+128)
	}
}

// TestScenarioSongModeEndOfSongStopsAndRelocates drives a short
// two-column, non-looping song to its end and checks the engine stops
// and relocates to frame 0 on its own, without Stop() being called.
func TestScenarioSongModeEndOfSongStopsAndRelocates(t *testing.T) {
	e := playableEngine(t)
	e.Sampler = &fakeSampler{}

	lookup := &fakeLookup{columnTicks: 4, lastColumn: 1, looping: false}
	e.SongLookup = lookup
	e.Scheduler.SongLookup = lookup

	if err := e.Play(); err != nil {
		t.Fatalf("Play error: %v", err)
	}

	stopped := false
	for i := 0; i < 200; i++ {
		e.Process(64)
		if e.State() == StateReady {
			stopped = true
			break
		}
	}
	if !stopped {
		t.Fatal("engine never returned to Ready at the end of a non-looping song")
	}
	if e.Audible.Frame != 0 {
		t.Errorf("Audible.Frame after end-of-song = %d, want 0", e.Audible.Frame)
	}
}

// TestScenarioMidiNoteInjectedDuringPlaybackReachesSampler checks a
// realtime-injected MIDI note drains off the FIFO and into the
// scheduled heap, then reaches the sampler once its frame arrives.
func TestScenarioMidiNoteInjectedDuringPlaybackReachesSampler(t *testing.T) {
	e := playableEngine(t)
	sampler := &fakeSampler{}
	e.Sampler = sampler
	if err := e.Play(); err != nil {
		t.Fatalf("Play error: %v", err)
	}
	e.Process(64)

	inst := &transport.Instrument{ID: 3}
	inst.Enqueue()
	e.PushMidiNote(notequeue.Note{Note: transport.Note{InstrumentID: 3}, Instrument: inst})

	for i := 0; i < 10; i++ {
		e.Process(64)
	}

	found := false
	for _, n := range sampler.onNotes {
		if n.InstrumentID == 3 {
			found = true
		}
	}
	if !found {
		t.Error("a MIDI-injected note never reached the sampler")
	}
}
