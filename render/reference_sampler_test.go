package render

import (
	"testing"

	"github.com/beatforge/beatforge/notequeue"
	"github.com/beatforge/beatforge/transport"
)

func TestNoteOnAndProcessProducesAudio(t *testing.T) {
	kit := &Drumkit{Samples: map[int]*Sample{
		1: {Data: []int8{100, 100, 100, 100, 100, 100, 100, 100}, C4Rate: 44100},
	}}
	s := NewReferenceSampler(kit, 44100)

	s.NoteOn(notequeue.Note{Note: transport.Note{InstrumentID: 1, Velocity: 1.0}})

	outL := make([]float32, 8)
	outR := make([]float32, 8)
	if err := s.Process(8, outL, outR); err != nil {
		t.Fatalf("Process error: %v", err)
	}

	silent := true
	for _, v := range outL {
		if v != 0 {
			silent = false
		}
	}
	if silent {
		t.Error("Process produced silence after a NoteOn with a non-empty sample")
	}
}

func TestStopPlayingNotesClearsVoices(t *testing.T) {
	kit := &Drumkit{Samples: map[int]*Sample{1: {Data: []int8{1, 2, 3}, C4Rate: 44100}}}
	s := NewReferenceSampler(kit, 44100)
	s.NoteOn(notequeue.Note{Note: transport.Note{InstrumentID: 1, Velocity: 1.0}})

	s.StopPlayingNotes()

	if len(s.voices) != 0 {
		t.Errorf("voices after StopPlayingNotes = %d, want 0", len(s.voices))
	}
}

func TestNoteOnUnknownInstrumentIsNoop(t *testing.T) {
	kit := &Drumkit{Samples: map[int]*Sample{}}
	s := NewReferenceSampler(kit, 44100)
	s.NoteOn(notequeue.Note{Note: transport.Note{InstrumentID: 99, Velocity: 1.0}})
	if len(s.voices) != 0 {
		t.Errorf("voices after NoteOn with unknown instrument = %d, want 0", len(s.voices))
	}
}

func TestPanToVolumesCenterIsBalanced(t *testing.T) {
	l, r := panToVolumes(1.0, 0)
	if l != r {
		t.Errorf("panToVolumes(1.0, 0) = (%d, %d), want equal", l, r)
	}
}

func TestPanToVolumesHardLeft(t *testing.T) {
	l, r := panToVolumes(1.0, -1)
	if r != 0 {
		t.Errorf("panToVolumes hard left right gain = %d, want 0", r)
	}
	if l == 0 {
		t.Error("panToVolumes hard left left gain = 0, want non-zero")
	}
}
