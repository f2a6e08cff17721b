package scheduler

import (
	"math/rand"
	"testing"

	"github.com/beatforge/beatforge/eventqueue"
	"github.com/beatforge/beatforge/notequeue"
	"github.com/beatforge/beatforge/transport"
)

func newTestScheduler() *Scheduler {
	s := New(48000, 48)
	s.Audible = transport.NewPosition(transport.LabelAudible)
	s.Queuing = transport.NewPosition(transport.LabelQueuing)
	s.Queuing.Bpm = 120
	s.Audible.Bpm = 120
	s.Queue = notequeue.New()
	s.Song = &transport.Song{}
	s.Instruments = map[int]*transport.Instrument{}
	s.Patterns = map[int]*transport.Pattern{}
	s.Events = eventqueue.New(64)
	s.Rng = rand.New(rand.NewSource(42))
	return s
}

func TestLeadLagFramesCachedUntilInvalidated(t *testing.T) {
	s := newTestScheduler()

	first, err := s.leadLagFrames()
	if err != nil {
		t.Fatalf("leadLagFrames error: %v", err)
	}

	s.Queuing.Bpm = 60 // would change the computed value if recomputed
	cached, err := s.leadLagFrames()
	if err != nil {
		t.Fatalf("leadLagFrames error: %v", err)
	}
	if cached != first {
		t.Errorf("leadLagFrames changed before invalidation: got %g, want cached %g", cached, first)
	}

	s.InvalidateLeadLagFactor()
	recomputed, err := s.leadLagFrames()
	if err != nil {
		t.Fatalf("leadLagFrames error: %v", err)
	}
	if recomputed == first {
		t.Errorf("leadLagFrames did not change after invalidation and bpm change")
	}
}

func TestInjectMetronomeDownbeat(t *testing.T) {
	s := newTestScheduler()
	s.UseMetronome = true
	s.MetronomeInstrumentID = 9
	metronome := &transport.Instrument{ID: 9}
	s.Instruments[9] = metronome

	s.Queuing.PatternTickPosition = 0
	s.injectMetronome(0)

	n, ok := s.Queue.PopScheduled()
	if !ok {
		t.Fatal("downbeat metronome did not enqueue a note")
	}
	if n.Pitch != 3 || n.Velocity != 1.0 {
		t.Errorf("downbeat metronome note = {pitch:%g vel:%g}, want {3, 1.0}", n.Pitch, n.Velocity)
	}
	if metronome.RefCount() != 1 {
		t.Errorf("metronome instrument RefCount = %d, want 1", metronome.RefCount())
	}

	select {
	case ev := <-s.Events.Events():
		if ev.Kind != eventqueue.EventMetronome || !ev.BoolValue {
			t.Errorf("metronome event = %+v, want downbeat EventMetronome", ev)
		}
	default:
		t.Error("no metronome event published")
	}
}

func TestInjectMetronomeUpbeat(t *testing.T) {
	s := newTestScheduler()
	s.UseMetronome = true
	s.Queuing.PatternTickPosition = 48

	s.injectMetronome(48)

	n, ok := s.Queue.PopScheduled()
	if !ok {
		t.Fatal("upbeat metronome did not enqueue a note")
	}
	if n.Pitch != 0 || n.Velocity != 0.8 {
		t.Errorf("upbeat metronome note = {pitch:%g vel:%g}, want {0, 0.8}", n.Pitch, n.Velocity)
	}
}

func TestInjectMetronomeSkipsOffBeat(t *testing.T) {
	s := newTestScheduler()
	s.UseMetronome = true
	s.Queuing.PatternTickPosition = 10

	s.injectMetronome(10)

	if s.Queue.ScheduledLen() != 0 {
		t.Errorf("ScheduledLen = %d, want 0 for an off-beat tick", s.Queue.ScheduledLen())
	}
}

func TestInjectMetronomeEventAlwaysRaisedEvenWhenDisabled(t *testing.T) {
	s := newTestScheduler()
	s.UseMetronome = false
	s.Queuing.PatternTickPosition = 0

	s.injectMetronome(0)

	if s.Queue.ScheduledLen() != 0 {
		t.Errorf("ScheduledLen = %d, want 0 when metronome disabled", s.Queue.ScheduledLen())
	}
	select {
	case ev := <-s.Events.Events():
		if ev.Kind != eventqueue.EventMetronome {
			t.Errorf("event kind = %v, want EventMetronome", ev.Kind)
		}
	default:
		t.Error("metronome event must be raised even when not enqueued to the sampler")
	}
}

func TestSwingOffsetOnlyAppliesOnUpbeat16th(t *testing.T) {
	s := newTestScheduler()
	s.Song.SwingFactor = 0.5

	// sixteenthDivisor = 12, eighthDivisor = 24: tick 12 is an upbeat
	// 16th (multiple of 12, not of 24); tick 24 is a downbeat 8th.
	s.Queuing.PatternTickPosition = 24
	offset, err := s.swingOffset(24)
	if err != nil {
		t.Fatalf("swingOffset error: %v", err)
	}
	if offset != 0 {
		t.Errorf("swingOffset at a downbeat 8th = %g, want 0", offset)
	}

	s.Queuing.PatternTickPosition = 12
	offset, err = s.swingOffset(12)
	if err != nil {
		t.Fatalf("swingOffset error: %v", err)
	}
	if offset == 0 {
		t.Errorf("swingOffset at an upbeat 16th with swingFactor>0 = 0, want non-zero")
	}
}

func TestSwingOffsetZeroWhenFactorZero(t *testing.T) {
	s := newTestScheduler()
	s.Queuing.PatternTickPosition = 12
	offset, err := s.swingOffset(12)
	if err != nil {
		t.Fatalf("swingOffset error: %v", err)
	}
	if offset != 0 {
		t.Errorf("swingOffset with SwingFactor=0 = %g, want 0", offset)
	}
}

func TestHumanizeVelocityClamps(t *testing.T) {
	s := newTestScheduler()
	s.Song.HumanizeVelocityValue = 10 // deliberately huge to force clamping both ways

	for i := 0; i < 50; i++ {
		v := s.humanizeVelocity(0.5)
		if v < 0 || v > 1 {
			t.Fatalf("humanizeVelocity produced %g, out of [0,1]", v)
		}
	}
}

func TestRandomPitchNilInstrumentIsNoop(t *testing.T) {
	s := newTestScheduler()
	got := s.randomPitch(5, nil)
	if got != 5 {
		t.Errorf("randomPitch(5, nil) = %g, want 5", got)
	}
}

func TestMaterializePatternNotesEnqueuesAndIncrementsRefCount(t *testing.T) {
	s := newTestScheduler()
	inst := &transport.Instrument{ID: 1}
	s.Instruments[1] = inst
	s.Patterns[1] = &transport.Pattern{
		ID:            1,
		LengthInTicks: 4,
		Notes: []transport.Note{
			{InstrumentID: 1, Position: 0, Velocity: 0.9},
		},
	}
	s.Queuing.PlayingPatterns = []int{1}
	s.Queuing.PatternTickPosition = 0

	if err := s.materializePatternNotes(0); err != nil {
		t.Fatalf("materializePatternNotes error: %v", err)
	}

	n, ok := s.Queue.PopScheduled()
	if !ok {
		t.Fatal("materializePatternNotes did not enqueue the pattern note")
	}
	if n.InstrumentID != 1 {
		t.Errorf("InstrumentID = %d, want 1", n.InstrumentID)
	}
	if inst.RefCount() != 1 {
		t.Errorf("RefCount after materialize = %d, want 1", inst.RefCount())
	}
}

func TestDrainMidiFIFOMovesDueNotes(t *testing.T) {
	s := newTestScheduler()
	s.Queue.PushMidi(notequeue.Note{Position: 10})
	s.Queue.PushMidi(notequeue.Note{Position: 10000})

	if err := s.drainMidiFIFO(20); err != nil {
		t.Fatalf("drainMidiFIFO error: %v", err)
	}

	if s.Queue.ScheduledLen() != 1 {
		t.Errorf("ScheduledLen = %d, want 1 (only the due note moved)", s.Queue.ScheduledLen())
	}
	if s.Queue.MidiLen() != 1 {
		t.Errorf("MidiLen = %d, want 1 (the future note stays queued)", s.Queue.MidiLen())
	}
}

func TestUpdateNoteQueuePatternModeEnqueuesSteadyNote(t *testing.T) {
	s := newTestScheduler()
	inst := &transport.Instrument{ID: 1}
	s.Instruments[1] = inst
	s.Patterns[1] = &transport.Pattern{
		ID:            1,
		LengthInTicks: 4,
		Notes: []transport.Note{
			{InstrumentID: 1, Position: 0, Velocity: 1.0},
		},
	}
	s.Queuing.PlayingPatterns = []int{1}
	s.Queuing.PatternSize = 4

	result, err := s.UpdateNoteQueue(1024, true, 0)
	if err != nil {
		t.Fatalf("UpdateNoteQueue error: %v", err)
	}
	if result != resultOK {
		t.Fatalf("UpdateNoteQueue result = %d, want %d", result, resultOK)
	}
	if s.Queue.ScheduledLen() == 0 {
		t.Error("UpdateNoteQueue scheduled no notes over a steady-state buffer")
	}
}

func TestUpdateNoteQueueSongModeEndOfSong(t *testing.T) {
	s := newTestScheduler()
	s.SongLookup = &fixedSong{length: 4}
	s.Queuing.Column = 0

	result, err := s.UpdateNoteQueue(1024, true, 0)
	if err != nil {
		t.Fatalf("UpdateNoteQueue error: %v", err)
	}
	if result != resultEndOfSong {
		t.Errorf("UpdateNoteQueue result = %d, want resultEndOfSong (%d)", result, resultEndOfSong)
	}
}

// fixedSong is a one-column, non-looping song used to exercise the
// end-of-song path without pulling in the transport package's test
// helpers.
type fixedSong struct {
	length float64
}

func (f *fixedSong) PatternsAtColumn(column int) ([]int, bool) {
	if column != 0 {
		return nil, false
	}
	return []int{0}, true
}

func (f *fixedSong) PatternLength(idx int) float64 { return f.length }
func (f *fixedSong) TickForColumn(column int) float64 { return 0 }
func (f *fixedSong) IsLooping() bool                  { return false }
