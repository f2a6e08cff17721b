package engine

import (
	"testing"

	"github.com/beatforge/beatforge/eventqueue"
	"github.com/beatforge/beatforge/notequeue"
	"github.com/beatforge/beatforge/transport"
)

func scheduledNoteAt(position float64, noteStart int64) notequeue.Note {
	return notequeue.Note{Position: position, NoteStart: noteStart}
}

// fakeLookup is a minimal transport.SongLookup for song-size tests:
// each column starts at columnTicks*column and has one pattern unless
// it's past lastColumn.
type fakeLookup struct {
	columnTicks float64
	lastColumn  int
	looping     bool
}

func (f *fakeLookup) PatternsAtColumn(column int) ([]int, bool) {
	if column < 0 || column > f.lastColumn {
		return nil, false
	}
	return []int{column}, true
}

func (f *fakeLookup) TickForColumn(column int) float64 {
	return float64(column) * f.columnTicks
}

func (f *fakeLookup) PatternLength(idx int) float64 { return f.columnTicks }

func (f *fakeLookup) IsLooping() bool { return f.looping }

func readyEngineWithSong(t *testing.T, lookup transport.SongLookup) *Engine {
	t.Helper()
	e := readyEngine(t)
	e.SongLookup = lookup
	e.Scheduler.SongLookup = lookup
	return e
}

func TestUpdateSongSizeFirstCallJustStoresLookup(t *testing.T) {
	e := readyEngine(t)
	lookup := &fakeLookup{columnTicks: 192, lastColumn: 3}

	if err := e.UpdateSongSize(0, 4*192, lookup); err != nil {
		t.Fatalf("UpdateSongSize error: %v", err)
	}
	if e.SongLookup != lookup {
		t.Error("SongLookup not stored on first call")
	}
}

func TestUpdateSongSizeShiftsTickByColumnStartDelta(t *testing.T) {
	oldLookup := &fakeLookup{columnTicks: 192, lastColumn: 3}
	e := readyEngineWithSong(t, oldLookup)

	e.Audible.Column = 1
	e.Audible.Tick = 192 + 10 // 10 ticks into column 1
	e.Audible.TickSize = 10
	e.Queuing.Column = 1
	e.Queuing.Tick = 192 + 10
	e.Queuing.TickSize = 10
	e.Queuing.Bpm = 120

	newLookup := &fakeLookup{columnTicks: 256, lastColumn: 3}
	if err := e.UpdateSongSize(4*192, 4*256, newLookup); err != nil {
		t.Fatalf("UpdateSongSize error: %v", err)
	}

	wantTick := 256.0 + 10 // column 1 now starts at 256, same pattern-relative offset
	if e.Audible.Tick != wantTick {
		t.Errorf("Audible.Tick = %g, want %g", e.Audible.Tick, wantTick)
	}
	if e.SongLookup != newLookup {
		t.Error("SongLookup not updated")
	}
}

func TestUpdateSongSizeNotifiesSampler(t *testing.T) {
	oldLookup := &fakeLookup{columnTicks: 192, lastColumn: 3}
	e := readyEngineWithSong(t, oldLookup)
	sampler := &fakeSampler{}
	e.Sampler = sampler

	e.Audible.Column = 1
	e.Audible.Tick = 192 + 10
	e.Queuing.Column = 1
	e.Queuing.Tick = 192 + 10
	e.Queuing.Bpm = 120

	newLookup := &fakeLookup{columnTicks: 256, lastColumn: 3}
	if err := e.UpdateSongSize(4*192, 4*256, newLookup); err != nil {
		t.Fatalf("UpdateSongSize error: %v", err)
	}
	if sampler.songSizeChanges != 1 {
		t.Errorf("sampler.HandleSongSizeChange called %d times, want 1", sampler.songSizeChanges)
	}
}

func TestUpdateSongSizeToleratesNilSampler(t *testing.T) {
	oldLookup := &fakeLookup{columnTicks: 192, lastColumn: 3}
	e := readyEngineWithSong(t, oldLookup)
	e.Audible.Column = 1
	e.Audible.Tick = 192 + 10
	e.Queuing.Column = 1
	e.Queuing.Tick = 192 + 10
	e.Queuing.Bpm = 120

	newLookup := &fakeLookup{columnTicks: 256, lastColumn: 3}
	if err := e.UpdateSongSize(4*192, 4*256, newLookup); err != nil {
		t.Fatalf("UpdateSongSize error: %v", err)
	}
}

func TestUpdateSongSizeAccumulatesTickOffsetSongSize(t *testing.T) {
	oldLookup := &fakeLookup{columnTicks: 192, lastColumn: 3}
	e := readyEngineWithSong(t, oldLookup)
	e.Audible.Column = 2
	e.Audible.Tick = 2 * 192
	e.Audible.TickSize = 10
	e.Queuing.Column = 2
	e.Queuing.Tick = 2 * 192
	e.Queuing.TickSize = 10
	e.Queuing.Bpm = 120

	newLookup := &fakeLookup{columnTicks: 96, lastColumn: 3}
	if err := e.UpdateSongSize(4*192, 4*96, newLookup); err != nil {
		t.Fatalf("UpdateSongSize error: %v", err)
	}

	if e.Audible.TickOffsetSongSize == 0 {
		t.Error("TickOffsetSongSize was not accumulated despite a pattern-start shift")
	}
}

func TestUpdateSongSizeEndOfSongStopsAndLocatesWhenNotLooping(t *testing.T) {
	oldLookup := &fakeLookup{columnTicks: 192, lastColumn: 3}
	e := readyEngineWithSong(t, oldLookup)
	if err := e.Play(); err != nil {
		t.Fatalf("Play error: %v", err)
	}
	e.state = StatePlaying // simulate the process callback having applied nextState

	e.Audible.Column = 3
	e.Audible.Tick = 3 * 192
	e.Queuing.Column = 3
	e.Queuing.Tick = 3 * 192

	// The edited song no longer has a column 3: lastColumn drops to 1.
	newLookup := &fakeLookup{columnTicks: 192, lastColumn: 1, looping: false}
	if err := e.UpdateSongSize(4*192, 2*192, newLookup); err != nil {
		t.Fatalf("UpdateSongSize error: %v", err)
	}

	if e.nextState != StateReady || !e.hasNextState {
		t.Error("UpdateSongSize did not request a stop at end-of-song")
	}
	if e.Audible.Frame != 0 || e.Audible.Tick != 0 {
		t.Errorf("Audible position after end-of-song relocate = %+v, want zeroed", e.Audible)
	}
}

func TestUpdateSongSizeWrapsToColumnZeroWhenLooping(t *testing.T) {
	oldLookup := &fakeLookup{columnTicks: 192, lastColumn: 3}
	e := readyEngineWithSong(t, oldLookup)
	e.Audible.Column = 3
	e.Audible.Tick = 3 * 192
	e.Queuing.Column = 3
	e.Queuing.Tick = 3 * 192

	newLookup := &fakeLookup{columnTicks: 192, lastColumn: 1, looping: true}
	if err := e.UpdateSongSize(4*192, 2*192, newLookup); err != nil {
		t.Fatalf("UpdateSongSize error: %v", err)
	}
	if e.Audible.Column != 0 {
		t.Errorf("Audible.Column = %d, want 0 after wrapping a looping song", e.Audible.Column)
	}
}

func TestUpdateSongSizeShiftsInFlightNoteQueueOnce(t *testing.T) {
	oldLookup := &fakeLookup{columnTicks: 192, lastColumn: 3}
	e := readyEngineWithSong(t, oldLookup)
	e.Audible.Column = 1
	e.Audible.Tick = 192
	e.Audible.TickSize = 10
	e.Queuing.Column = 1
	e.Queuing.Tick = 192
	e.Queuing.TickSize = 10
	e.Queuing.Bpm = 120
	e.Queue.PushScheduled(scheduledNoteAt(192, 1920))

	newLookup := &fakeLookup{columnTicks: 256, lastColumn: 3}
	if err := e.UpdateSongSize(4*192, 4*256, newLookup); err != nil {
		t.Fatalf("UpdateSongSize error: %v", err)
	}

	n, ok := e.Queue.PeekScheduled()
	if !ok {
		t.Fatal("queued note vanished after UpdateSongSize")
	}
	if n.Position == 192 {
		t.Error("queued note's Position was not shifted by the song-size edit")
	}
}

func TestUpdateSongSizePublishesSongSizeChanged(t *testing.T) {
	oldLookup := &fakeLookup{columnTicks: 192, lastColumn: 3}
	e := readyEngineWithSong(t, oldLookup)
	drainEvents(e)

	newLookup := &fakeLookup{columnTicks: 192, lastColumn: 3}
	if err := e.UpdateSongSize(4*192, 4*192, newLookup); err != nil {
		t.Fatalf("UpdateSongSize error: %v", err)
	}

	found := false
	for {
		select {
		case ev := <-e.Events.Events():
			if ev.Kind == eventqueue.EventSongSizeChanged {
				found = true
			}
			continue
		default:
		}
		break
	}
	if !found {
		t.Error("expected an EventSongSizeChanged")
	}
}
