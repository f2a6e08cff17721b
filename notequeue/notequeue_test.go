package notequeue

import (
	"testing"

	"github.com/beatforge/beatforge/transport"
)

func TestPopScheduledOrdersByNoteStart(t *testing.T) {
	q := New()
	q.PushScheduled(Note{NoteStart: 300})
	q.PushScheduled(Note{NoteStart: 100})
	q.PushScheduled(Note{NoteStart: 200})

	var got []int64
	for {
		n, ok := q.PopScheduled()
		if !ok {
			break
		}
		got = append(got, n.NoteStart)
	}

	want := []int64{100, 200, 300}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestPopScheduledTiesAreFIFO(t *testing.T) {
	q := New()
	q.PushScheduled(Note{NoteStart: 100, Position: 1})
	q.PushScheduled(Note{NoteStart: 100, Position: 2})
	q.PushScheduled(Note{NoteStart: 100, Position: 3})

	for _, wantPos := range []float64{1, 2, 3} {
		n, ok := q.PopScheduled()
		if !ok {
			t.Fatalf("PopScheduled returned false, want a note at Position %g", wantPos)
		}
		if n.Position != wantPos {
			t.Errorf("tie-break order: got Position %g, want %g", n.Position, wantPos)
		}
	}
}

func TestPeekScheduledDoesNotRemove(t *testing.T) {
	q := New()
	q.PushScheduled(Note{NoteStart: 50})

	if _, ok := q.PeekScheduled(); !ok {
		t.Fatal("PeekScheduled returned false on non-empty heap")
	}
	if q.ScheduledLen() != 1 {
		t.Errorf("ScheduledLen after Peek = %d, want 1", q.ScheduledLen())
	}
}

func TestMidiFIFOOrder(t *testing.T) {
	q := New()
	q.PushMidi(Note{Position: 1})
	q.PushMidi(Note{Position: 2})

	n, ok := q.PopMidi()
	if !ok || n.Position != 1 {
		t.Errorf("PopMidi = (%v, %v), want (Position=1, true)", n, ok)
	}
	n, ok = q.PopMidi()
	if !ok || n.Position != 2 {
		t.Errorf("PopMidi = (%v, %v), want (Position=2, true)", n, ok)
	}
	if _, ok = q.PopMidi(); ok {
		t.Error("PopMidi on empty FIFO returned true")
	}
}

func TestClearBalancesInstrumentRefCounts(t *testing.T) {
	inst := &transport.Instrument{ID: 1}
	inst.Enqueue()
	inst.Enqueue()

	q := New()
	q.PushScheduled(Note{Instrument: inst})
	q.PushMidi(Note{Instrument: inst})

	q.Clear()

	if got := inst.RefCount(); got != 0 {
		t.Errorf("RefCount after Clear = %d, want 0", got)
	}
	if q.ScheduledLen() != 0 || q.MidiLen() != 0 {
		t.Errorf("queue not empty after Clear: scheduled=%d midi=%d", q.ScheduledLen(), q.MidiLen())
	}
}
