// Package notequeue holds the scheduled-note priority queue and the
// realtime MIDI FIFO that feed the process callback's note dispatch.
package notequeue

import (
	"github.com/emirpasic/gods/trees/binaryheap"
	"github.com/gammazero/deque"

	"github.com/beatforge/beatforge/transport"
)

// Note is a note that has been materialized with an absolute schedule:
// a pattern-local transport.Note plus the fields the Scheduler and the
// process callback add once it is placed on the queue.
type Note struct {
	transport.Note

	Instrument *transport.Instrument

	// Position is the absolute tick (song or pattern-relative,
	// matching the queue's mode) this note was materialized at.
	Position float64

	HumanizeDelay float64 // frames, the swing+humanize+leadlag offset
	NoteStart     int64   // absolute frame this note should sound at

	seq uint64 // insertion sequence, breaks noteStart ties in FIFO order
}

// Queue is a min-heap of scheduled notes ordered by NoteStart (FIFO
// tie-break), plus a separate FIFO of realtime-injected MIDI notes.
type Queue struct {
	scheduled *binaryheap.Heap
	midi      deque.Deque[Note]

	nextSeq uint64
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{
		scheduled: binaryheap.NewWith(byNoteStartThenSeq),
	}
}

func byNoteStartThenSeq(a, b interface{}) int {
	na, nb := a.(Note), b.(Note)
	switch {
	case na.NoteStart < nb.NoteStart:
		return -1
	case na.NoteStart > nb.NoteStart:
		return 1
	case na.seq < nb.seq:
		return -1
	case na.seq > nb.seq:
		return 1
	default:
		return 0
	}
}

// PushScheduled inserts note into the scheduled heap by NoteStart.
func (q *Queue) PushScheduled(note Note) {
	note.seq = q.nextSeq
	q.nextSeq++
	q.scheduled.Push(note)
}

// PeekScheduled returns the note with the smallest NoteStart without
// removing it, and whether the heap was non-empty.
func (q *Queue) PeekScheduled() (Note, bool) {
	v, ok := q.scheduled.Peek()
	if !ok {
		return Note{}, false
	}
	return v.(Note), true
}

// PopScheduled removes and returns the note with the smallest
// NoteStart, ties broken in FIFO insertion order.
func (q *Queue) PopScheduled() (Note, bool) {
	v, ok := q.scheduled.Pop()
	if !ok {
		return Note{}, false
	}
	return v.(Note), true
}

// ScheduledLen reports how many notes are waiting on the scheduled
// heap.
func (q *Queue) ScheduledLen() int { return q.scheduled.Size() }

// PushMidi appends note to the realtime MIDI FIFO. Safe to call from a
// realtime input path while the engine lock is held.
func (q *Queue) PushMidi(note Note) { q.midi.PushBack(note) }

// PeekMidi returns the oldest MIDI note without removing it.
func (q *Queue) PeekMidi() (Note, bool) {
	if q.midi.Len() == 0 {
		return Note{}, false
	}
	return q.midi.Front(), true
}

// PopMidi removes and returns the oldest MIDI note.
func (q *Queue) PopMidi() (Note, bool) {
	if q.midi.Len() == 0 {
		return Note{}, false
	}
	return q.midi.PopFront(), true
}

// MidiLen reports how many notes are waiting on the MIDI FIFO.
func (q *Queue) MidiLen() int { return q.midi.Len() }

// ShiftSongSize walks every note currently on the scheduled heap,
// shifting its Position by deltaTicks and recomputing NoteStart via
// frameForTick, for a song edit mid-playback. It rebuilds the heap
// since the comparator only orders by NoteStart, which changes here.
func (q *Queue) ShiftSongSize(deltaTicks float64, frameForTick func(tick float64) (int64, error)) error {
	var notes []Note
	for {
		n, ok := q.PopScheduled()
		if !ok {
			break
		}
		n.Position += deltaTicks
		frame, err := frameForTick(n.Position)
		if err != nil {
			return err
		}
		n.NoteStart = frame
		notes = append(notes, n)
	}
	for _, n := range notes {
		q.scheduled.Push(n)
	}
	return nil
}

// Clear drops every note in both the scheduled heap and the MIDI FIFO,
// calling Dequeue on each note's instrument to balance the reference
// count the note's Enqueue call raised.
func (q *Queue) Clear() {
	for {
		n, ok := q.PopScheduled()
		if !ok {
			break
		}
		if n.Instrument != nil {
			n.Instrument.Dequeue()
		}
	}
	for q.midi.Len() > 0 {
		n := q.midi.PopFront()
		if n.Instrument != nil {
			n.Instrument.Dequeue()
		}
	}
}
