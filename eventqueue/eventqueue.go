// Package eventqueue is the engine's lock-free MPSC event channel:
// every subsystem (scheduler, engine, midiinput, driver) publishes
// typed events here instead of returning errors across the realtime
// boundary.
package eventqueue

import "sync/atomic"

// DefaultCapacity is the buffered channel size used when callers don't
// need a custom one.
const DefaultCapacity = 256

// Kind identifies the type of an Event.
type Kind int

const (
	EventStateChanged Kind = iota
	EventTempoChanged
	EventSongSizeChanged
	EventPlayingPatternsChanged
	EventMetronome
	EventNoteOn
	EventXrun
	EventRelocation
	EventDriverChanged
	EventError
	EventMidiActivity
)

func (k Kind) String() string {
	switch k {
	case EventStateChanged:
		return "StateChanged"
	case EventTempoChanged:
		return "TempoChanged"
	case EventSongSizeChanged:
		return "SongSizeChanged"
	case EventPlayingPatternsChanged:
		return "PlayingPatternsChanged"
	case EventMetronome:
		return "Metronome"
	case EventNoteOn:
		return "NoteOn"
	case EventXrun:
		return "Xrun"
	case EventRelocation:
		return "Relocation"
	case EventDriverChanged:
		return "DriverChanged"
	case EventError:
		return "Error"
	case EventMidiActivity:
		return "MidiActivity"
	default:
		return "Unknown"
	}
}

// Event is the payload published to a Queue. Only the fields relevant
// to Kind are populated; the rest are left zero.
type Event struct {
	Kind Kind

	IntValue   int     // beat index, instrument index, driver tag, error code
	FloatValue float64 // bpm, metronome velocity
	BoolValue  bool    // downbeat flag
	StrValue   string  // driver name, error message
	Err        error
}

// Queue is a buffered-channel MPSC: any number of producers may call
// Publish concurrently; a single consumer drains via Events(). A full
// queue drops the oldest pending event rather than blocking a
// producer, since a producer may be the realtime audio thread.
type Queue struct {
	ch      chan Event
	dropped uint64
}

// New returns a Queue with the given buffered capacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{ch: make(chan Event, capacity)}
}

// Publish enqueues e, dropping the oldest queued event and counting
// the drop if the queue is full.
func (q *Queue) Publish(e Event) {
	select {
	case q.ch <- e:
		return
	default:
	}
	select {
	case <-q.ch:
		atomic.AddUint64(&q.dropped, 1)
	default:
	}
	select {
	case q.ch <- e:
	default:
		// Another producer raced us and refilled the slot; count this
		// event as dropped too rather than spin.
		atomic.AddUint64(&q.dropped, 1)
	}
}

// Events returns the receive side of the queue, for a single consumer
// goroutine to range over.
func (q *Queue) Events() <-chan Event { return q.ch }

// Dropped returns the number of events discarded because the queue
// was full when Publish was called.
func (q *Queue) Dropped() uint64 { return atomic.LoadUint64(&q.dropped) }

// Len reports how many events are currently buffered.
func (q *Queue) Len() int { return len(q.ch) }
