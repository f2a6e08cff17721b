// Package scheduler implements updateNoteQueue: the lookahead walk
// that advances the queuing position tick by tick, materializes notes
// from the active patterns with humanize/swing/lead-lag applied, and
// pushes them onto the note queue.
package scheduler

import (
	"math"
	"math/rand"

	"github.com/beatforge/beatforge/eventqueue"
	"github.com/beatforge/beatforge/notequeue"
	"github.com/beatforge/beatforge/tickclock"
	"github.com/beatforge/beatforge/transport"
)

const (
	// leadLagTicks is the fixed per-engine lead-lag scale, in ticks.
	leadLagTicks = 5.0
	// maxHumanizeFrames bounds both the lookahead window and any single
	// note's humanize offset.
	maxHumanizeFrames = 2000.0
	// metronomeTickInterval is the pattern-tick spacing at which a
	// metronome click fires, independent of pattern resolution.
	metronomeTickInterval = 48.0
)

// UpdateNoteQueue result codes: resultEndOfSong is returned when the
// queuing position has run past the end of a non-looping song.
const (
	resultOK           = 0
	resultEndOfSong    = -1
	resultInconsistent = -2
)

// Scheduler owns the queuing-side lookahead walk. It does not own the
// audible position or the process callback; those belong to the
// engine package, which calls UpdateNoteQueue once per buffer.
type Scheduler struct {
	SampleRate float64
	Resolution float64

	Audible *transport.Position
	Queuing *transport.Position

	Queue *notequeue.Queue
	Song  *transport.Song

	// SongLookup is non-nil in song mode; nil means pattern mode, where
	// Patterns below names the single playing pattern set directly.
	SongLookup transport.SongLookup

	// Patterns maps a pattern ID to its definition, used to resolve
	// Queuing.PlayingPatterns each tick.
	Patterns map[int]*transport.Pattern
	// Instruments maps an instrument ID to its handle.
	Instruments map[int]*transport.Instrument

	// Timeline is the song's tempo map, or nil for constant tempo.
	Timeline *tickclock.Timeline

	// UseMetronome gates whether the metronome note is actually
	// enqueued to the sampler; the metronome event is always raised.
	UseMetronome          bool
	MetronomeInstrumentID int

	// IsLoopFinishing reports whether the song's loop mode is
	// "Finishing" (out-of-scope loop-mode state machine; supplied by
	// the engine). A nil func means loop mode is never Finishing.
	IsLoopFinishing func() bool

	Events *eventqueue.Queue

	Rng *rand.Rand

	lastLeadLagFactor float64
	leadLagValid      bool
	lookaheadApplied  bool
	fLastTickEnd      float64
}

// New returns a Scheduler with its own random source, seeded
// deterministically unless the caller replaces Rng afterward.
func New(sampleRate, resolution float64) *Scheduler {
	return &Scheduler{
		SampleRate: sampleRate,
		Resolution: resolution,
		Rng:        rand.New(rand.NewSource(1)),
	}
}

// InvalidateLeadLagFactor forces the next UpdateNoteQueue call to
// recompute lastLeadLagFactor instead of reusing the cached value. The
// engine calls this once a tick-size change has been acknowledged by
// updateBpmAndTickSize: keeping the cached factor until then avoids
// ±1-frame jitter that would otherwise create gaps or overlaps in tick
// coverage mid-window.
func (s *Scheduler) InvalidateLeadLagFactor() { s.leadLagValid = false }

// currentTick returns the Queuing position's tick, the reference point
// lead-lag frames are measured from.
func (s *Scheduler) currentTick() float64 { return s.Queuing.Tick }

func (s *Scheduler) frameForTick(tick float64) (tickclock.Result, error) {
	return tickclock.FrameForTick(tick, s.Timeline, s.Queuing.Bpm, s.Resolution, s.SampleRate)
}

func (s *Scheduler) tickForFrame(frame int64) (tickclock.Result, error) {
	return tickclock.TickForFrame(frame, s.Timeline, s.Queuing.Bpm, s.Resolution, s.SampleRate)
}

// FrameForTickPublic exposes frameForTick for the engine package's
// songsize reshaping, which needs to recompute a note's absolute frame
// after its tick position shifts under a song-size edit.
func (s *Scheduler) FrameForTickPublic(tick float64) (int64, error) {
	res, err := s.frameForTick(tick)
	if err != nil {
		return 0, err
	}
	return res.Frame, nil
}

// TickForFramePublic exposes tickForFrame for the engine package's
// incrementTransportPosition, which derives the audible tick from the
// newly advanced audible frame each cycle.
func (s *Scheduler) TickForFramePublic(frame int64) (tickclock.Result, error) {
	return s.tickForFrame(frame)
}

// leadLagFrames returns the frame span of leadLagTicks at the current
// tempo, cached until InvalidateLeadLagFactor is called.
func (s *Scheduler) leadLagFrames() (float64, error) {
	if s.leadLagValid {
		return s.lastLeadLagFactor, nil
	}
	tick := s.currentTick()
	start, err := s.frameForTick(tick)
	if err != nil {
		return 0, err
	}
	end, err := s.frameForTick(tick + leadLagTicks)
	if err != nil {
		return 0, err
	}
	s.lastLeadLagFactor = float64(end.Frame - start.Frame)
	s.leadLagValid = true
	return s.lastLeadLagFactor, nil
}

// UpdateNoteQueue advances the queuing position by the lookahead
// window plus nIntervalLengthInFrames frames, materializing and
// enqueuing notes along the way. playingOrTesting should reflect
// whether the engine state is Playing or Testing; realtimeFrame is
// the monotonic realtime-input frame counter used while stopped.
// Returns resultOK, resultEndOfSong or resultInconsistent.
func (s *Scheduler) UpdateNoteQueue(nIntervalLengthInFrames int64, playingOrTesting bool, realtimeFrame int64) (int, error) {
	tickStart, tickEnd, err := s.computeTickWindow(nIntervalLengthInFrames, playingOrTesting, realtimeFrame)
	if err != nil {
		return resultInconsistent, err
	}

	if err := s.drainMidiFIFO(tickEnd); err != nil {
		return resultInconsistent, err
	}

	if !playingOrTesting {
		s.lookaheadApplied = true
		s.fLastTickEnd = tickEnd
		return resultOK, nil
	}

	for n := math.Floor(tickStart); n < math.Floor(tickEnd); n++ {
		endOfSong, err := s.advanceQueuingTick(n)
		if err != nil {
			return resultInconsistent, err
		}
		if endOfSong {
			return resultEndOfSong, nil
		}

		s.injectMetronome(n)

		if err := s.materializePatternNotes(n); err != nil {
			return resultInconsistent, err
		}
	}

	s.lookaheadApplied = true
	s.fLastTickEnd = tickEnd
	return resultOK, nil
}

// computeTickWindow derives [tickStart, tickEnd) from the current
// frame, the cached lead-lag factor and the humanize bound, joining
// seamlessly with the previous cycle's window once lookahead has been
// applied once.
func (s *Scheduler) computeTickWindow(nFrames int64, playingOrTesting bool, realtimeFrame int64) (float64, float64, error) {
	frameStart := realtimeFrame
	if playingOrTesting {
		frameStart = s.Audible.Frame
	}

	leadLag, err := s.leadLagFrames()
	if err != nil {
		return 0, 0, err
	}
	lookahead := leadLag + maxHumanizeFrames + 1

	frameEnd := float64(frameStart) + lookahead + float64(nFrames)
	fFrameStart := float64(frameStart)
	if s.lookaheadApplied {
		fFrameStart += lookahead
	}

	startRes, err := s.tickForFrame(int64(fFrameStart))
	if err != nil {
		return 0, 0, err
	}
	endRes, err := s.tickForFrame(int64(frameEnd))
	if err != nil {
		return 0, 0, err
	}

	tickStart := startRes.Tick - s.Queuing.TickOffsetQueuing
	tickEnd := endRes.Tick - s.Queuing.TickOffsetQueuing
	return tickStart, tickEnd, nil
}

// drainMidiFIFO moves every MIDI note due at or before tickEnd into
// the scheduled heap with its absolute noteStart computed.
func (s *Scheduler) drainMidiFIFO(tickEnd float64) error {
	limit := math.Floor(tickEnd)
	for {
		n, ok := s.Queue.PeekMidi()
		if !ok || n.Position > limit {
			break
		}
		s.Queue.PopMidi()

		res, err := s.frameForTick(n.Position)
		if err != nil {
			return err
		}
		n.NoteStart = res.Frame
		s.Queuing.TickMismatch = res.TickMismatch
		s.Queue.PushScheduled(n)
	}
	return nil
}

// advanceQueuingTick advances the queuing position by one tick and
// reports whether this is the end of the song.
func (s *Scheduler) advanceQueuingTick(n float64) (bool, error) {
	if s.SongLookup == nil {
		transport.UpdatePatternTransportPosition(s.Queuing, n)
		return false, nil
	}

	prevColumn := s.Queuing.Column
	transport.UpdateSongTransportPosition(s.Queuing, n, s.SongLookup)
	if s.Queuing.Column == -1 {
		return true, nil
	}
	if s.IsLoopFinishing != nil && s.IsLoopFinishing() && s.Queuing.Column < prevColumn && s.Audible != nil && s.Queuing.Column <= s.Audible.Column {
		return true, nil
	}
	return false, nil
}

// injectMetronome raises the metronome event every
// metronomeTickInterval pattern ticks and, when enabled, enqueues the
// click note itself.
func (s *Scheduler) injectMetronome(n float64) {
	if math.Mod(s.Queuing.PatternTickPosition, metronomeTickInterval) != 0 {
		return
	}

	downbeat := s.Queuing.PatternTickPosition == 0
	pitch := 0.0
	velocity := 0.8
	if downbeat {
		pitch = 3
		velocity = 1.0
	}

	if s.Events != nil {
		s.Events.Publish(eventqueue.Event{Kind: eventqueue.EventMetronome, BoolValue: downbeat, FloatValue: velocity})
	}

	if !s.UseMetronome {
		return
	}
	inst := s.Instruments[s.MetronomeInstrumentID]
	res, err := s.frameForTick(n)
	if err != nil {
		return
	}
	s.Queuing.TickMismatch = res.TickMismatch

	note := notequeue.Note{
		Instrument: inst,
		Position:   n,
		NoteStart:  res.Frame,
	}
	note.Pitch = pitch
	note.Velocity = velocity
	note.InstrumentID = s.MetronomeInstrumentID
	if inst != nil {
		inst.Enqueue()
	}
	s.Queue.PushScheduled(note)
}
