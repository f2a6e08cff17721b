// Package engine implements the state machine and process callback
// that drive TransportPosition, NoteQueue and Scheduler from the audio
// thread, and the public control-plane entry points
// (play/stop/locate/setSong) that mutate state from any other thread
// under the engine lock.
package engine

import (
	"time"

	"github.com/beatforge/beatforge/eventqueue"
	"github.com/beatforge/beatforge/fx"
	"github.com/beatforge/beatforge/notequeue"
	"github.com/beatforge/beatforge/render"
	"github.com/beatforge/beatforge/scheduler"
	"github.com/beatforge/beatforge/transport"
)

// audioOwner is the LockToken the process callback locks and unlocks
// with. It never changes identity across the Engine's lifetime, so a
// reentrant call from within the audio thread (there is none today,
// but the lock design allows for it) is recognized as the same owner.
var audioOwner = NewLockToken()

// Engine wires together the transport positions, note queues,
// scheduler, driver and renderer boundaries into one lifecycle.
type Engine struct {
	lock *RecursiveTimedMutex

	state State

	hasNextState bool
	nextState    State

	hasNextBpm bool
	nextBpm    float64

	Audible *transport.Position
	Queuing *transport.Position

	Queue     *notequeue.Queue
	Scheduler *scheduler.Scheduler
	Events    *eventqueue.Queue

	Driver  DriverAdapter
	Sampler render.Sampler
	Synth   render.Synth
	FX      fx.Chain

	Song       *transport.Song
	SongLookup transport.SongLookup

	SampleRate float64
	Resolution float64

	realtimeFrame   int64
	lastProcessTime time.Duration
	maxProcessTime  time.Duration

	MasterPeakL, MasterPeakR float32

	// SelectedInstrumentID is the instrument realtime MIDI notes route
	// to when playSelectedInstrument is configured. Set by the host UI.
	SelectedInstrumentID int
}

// New returns an Initialized Engine.
func New(sampleRate, resolution float64) *Engine {
	audible := transport.NewPosition(transport.LabelAudible)
	queuing := transport.NewPosition(transport.LabelQueuing)
	queue := notequeue.New()
	events := eventqueue.New(eventqueue.DefaultCapacity)

	sched := scheduler.New(sampleRate, resolution)
	sched.Audible = audible
	sched.Queuing = queuing
	sched.Queue = queue
	sched.Events = events

	return &Engine{
		lock:       NewRecursiveTimedMutex(),
		state:      StateInitialized,
		Audible:    audible,
		Queuing:    queuing,
		Queue:      queue,
		Scheduler:  sched,
		Events:     events,
		SampleRate: sampleRate,
		Resolution: resolution,
	}
}

// State reports the engine's current lifecycle state under the lock.
func (e *Engine) State() State {
	e.lock.Lock(audioOwner)
	defer e.lock.Unlock(audioOwner)
	return e.state
}

// logStateRuleViolation publishes and records an attempted transition
// that is illegal in the current state: logged, but never mutates state.
func (e *Engine) logStateRuleViolation(attempted string) {
	Log.Warnw("state rule violation", "attempted", attempted, "state", e.state)
	e.Events.Publish(eventqueue.Event{
		Kind:     eventqueue.EventError,
		IntValue: int(StateRuleViolation),
		StrValue: attempted,
	})
}

// StartAudioDrivers implements the Initialized → Prepared/Ready
// transition: connects the configured driver and moves to Prepared if
// no song is set yet, or Ready if one already is.
func (e *Engine) StartAudioDrivers(driver DriverAdapter, bufferSize int) error {
	e.lock.Lock(audioOwner)
	defer e.lock.Unlock(audioOwner)

	if e.state != StateInitialized {
		e.logStateRuleViolation("startAudioDrivers")
		return NewError(StateRuleViolation, nil)
	}

	if err := driver.Init(bufferSize); err != nil {
		Log.Errorw("driver init failed", "error", err)
		e.Events.Publish(eventqueue.Event{Kind: eventqueue.EventError, IntValue: int(DriverInitFailure), Err: err})
		return NewError(DriverInitFailure, err)
	}
	if err := driver.Connect(); err != nil {
		Log.Errorw("driver connect failed", "error", err)
		e.Events.Publish(eventqueue.Event{Kind: eventqueue.EventError, IntValue: int(DriverConnectFailure), Err: err})
		return NewError(DriverConnectFailure, err)
	}

	e.Driver = driver
	e.SampleRate = driver.SampleRate()
	e.Scheduler.SampleRate = e.SampleRate

	if e.Song != nil {
		e.setState(StateReady)
	} else {
		e.setState(StatePrepared)
	}
	e.Events.Publish(eventqueue.Event{Kind: eventqueue.EventDriverChanged})
	return nil
}

// StopAudioDrivers implements the "any → Initialized" transition.
func (e *Engine) StopAudioDrivers() {
	e.lock.Lock(audioOwner)
	defer e.lock.Unlock(audioOwner)

	if e.Driver != nil {
		e.Driver.Disconnect()
		e.Driver = nil
	}
	e.setState(StateInitialized)
}

// SetSong implements Prepared → Ready.
func (e *Engine) SetSong(song *transport.Song, lookup transport.SongLookup) error {
	e.lock.Lock(audioOwner)
	defer e.lock.Unlock(audioOwner)

	if e.state != StatePrepared && e.state != StateReady {
		e.logStateRuleViolation("setSong")
		return NewError(StateRuleViolation, nil)
	}

	e.Song = song
	e.SongLookup = lookup
	e.Scheduler.Song = song
	e.Scheduler.SongLookup = lookup
	e.Queue.Clear()
	e.Audible.Reset()
	e.Queuing.Reset()
	e.setState(StateReady)
	return nil
}

// RemoveSong implements Ready → Prepared.
func (e *Engine) RemoveSong() error {
	e.lock.Lock(audioOwner)
	defer e.lock.Unlock(audioOwner)

	if e.state != StateReady {
		e.logStateRuleViolation("removeSong")
		return NewError(StateRuleViolation, nil)
	}

	e.Song = nil
	e.SongLookup = nil
	e.Scheduler.Song = nil
	e.Scheduler.SongLookup = nil
	e.Queue.Clear()
	e.setState(StatePrepared)
	return nil
}

// Play requests the Ready → Playing transition. play/stop never mutate
// state directly; they latch nextState for the process callback to
// apply at the top of its next cycle, so state changes always occur
// on the audio thread.
func (e *Engine) Play() error {
	e.lock.Lock(audioOwner)
	defer e.lock.Unlock(audioOwner)

	if e.state != StateReady {
		e.logStateRuleViolation("play")
		return NewError(StateRuleViolation, nil)
	}
	e.hasNextState = true
	e.nextState = StatePlaying
	return nil
}

// Stop requests the Playing → Ready transition.
func (e *Engine) Stop() error {
	e.lock.Lock(audioOwner)
	defer e.lock.Unlock(audioOwner)

	if e.state != StatePlaying && e.state != StateTesting {
		e.logStateRuleViolation("stop")
		return NewError(StateRuleViolation, nil)
	}
	e.hasNextState = true
	e.nextState = StateReady
	return nil
}

// Locate relocates both positions to frame 0 and re-derives tick/column
// from the song lookup (if any). It never changes state.
func (e *Engine) Locate(frame int64) {
	e.lock.Lock(audioOwner)
	defer e.lock.Unlock(audioOwner)
	e.locateLocked(frame)
}

func (e *Engine) locateLocked(frame int64) {
	e.Audible.Frame = frame
	e.Queuing.Frame = frame
	e.Audible.Tick = 0
	e.Queuing.Tick = 0
	e.Audible.Column = 0
	e.Queuing.Column = 0
	e.Scheduler.InvalidateLeadLagFactor()
	e.Queue.Clear()
	if e.Sampler != nil {
		e.Sampler.StopPlayingNotes()
	}
	e.Events.Publish(eventqueue.Event{Kind: eventqueue.EventRelocation, IntValue: int(frame)})
}

// RunTests implements Ready/Playing → Testing → prior, running fn
// while in the Testing state and restoring the prior state afterward.
func (e *Engine) RunTests(fn func()) error {
	e.lock.Lock(audioOwner)
	prior := e.state
	if prior != StateReady && prior != StatePlaying {
		e.logStateRuleViolation("runTests")
		e.lock.Unlock(audioOwner)
		return NewError(StateRuleViolation, nil)
	}
	e.setState(StateTesting)
	e.lock.Unlock(audioOwner)

	fn()

	e.lock.Lock(audioOwner)
	e.setState(prior)
	e.lock.Unlock(audioOwner)
	return nil
}

// setState mutates e.state and publishes EventStateChanged. Callers
// must hold the lock.
func (e *Engine) setState(s State) {
	if e.state == s {
		return
	}
	e.state = s
	e.Events.Publish(eventqueue.Event{Kind: eventqueue.EventStateChanged, IntValue: int(s)})
}

// SetNextBpm requests a tempo change, subject to the priority chain in
// updateBpmAndTickSize: it only takes effect once no higher-priority
// source (external master, Timeline marker) is active.
func (e *Engine) SetNextBpm(bpm float64) {
	e.lock.Lock(audioOwner)
	defer e.lock.Unlock(audioOwner)
	e.setNextBpmLocked(bpm)
}

// PushMidiNote enqueues a realtime-injected note under the engine
// lock, the path realtime MIDI input is allowed to take without going
// through the control-plane state machine, and publishes a
// midi-activity event for it. Position is stamped from the current
// audible tick, read under the same lock, so the caller never has to
// read transport state unlocked.
func (e *Engine) PushMidiNote(note notequeue.Note) {
	e.lock.Lock(audioOwner)
	defer e.lock.Unlock(audioOwner)
	note.Position = e.Audible.Tick
	e.Queue.PushMidi(note)
	e.Events.Publish(eventqueue.Event{Kind: eventqueue.EventMidiActivity})
}
