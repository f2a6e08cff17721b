package engine

import (
	"context"
	"time"

	"github.com/beatforge/beatforge/eventqueue"
	"github.com/beatforge/beatforge/transport"
)

// Process return codes. ProcessOK covers both the "rendered" and
// "emitted silence" outcomes; only the disk-writer's retry path gets a
// distinct code.
const (
	ProcessOK          = 0
	ProcessRetryBuffer = 2
)

// Process implements the audio thread's process callback: capture a
// timestamp, acquire the engine lock with a deadline, update tempo and
// transport state, dispatch due notes to the renderer, and advance the
// audible position. The driver calls this once per buffer.
func (e *Engine) Process(nFrames int) int {
	start := time.Now()

	if e.Driver != nil {
		e.clearBuffers(nFrames)
	}

	slackTime := e.maxProcessTime - e.lastProcessTime
	if slackTime < 0 {
		slackTime = 0
	}
	if !e.lock.TryLockFor(context.Background(), slackTime, audioOwner) {
		if r, ok := e.Driver.(RetryableDriver); ok && r.Retryable() {
			return ProcessRetryBuffer
		}
		return ProcessOK
	}
	defer e.lock.Unlock(audioOwner)

	if e.state != StateReady && e.state != StatePlaying && e.state != StateTesting {
		return ProcessOK
	}

	if clock, ok := e.Driver.(ExternalClock); ok && clock.IsExternalMaster() {
		clock.UpdateTransportPosition()
	}

	if err := e.updateBpmAndTickSize(e.Audible); err != nil {
		e.Events.Publish(eventqueue.Event{Kind: eventqueue.EventError, Err: err})
	}
	if err := e.updateBpmAndTickSize(e.Queuing); err != nil {
		e.Events.Publish(eventqueue.Event{Kind: eventqueue.EventError, Err: err})
	}

	if e.hasNextState {
		e.setState(e.nextState)
		e.hasNextState = false
	}

	if e.state == StatePlaying || e.state == StateTesting {
		e.realtimeFrame = e.Audible.Frame
	} else {
		e.realtimeFrame += int64(nFrames)
	}

	playingOrTesting := e.state == StatePlaying || e.state == StateTesting
	result, err := e.Scheduler.UpdateNoteQueue(int64(nFrames), playingOrTesting, e.realtimeFrame)
	if err != nil {
		e.Events.Publish(eventqueue.Event{Kind: eventqueue.EventError, Err: err})
	}
	if result == -1 {
		e.hasNextState = false
		e.nextState = StateReady
		e.setState(StateReady)
		e.locateLocked(0)
	}

	e.processPlayNotes(nFrames)

	outL, outR := e.outputBuffers(nFrames)
	if e.Sampler != nil {
		if err := e.Sampler.Process(nFrames, outL, outR); err != nil {
			e.Events.Publish(eventqueue.Event{Kind: eventqueue.EventError, Err: err})
		}
	}
	if e.Synth != nil {
		if err := e.Synth.Process(nFrames, outL, outR); err != nil {
			e.Events.Publish(eventqueue.Event{Kind: eventqueue.EventError, Err: err})
		}
	}

	e.runFX(outL, outR, nFrames)
	e.updatePeakMeters(outL, outR)

	if e.state == StatePlaying {
		e.incrementTransportPosition(nFrames)
	}

	e.lastProcessTime = time.Since(start)
	if e.maxProcessTime > 0 && e.lastProcessTime > e.maxProcessTime {
		e.Events.Publish(eventqueue.Event{Kind: eventqueue.EventXrun, FloatValue: e.lastProcessTime.Seconds()})
	}
	return ProcessOK
}

// clearBuffers zeros the driver's main and per-track output buffers.
func (e *Engine) clearBuffers(nFrames int) {
	for _, buf := range [][]float32{e.Driver.OutL(), e.Driver.OutR()} {
		for i := range buf {
			buf[i] = 0
		}
	}
	e.Driver.ClearPerTrackBuffers(nFrames)
}

// outputBuffers returns the buffers the sampler/synth/FX render into,
// falling back to scratch slices when no driver is attached (the
// Testing state, or unit tests exercising the Engine directly).
func (e *Engine) outputBuffers(nFrames int) ([]float32, []float32) {
	if e.Driver != nil {
		return e.Driver.OutL(), e.Driver.OutR()
	}
	return make([]float32, nFrames), make([]float32, nFrames)
}

// processPlayNotes pops every scheduled note whose noteStart is before
// currentFrame+nFrames (late notes included), drops a note whose
// probability is strictly between 0 and 1 when a uniform draw exceeds
// it, and hands survivors to the sampler.
func (e *Engine) processPlayNotes(nFrames int) {
	if e.Sampler == nil {
		return
	}
	cutoff := e.Audible.Frame + int64(nFrames)
	for {
		n, ok := e.Queue.PeekScheduled()
		if !ok || n.NoteStart >= cutoff {
			break
		}
		e.Queue.PopScheduled()

		if n.Probability > 0 && n.Probability < 1 && e.Scheduler.Rng.Float64() > n.Probability {
			if n.Instrument != nil {
				n.Instrument.Dequeue()
			}
			continue
		}

		if n.Instrument != nil && n.Instrument.StopNotes {
			off := n
			off.NoteOff = true
			e.Sampler.NoteOn(off)
		}
		e.Sampler.NoteOn(n)
		e.Events.Publish(eventqueue.Event{Kind: eventqueue.EventNoteOn, IntValue: n.InstrumentID})
		if n.Instrument != nil {
			n.Instrument.Dequeue()
		}
	}
}

// incrementTransportPosition advances the audible position's frame and
// derives its tick from the new frame.
func (e *Engine) incrementTransportPosition(nFrames int) {
	e.Audible.Frame += int64(nFrames)

	res, err := e.Scheduler.TickForFramePublic(e.Audible.Frame)
	if err != nil {
		e.Events.Publish(eventqueue.Event{Kind: eventqueue.EventError, Err: err})
		return
	}
	tick := res.Tick - e.Audible.TickOffsetQueuing - e.Audible.TickOffsetSongSize
	e.Audible.TickMismatch = res.TickMismatch

	if e.SongLookup != nil {
		transport.UpdateSongTransportPosition(e.Audible, tick, e.SongLookup)
	} else {
		transport.UpdatePatternTransportPosition(e.Audible, tick)
	}
}

// runFX feeds the rendered buffer into the configured Chain and drains
// whatever it has ready back in place.
func (e *Engine) runFX(outL, outR []float32, nFrames int) {
	if e.FX == nil {
		return
	}
	interleaved := make([]int16, nFrames*2)
	for i := 0; i < nFrames; i++ {
		interleaved[2*i] = floatToInt16(outL[i])
		interleaved[2*i+1] = floatToInt16(outR[i])
	}
	e.FX.InputSamples(interleaved)

	drained := make([]int16, nFrames*2)
	n := e.FX.GetAudio(drained)
	for i := 0; i < n/2; i++ {
		outL[i] = int16ToFloat(drained[2*i])
		outR[i] = int16ToFloat(drained[2*i+1])
	}
}

func floatToInt16(f float32) int16 {
	v := f * 32767
	if v > 32767 {
		v = 32767
	}
	if v < -32768 {
		v = -32768
	}
	return int16(v)
}

func int16ToFloat(v int16) float32 { return float32(v) / 32767 }

// updatePeakMeters tracks the loudest sample seen on each channel.
func (e *Engine) updatePeakMeters(outL, outR []float32) {
	for _, v := range outL {
		if v > e.MasterPeakL {
			e.MasterPeakL = v
		}
	}
	for _, v := range outR {
		if v > e.MasterPeakR {
			e.MasterPeakR = v
		}
	}
}
