package engine

import (
	"github.com/beatforge/beatforge/eventqueue"
	"github.com/beatforge/beatforge/tickclock"
	"github.com/beatforge/beatforge/transport"
)

// MinBpm and MaxBpm bound setNextBpm's input.
const (
	MinBpm = 1.0
	MaxBpm = 400.0
)

// setNextBpmLocked clamps bpm to [MinBpm, MaxBpm], warning when the
// caller's input was out of range.
func (e *Engine) setNextBpmLocked(bpm float64) {
	clamped := bpm
	if bpm > MaxBpm {
		e.Events.Publish(eventqueue.Event{Kind: eventqueue.EventError, StrValue: "next bpm too high, clamped"})
		clamped = MaxBpm
	} else if bpm < MinBpm {
		e.Events.Publish(eventqueue.Event{Kind: eventqueue.EventError, StrValue: "next bpm too low, clamped"})
		clamped = MinBpm
	}
	e.hasNextBpm = true
	e.nextBpm = clamped
}

// updateBpmAndTickSize derives the target tempo for one position via a
// priority chain: external master clock (if subscribing) > Timeline
// tempo marker at p.Column (song mode, active timeline) > nextBpm.
func (e *Engine) updateBpmAndTickSize(p *transport.Position) error {
	target := p.Bpm
	if p.Bpm == 0 {
		target = e.nextBpm
		if target == 0 {
			target = MinBpm
		}
	}

	if clock, ok := e.Driver.(ExternalClock); ok && clock.IsExternalMaster() {
		target = clock.MasterBpm()
	} else if e.Scheduler.Timeline != nil && e.Scheduler.Timeline.Active && e.SongLookup != nil {
		if marker, ok := e.Scheduler.Timeline.BpmAt(p.Column); ok {
			target = marker
		} else if e.hasNextBpm {
			target = e.nextBpm
		}
	} else if e.hasNextBpm {
		target = e.nextBpm
	}

	oldTick := p.Tick
	oldTickSize := p.TickSize
	bpmChanged := target != p.Bpm
	p.Bpm = target

	if bpmChanged {
		e.Events.Publish(eventqueue.Event{Kind: eventqueue.EventTempoChanged, FloatValue: target})
	}

	if err := p.Recompute(e.SampleRate, e.Resolution, e.patternLength); err != nil {
		return NewError(InvalidTempo, err)
	}

	if p.TickSize != oldTickSize {
		e.Scheduler.InvalidateLeadLagFactor()
		if err := e.calculateTransportOffsetOnBpmChange(p, oldTick, oldTickSize); err != nil {
			return err
		}
		if e.Sampler != nil {
			e.Sampler.HandleTimelineOrTempoChange()
		}
	}
	return nil
}

// calculateTransportOffsetOnBpmChange recomputes what frame now
// corresponds to the position's current tick under the new tick size,
// and accumulates the delta into frameOffsetTempo so the audible frame
// stays continuous across the tempo change.
func (e *Engine) calculateTransportOffsetOnBpmChange(p *transport.Position, oldTick, oldTickSize float64) error {
	if oldTickSize == 0 {
		return nil
	}

	oldFrame := oldTick * oldTickSize
	newFrame := oldTick * p.TickSize
	p.FrameOffsetTempo += newFrame - oldFrame

	res, err := tickclock.FrameForTick(p.Tick, e.Scheduler.Timeline, p.Bpm, e.Resolution, e.SampleRate)
	if err != nil {
		return NewError(InvalidTempo, err)
	}
	p.TickOffsetQueuing = float64(res.Frame) - newFrame

	return nil
}

// patternLength resolves a pattern's length in ticks via the
// Scheduler's pattern table, used by Position.Recompute.
func (e *Engine) patternLength(idx int) float64 {
	if p := e.Scheduler.Patterns[idx]; p != nil {
		return p.LengthInTicks
	}
	return 0
}
