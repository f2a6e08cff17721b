// Package tickclock converts between ticks (musical time) and frames
// (audio sample time) given a tempo map. It does no I/O and holds no
// state of its own; TransportPosition and Scheduler are the stateful
// callers.
package tickclock

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidTempo is returned when bpm or resolution is non-positive,
// or a negative tick is requested outside pattern-relative contexts.
var ErrInvalidTempo = errors.New("invalid tempo")

// ComputeTickSize returns frames-per-tick for the given sample rate,
// tempo and pattern resolution.
func ComputeTickSize(sampleRate, bpm, resolution float64) (float64, error) {
	if bpm <= 0 || resolution <= 0 {
		return 0, fmt.Errorf("%w: bpm=%g resolution=%g", ErrInvalidTempo, bpm, resolution)
	}
	return sampleRate * 60.0 / bpm / resolution, nil
}

// Marker is one tempo-map entry: the song column at which bpm changes
// to the given value.
type Marker struct {
	Column int
	Bpm    float64
}

// Timeline is an ordered tempo map over song columns, used by
// updateBpmAndTickSize's Timeline-tempo-marker priority source. A song
// with no markers (pattern mode, or a song that never uses tempo
// markers) is represented by an inactive Timeline.
type Timeline struct {
	Active  bool
	Markers []Marker // kept sorted by Column ascending

	// TickForColumn maps a song column to the tick at which it starts.
	// Set by the transport package, which owns the song's pattern
	// sizes; nil when Active is false.
	TickForColumn func(column int) float64
}

// BpmAt returns the bpm in effect at or before the given column, and
// whether the timeline carries any marker at or before it. It returns
// (0, false) when the timeline is inactive or has no marker yet.
func (t *Timeline) BpmAt(column int) (float64, bool) {
	if t == nil || !t.Active || len(t.Markers) == 0 {
		return 0, false
	}
	found := false
	var bpm float64
	for _, m := range t.Markers {
		if m.Column > column {
			break
		}
		bpm = m.Bpm
		found = true
	}
	return bpm, found
}

// segments returns the (tick, bpm) breakpoints of the tempo map,
// starting at tick 0 with constantBpm if the timeline has no marker
// there yet.
func (t *Timeline) segments(constantBpm float64) []Marker {
	if t == nil || !t.Active || len(t.Markers) == 0 || t.TickForColumn == nil {
		return nil
	}
	segs := make([]Marker, 0, len(t.Markers)+1)
	if t.Markers[0].Column != 0 {
		segs = append(segs, Marker{Column: 0, Bpm: constantBpm})
	}
	for _, m := range t.Markers {
		segs = append(segs, Marker{Column: m.Column, Bpm: m.Bpm})
	}
	return segs
}

// Result carries a frame/tick conversion plus the sub-unit residual
// needed to make the conversion's inverse exact.
type Result struct {
	Frame        int64
	Tick         float64
	TickMismatch float64
}

// FrameForTick integrates the tempo map forward from tick 0 to the
// given tick, returning the exact frame and the sub-frame residual.
// When timeline is nil/inactive, tempo is constant at constantBpm.
func FrameForTick(tick float64, timeline *Timeline, constantBpm, resolution, sampleRate float64) (Result, error) {
	if tick < 0 {
		return Result{}, fmt.Errorf("%w: negative tick %g", ErrInvalidTempo, tick)
	}

	segs := timeline.segments(constantBpm)
	if len(segs) == 0 {
		tickSize, err := ComputeTickSize(sampleRate, constantBpm, resolution)
		if err != nil {
			return Result{}, err
		}
		exact := tick * tickSize
		frame := int64(math.Floor(exact))
		return Result{Frame: frame, Tick: tick, TickMismatch: exact - float64(frame)}, nil
	}

	var accumFrames, prevTick float64
	bpm := segs[0].Bpm
	for i := 0; i < len(segs); i++ {
		segTick := timeline.TickForColumn(segs[i].Column)
		if i > 0 {
			tickSize, err := ComputeTickSize(sampleRate, bpm, resolution)
			if err != nil {
				return Result{}, err
			}
			if segTick >= tick {
				accumFrames += (tick - prevTick) * tickSize
				frame := int64(math.Floor(accumFrames))
				return Result{Frame: frame, Tick: tick, TickMismatch: accumFrames - float64(frame)}, nil
			}
			accumFrames += (segTick - prevTick) * tickSize
			prevTick = segTick
		}
		bpm = segs[i].Bpm
	}
	tickSize, err := ComputeTickSize(sampleRate, bpm, resolution)
	if err != nil {
		return Result{}, err
	}
	accumFrames += (tick - prevTick) * tickSize
	frame := int64(math.Floor(accumFrames))
	return Result{Frame: frame, Tick: tick, TickMismatch: accumFrames - float64(frame)}, nil
}

// RoundNearTick rounds tick up to the next integer when its fractional
// part is at least 0.97, to avoid a glitch-inducing off-by-one at
// external-transport relocations.
func RoundNearTick(tick float64) float64 {
	frac := tick - math.Floor(tick)
	if frac >= 0.97 {
		return math.Ceil(tick)
	}
	return tick
}

// TickForFrame is the inverse of FrameForTick: a constant-tempo fast
// path plus a tempo-map walk for song mode with active markers. For a
// constant tempo map, TickForFrame(FrameForTick(t).Frame) recovers t
// up to FrameForTick's sub-frame residual; the TickMismatch returned
// here is the fractional part of the recovered tick.
func TickForFrame(frame int64, timeline *Timeline, constantBpm, resolution, sampleRate float64) (Result, error) {
	segs := timeline.segments(constantBpm)
	if len(segs) == 0 {
		tickSize, err := ComputeTickSize(sampleRate, constantBpm, resolution)
		if err != nil {
			return Result{}, err
		}
		tick := float64(frame) / tickSize
		return Result{Frame: frame, Tick: tick, TickMismatch: tick - math.Floor(tick)}, nil
	}

	var accumFrames, prevTick float64
	bpm := segs[0].Bpm
	for i := 0; i < len(segs); i++ {
		segTick := timeline.TickForColumn(segs[i].Column)
		if i > 0 {
			tickSize, err := ComputeTickSize(sampleRate, bpm, resolution)
			if err != nil {
				return Result{}, err
			}
			segFrames := (segTick - prevTick) * tickSize
			if accumFrames+segFrames > float64(frame) {
				remaining := float64(frame) - accumFrames
				tick := prevTick + remaining/tickSize
				return Result{Frame: frame, Tick: tick, TickMismatch: tick - math.Floor(tick)}, nil
			}
			accumFrames += segFrames
			prevTick = segTick
		}
		bpm = segs[i].Bpm
	}
	tickSize, err := ComputeTickSize(sampleRate, bpm, resolution)
	if err != nil {
		return Result{}, err
	}
	remaining := float64(frame) - accumFrames
	tick := prevTick + remaining/tickSize
	return Result{Frame: frame, Tick: tick, TickMismatch: tick - math.Floor(tick)}, nil
}
