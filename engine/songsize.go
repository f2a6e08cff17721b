package engine

import (
	"math"

	"github.com/beatforge/beatforge/eventqueue"
	"github.com/beatforge/beatforge/transport"
)

// roundOffset neutralises floating point noise in the accumulated
// tick-size offset by rounding to 1e-8.
func roundOffset(v float64) float64 {
	const scale = 1e8
	return math.Round(v*scale) / scale
}

// UpdateSongSize runs when the song is edited while transport may be
// active. It preserves the current (column, patternTickPosition)
// across the edit by reassembling the absolute tick from its
// loop-stripped, delta-shifted components.
func (e *Engine) UpdateSongSize(oldSongSizeInTicks, newSongSizeInTicks float64, lookup transport.SongLookup) error {
	e.lock.Lock(audioOwner)
	defer e.lock.Unlock(audioOwner)

	oldLookup := e.SongLookup
	if oldLookup == nil || oldSongSizeInTicks <= 0 {
		e.SongLookup = lookup
		return nil
	}

	for _, p := range []*transport.Position{e.Audible, e.Queuing} {
		if err := e.reshapeSongPosition(p, oldSongSizeInTicks, newSongSizeInTicks, oldLookup, lookup); err != nil {
			return err
		}
	}

	e.SongLookup = lookup
	e.Scheduler.SongLookup = lookup
	e.updatePlayingPatterns()
	if e.Sampler != nil {
		e.Sampler.HandleSongSizeChange()
	}
	e.Events.Publish(eventqueue.Event{Kind: eventqueue.EventSongSizeChanged})
	return nil
}

func (e *Engine) reshapeSongPosition(p *transport.Position, oldSongSizeInTicks, newSongSizeInTicks float64, oldLookup, newLookup transport.SongLookup) error {
	// Step 1: strip loop repetitions.
	fRepetitions := math.Floor(p.Tick / oldSongSizeInTicks)
	strippedTick := p.Tick - fRepetitions*oldSongSizeInTicks

	// Step 2: end-of-song detection if the old column vanished.
	if _, ok := newLookup.PatternsAtColumn(p.Column); !ok {
		if !newLookup.IsLooping() && e.state == StatePlaying {
			e.hasNextState = true
			e.nextState = StateReady
		}
		e.locateLocked(0)
		return nil
	}

	// Step 3: shift by the new pattern-start-tick delta at this column.
	oldStart := oldLookup.TickForColumn(p.Column)
	newStart := newLookup.TickForColumn(p.Column)
	delta := newStart - oldStart
	shiftedTick := strippedTick + delta

	// Step 4: reassemble the absolute tick under the new song size.
	reassembled := shiftedTick + fRepetitions*newSongSizeInTicks

	// Step 5: accumulate offsets.
	tickDelta := roundOffset(reassembled - p.Tick)
	p.TickOffsetSongSize = roundOffset(p.TickOffsetSongSize + tickDelta)
	frameDelta := tickDelta * p.TickSize
	p.FrameOffsetTempo += frameDelta

	p.Tick = reassembled

	// Step 6: shift the in-flight note queue (audible position owns
	// this; doing it twice for the queuing position would double-shift).
	if p.Label == transport.LabelAudible {
		if err := e.Queue.ShiftSongSize(tickDelta, e.Scheduler.FrameForTickPublic); err != nil {
			return NewError(InvalidTick, err)
		}
	}

	// Step 7: walk the new song from p.Column to re-derive the column
	// and pattern fields for the reassembled tick.
	transport.UpdateSongTransportPosition(p, p.Tick, newLookup)
	return nil
}

// updatePlayingPatterns re-resolves PlayingPatterns for both positions
// against the Scheduler's SongLookup, the final step of a song-size edit.
func (e *Engine) updatePlayingPatterns() {
	for _, p := range []*transport.Position{e.Audible, e.Queuing} {
		patterns, ok := e.SongLookup.PatternsAtColumn(p.Column)
		if ok {
			p.PlayingPatterns = patterns
		}
	}
	e.Events.Publish(eventqueue.Event{Kind: eventqueue.EventPlayingPatternsChanged})
}
