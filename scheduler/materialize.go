package scheduler

import (
	"math"

	"github.com/beatforge/beatforge/notequeue"
	"github.com/beatforge/beatforge/transport"
)

// materializePatternNotes copies out, for every playing pattern, every
// note defined at the current pattern-tick, with timing/velocity/pitch
// offsets applied, and pushes the result to the scheduled heap.
func (s *Scheduler) materializePatternNotes(n float64) error {
	leadLag, err := s.leadLagFrames()
	if err != nil {
		return err
	}

	tickRes, err := s.frameForTick(n)
	if err != nil {
		return err
	}
	s.Queuing.TickMismatch = tickRes.TickMismatch
	frameAtN := tickRes.Frame

	for _, patternID := range s.Queuing.PlayingPatterns {
		pattern := s.Patterns[patternID]
		if pattern == nil {
			continue
		}
		for _, pn := range pattern.NotesAt(s.Queuing.PatternTickPosition) {
			materialized, err := s.materializeNote(pn, n, frameAtN, leadLag)
			if err != nil {
				return err
			}
			s.Queue.PushScheduled(materialized)
			if inst := s.Instruments[pn.InstrumentID]; inst != nil {
				inst.Enqueue()
			}
		}
	}
	return nil
}

func (s *Scheduler) materializeNote(pn transport.Note, n float64, frameAtN int64, leadLag float64) (notequeue.Note, error) {
	swing, err := s.swingOffset(n)
	if err != nil {
		return notequeue.Note{}, err
	}
	offset := swing + s.humanizeTimeOffset() + s.leadLagOffset(pn, leadLag)

	if offset < -float64(frameAtN) {
		offset = -float64(frameAtN)
	}
	if offset > maxHumanizeFrames {
		offset = maxHumanizeFrames
	}
	if offset < -maxHumanizeFrames {
		offset = -maxHumanizeFrames
	}

	velocity := pn.Velocity
	if s.SongLookup != nil && s.Song != nil && s.Song.Velocity != nil {
		velocity = s.scaleVelocityForSongPosition(velocity, n)
	}
	velocity = s.humanizeVelocity(velocity)
	pitch := s.randomPitch(pn.Pitch, s.Instruments[pn.InstrumentID])

	out := notequeue.Note{Note: pn}
	out.Instrument = s.Instruments[pn.InstrumentID]
	out.Position = n
	out.HumanizeDelay = offset
	out.NoteStart = frameAtN + int64(offset)
	out.Velocity = velocity
	out.Pitch = pitch
	return out, nil
}

// swingOffset applies a delay to upbeat 16th notes.
func (s *Scheduler) swingOffset(n float64) (float64, error) {
	sixteenthDivisor := transport.MaxNotes / 16
	eighthDivisor := transport.MaxNotes / 8
	isUpbeat16th := math.Mod(s.Queuing.PatternTickPosition, float64(sixteenthDivisor)) == 0 &&
		math.Mod(s.Queuing.PatternTickPosition, float64(eighthDivisor)) != 0

	swingFactor := 0.0
	if s.Song != nil {
		swingFactor = s.Song.SwingFactor
	}
	if !isUpbeat16th || swingFactor <= 0 {
		return 0, nil
	}

	delayed, err := s.frameForTick(n + transport.MaxNotes/32)
	if err != nil {
		return 0, err
	}
	base, err := s.frameForTick(n)
	if err != nil {
		return 0, err
	}
	return float64(delayed.Frame)*swingFactor - float64(base.Frame), nil
}

// humanizeTimeOffset draws a gaussian timing perturbation scaled by
// the song's humanize-time value and the humanize frame bound.
func (s *Scheduler) humanizeTimeOffset() float64 {
	if s.Song == nil || s.Song.HumanizeTimeValue == 0 {
		return 0
	}
	return gaussian(s.Rng, 0.3) * s.Song.HumanizeTimeValue * maxHumanizeFrames
}

// leadLagOffset scales the per-note lead-lag factor in [-1,1] by the
// per-engine lead-lag frame span.
func (s *Scheduler) leadLagOffset(note transport.Note, leadLagFrames float64) float64 {
	return note.LeadLag * leadLagFrames
}

// scaleVelocityForSongPosition samples the song's velocity automation
// path at the fractional song position and scales velocity by it.
func (s *Scheduler) scaleVelocityForSongPosition(velocity, n float64) float64 {
	fractional := math.Mod(n, transport.MaxNotes) / transport.MaxNotes
	position := float64(s.Queuing.Column) + fractional
	return velocity * s.Song.Velocity.ValueAt(position)
}

// humanizeVelocity adds humanizeVelocityValue times a gaussian draw
// (stddev 0.2) minus humanizeVelocityValue/2, so the perturbation is
// centered on -humanizeVelocityValue/2, and clamps the result to [0,1].
func (s *Scheduler) humanizeVelocity(velocity float64) float64 {
	if s.Song == nil || s.Song.HumanizeVelocityValue == 0 {
		return velocity
	}
	delta := s.Song.HumanizeVelocityValue*gaussian(s.Rng, 0.2) - s.Song.HumanizeVelocityValue/2
	v := velocity + delta
	if v > 1 {
		v = 1
	}
	if v < 0 {
		v = 0
	}
	return v
}

// randomPitch draws a gaussian pitch perturbation scaled by the
// instrument's random-pitch factor, then adds its fixed pitch offset.
func (s *Scheduler) randomPitch(pitch float64, inst *transport.Instrument) float64 {
	if inst == nil {
		return pitch
	}
	pitch += gaussian(s.Rng, 0.4) * inst.RandomPitchFactor
	pitch += inst.PitchOffset
	return pitch
}
