// Package transport holds TransportPosition, the central value object
// tracking where playback "is" in ticks, frames and song columns, plus
// the minimal Pattern/Instrument stand-ins the Scheduler needs to
// materialize notes.
package transport

import (
	"errors"
	"math"

	clone "github.com/huandu/go-clone/generic"

	"github.com/beatforge/beatforge/tickclock"
)

// MaxNotes is the pattern resolution used throughout this core: the
// number of ticks per pattern when no explicit resolution override is
// given. Mirrors Hydrogen's MAX_NOTES constant.
const MaxNotes = 192

// Label identifies which of the two process-wide positions a Position
// value represents.
type Label string

const (
	LabelAudible Label = "Transport"
	LabelQueuing Label = "Queuing"
)

// ErrNoPattern is returned by SelectedPatternIndex when the column has
// no pattern list at all (as opposed to an empty one).
var ErrNoPattern = errors.New("transport: no pattern list at column")

// Position is one coherent snapshot of playback position: frame, tick,
// column, pattern-relative tick, tempo, and the continuity offsets
// that keep those quantities glitch-free across tempo/song edits.
type Position struct {
	Label Label

	Frame        int64
	Tick         float64
	TickMismatch float64

	Bpm      float64
	TickSize float64

	Column              int
	PatternStartTick    float64
	PatternTickPosition float64
	PatternSize         float64

	PlayingPatterns []int
	NextPatterns    []int

	FrameOffsetTempo   float64
	TickOffsetQueuing  float64
	TickOffsetSongSize float64
}

// NewPosition returns a zeroed position carrying the given label.
func NewPosition(label Label) *Position {
	return &Position{Label: label, PatternSize: MaxNotes}
}

// Reset zeroes every field except Label and PatternSize, which is set
// back to MaxNotes.
func (p *Position) Reset() {
	label := p.Label
	*p = Position{Label: label, PatternSize: MaxNotes}
}

// Set deep-copies every field of other into p except Label, so the two
// positions never alias slices (PlayingPatterns, NextPatterns).
func (p *Position) Set(other *Position) {
	label := p.Label
	cloned := clone.Clone(*other)
	cloned.Label = label
	*p = cloned
}

// Recompute re-derives TickSize from bpm/sampleRate/resolution and
// PatternTickPosition/PatternSize from Tick/PlayingPatterns.
// patternLength returns the length in ticks of the pattern with the
// given index; it is supplied by the caller (the song/pattern store is
// out of scope for this core).
func (p *Position) Recompute(sampleRate, resolution float64, patternLength func(idx int) float64) error {
	tickSize, err := tickclock.ComputeTickSize(sampleRate, p.Bpm, resolution)
	if err != nil {
		return err
	}
	p.TickSize = tickSize

	p.PatternSize = longestPattern(p.PlayingPatterns, patternLength)
	if p.PatternSize <= 0 {
		p.PatternSize = MaxNotes
	}

	rel := p.Tick - p.PatternStartTick
	if p.PatternSize > 0 {
		rel = math.Mod(rel, p.PatternSize)
		if rel < 0 {
			rel += p.PatternSize
		}
	}
	p.PatternTickPosition = rel
	return nil
}

func longestPattern(playing []int, patternLength func(idx int) float64) float64 {
	if patternLength == nil || len(playing) == 0 {
		return 0
	}
	max := 0.0
	for _, idx := range playing {
		if l := patternLength(idx); l > max {
			max = l
		}
	}
	return max
}

// SelectedPatternIndex resolves the Open Question in the transport/scheduling design's
// handleSelectedPattern: given the pattern list at a column, it picks
// the maximum pattern index when the list is non-empty, and reports
// ErrNoPattern only when there is no list at all at that column (not
// merely an empty one).
func SelectedPatternIndex(patternsAtColumn []int, hasColumn bool) (int, error) {
	if !hasColumn {
		return -1, ErrNoPattern
	}
	if len(patternsAtColumn) == 0 {
		return -1, nil
	}
	max := patternsAtColumn[0]
	for _, idx := range patternsAtColumn[1:] {
		if idx > max {
			max = idx
		}
	}
	return max, nil
}
