package transport

// SongLookup is the read-only boundary the Scheduler uses to walk the
// song's pattern-group columns. It is supplied by the (out-of-scope)
// song/pattern store.
type SongLookup interface {
	// PatternsAtColumn returns the pattern indices playing at column,
	// and whether that column exists at all. An existing column with
	// no patterns returns (nil, true); past the end of the song it
	// returns (nil, false).
	PatternsAtColumn(column int) ([]int, bool)
	// PatternLength returns the length in ticks of the pattern with
	// the given index.
	PatternLength(idx int) float64
	// TickForColumn returns the tick at which the given column starts.
	TickForColumn(column int) float64
	// IsLooping reports whether the song wraps back to column 0 after
	// its last column instead of ending.
	IsLooping() bool
}

// UpdatePatternTransportPosition advances p by one tick in pattern
// mode: PatternTickPosition wraps at PatternSize, Tick always
// increases. There is no column concept in pattern mode.
func UpdatePatternTransportPosition(p *Position, tick float64) {
	p.Tick = tick
	if p.PatternSize <= 0 {
		p.PatternSize = MaxNotes
	}
	rel := tick - p.PatternStartTick
	for rel >= p.PatternSize {
		rel -= p.PatternSize
		p.PatternStartTick += p.PatternSize
	}
	p.PatternTickPosition = rel
}

// UpdateSongTransportPosition advances p by one tick in song mode,
// walking columns as the tick crosses pattern boundaries. It sets
// p.Column to -1 when the song has run past its last column (the
// end-of-song condition the Scheduler checks in step 4.b), unless the
// song loops, in which case tick stays absolute (always increasing)
// while the column cycles back to 0 every full pass through the song.
func UpdateSongTransportPosition(p *Position, tick float64, song SongLookup) {
	p.Tick = tick

	patterns, ok := song.PatternsAtColumn(p.Column)
	if !ok {
		p.Column = -1
		return
	}

	var loopOffset, totalLen float64
	if song.IsLooping() {
		totalLen = songTotalLength(song)
	}

	size := longestPattern(patterns, song.PatternLength)
	if size <= 0 {
		size = MaxNotes
	}
	start := loopOffset + song.TickForColumn(p.Column)

	for tick >= start+size {
		nextColumn := p.Column + 1
		nextPatterns, ok := song.PatternsAtColumn(nextColumn)
		if !ok {
			if !song.IsLooping() || totalLen <= 0 {
				p.Column = -1
				return
			}
			nextColumn = 0
			nextPatterns, _ = song.PatternsAtColumn(0)
			loopOffset += totalLen
		}
		p.Column = nextColumn
		patterns = nextPatterns
		size = longestPattern(patterns, song.PatternLength)
		if size <= 0 {
			size = MaxNotes
		}
		start = loopOffset + song.TickForColumn(p.Column)
	}

	p.PatternSize = size
	p.PatternStartTick = start
	p.PatternTickPosition = tick - start
	p.PlayingPatterns = patterns
}

// songTotalLength sums the longest playing pattern at every column,
// used to keep the absolute tick continuous across loop wraps.
func songTotalLength(song SongLookup) float64 {
	var total float64
	for col := 0; ; col++ {
		patterns, ok := song.PatternsAtColumn(col)
		if !ok {
			break
		}
		total += longestPattern(patterns, song.PatternLength)
	}
	return total
}
