// Package render defines the RendererAdapter boundary (sampler/synth)
// the Engine drives on every process callback, plus a reference
// sampler implementation good enough to hear something end to end.
// Sampler voice internals beyond this reference implementation are
// out of scope for the core transport/scheduling engine.
package render

import "github.com/beatforge/beatforge/notequeue"

// Sampler renders sampled-instrument voices into the engine's main
// output buffers.
type Sampler interface {
	// Process renders nFrames into outL/outR, accumulating into
	// whatever is already there.
	Process(nFrames int, outL, outR []float32) error
	// NoteOn starts a new voice for note.
	NoteOn(note notequeue.Note)
	// StopPlayingNotes silences every active voice immediately.
	StopPlayingNotes()
	// HandleTimelineOrTempoChange lets voices using tempo-synced
	// playback rates re-derive their increment after a tempo change.
	HandleTimelineOrTempoChange()
	// HandleSongSizeChange notifies the sampler a song edit occurred.
	HandleSongSizeChange()
}

// Synth renders the engine's optional internal synth voices.
type Synth interface {
	Process(nFrames int, outL, outR []float32) error
}
