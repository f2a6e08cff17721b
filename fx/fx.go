// Package fx models the engine's pluggable effects-chain stage: the
// LADSPA FX chain named in the transport/scheduling design is out of scope in full, but the
// process callback still needs something to call at step 9, so this
// package defines the boundary plus two bundled reference
// implementations.
package fx

// Chain is the accumulate/drain stage the process callback calls once
// per buffer.
type Chain interface {
	// InputSamples feeds newly-rendered interleaved stereo samples in.
	// The meaning of its return value depends on the implementation:
	// PassThrough returns the free space left in its ring buffer,
	// CombAdd the samples still needed to fill its delay line, and Comb
	// always 0. The process callback ignores it.
	InputSamples(in []int16) int
	// GetAudio drains up to len(out) processed samples into out,
	// returning how many were written.
	GetAudio(out []int16) int
}
