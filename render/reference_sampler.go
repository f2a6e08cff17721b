package render

import (
	"math"
	"sync"

	"github.com/beatforge/beatforge/notequeue"
)

// fixedPointFrac is the number of fractional bits used for the
// playback position, in a pos>>16 incremental resampling scheme.
const fixedPointFrac = 16

// voice is one currently-sounding sample playback, advanced by a
// fixed-point increment per output frame.
type voice struct {
	sample []int8
	pos    uint // fixed-point position, integer part in bits >=16
	dr     uint // fixed-point increment per output frame
	lvol   int
	rvol   int
	done   bool
}

// Drumkit is the minimal PCM sample set a ReferenceSampler plays.
type Drumkit struct {
	Samples map[int]*Sample
}

// Sample is one instrument's raw waveform, at its native rate.
type Sample struct {
	Data   []int8
	C4Rate float64 // sample rate at which Data plays back at unity pitch
}

// ReferenceSampler plays fixed-rate PCM instrument voices triggered by
// NoteOn, using an incremental fixed-point playback-rate resampling
// loop per voice.
type ReferenceSampler struct {
	Kit        *Drumkit
	SampleRate float64

	mu     sync.Mutex
	voices []*voice
}

// NewReferenceSampler returns a sampler that plays kit's samples at
// sampleRate.
func NewReferenceSampler(kit *Drumkit, sampleRate float64) *ReferenceSampler {
	return &ReferenceSampler{Kit: kit, SampleRate: sampleRate}
}

func (s *ReferenceSampler) NoteOn(note notequeue.Note) {
	if s.Kit == nil {
		return
	}
	sample, ok := s.Kit.Samples[note.InstrumentID]
	if !ok || len(sample.Data) == 0 {
		return
	}

	pitchRatio := pitchToRatio(note.Pitch)
	rate := sample.C4Rate * pitchRatio
	if rate <= 0 {
		return
	}
	dr := uint((rate / s.SampleRate) * (1 << fixedPointFrac))
	if dr == 0 {
		dr = 1
	}

	vel := clamp01(note.Velocity)
	pan := note.Pan // [-1,1], 0 = center
	lvol, rvol := panToVolumes(vel, pan)

	v := &voice{sample: sample.Data, dr: dr, lvol: lvol, rvol: rvol}

	s.mu.Lock()
	s.voices = append(s.voices, v)
	s.mu.Unlock()
}

// pitchToRatio converts a pitch offset in semitones to a playback-rate
// multiplier.
func pitchToRatio(semitones float64) float64 {
	if semitones == 0 {
		return 1
	}
	return math.Pow(2, semitones/12)
}

func (s *ReferenceSampler) Process(nFrames int, outL, outR []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alive := s.voices[:0]
	for _, v := range s.voices {
		epos := uint(len(v.sample)) << fixedPointFrac
		cur := 0
		for v.pos < epos && cur < nFrames {
			sd := float32(v.sample[v.pos>>fixedPointFrac]) / 128.0
			outL[cur] += sd * float32(v.lvol) / 128.0
			outR[cur] += sd * float32(v.rvol) / 128.0
			v.pos += v.dr
			cur++
		}
		if v.pos < epos {
			alive = append(alive, v)
		}
	}
	s.voices = alive
	return nil
}

func (s *ReferenceSampler) StopPlayingNotes() {
	s.mu.Lock()
	s.voices = nil
	s.mu.Unlock()
}

func (s *ReferenceSampler) HandleTimelineOrTempoChange() {}
func (s *ReferenceSampler) HandleSongSizeChange()        {}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// panToVolumes splits velocity into left/right gains on a 0-127 scale.
func panToVolumes(velocity, pan float64) (int, int) {
	if pan < -1 {
		pan = -1
	}
	if pan > 1 {
		pan = 1
	}
	l := velocity * (1 - (pan+1)/2)
	r := velocity * ((pan + 1) / 2)
	return int(l * 127), int(r * 127)
}
