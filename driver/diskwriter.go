package driver

import (
	"encoding/binary"
	"io"
	"math"
)

// wavFormat is the base PCM fmt-chunk payload: two channels, 16-bit,
// at a DiskWriter's configured sample rate.
// See http://soundfile.sapp.org/doc/WaveFormat/ for the layout.
type wavFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

const pcmFormat = 1

// DiskWriter renders to a WAVE file instead of a live device. It has
// no realtime deadline, so on lock timeout Process returns
// ProcessRetryBuffer instead of emitting silence (see Retryable) and
// the render loop retries that buffer before writing it. It owns the
// RIFF/WAVE framing itself rather than going through a generic
// sample-writer: every frame it's handed is already the engine's
// stereo float32 OutL/OutR pair, so there is no channel-count or
// sample-width negotiation to do.
type DiskWriter struct {
	ws         io.WriteSeeker
	sampleRate float64

	outL, outR []float32
	scratch    []int16
}

// NewDiskWriter constructs a DiskWriter. The caller still owns ws's
// lifetime; call Finish after the last WriteFrame to patch in the
// RIFF chunk sizes.
func NewDiskWriter() *DiskWriter {
	return &DiskWriter{sampleRate: 48000}
}

// Open binds the destination file and sample rate, writing the RIFF
// header with placeholder chunk sizes that Finish patches in once the
// data length is known. Must be called before Init.
func (d *DiskWriter) Open(ws io.WriteSeeker, sampleRate float64) error {
	d.ws = ws
	d.sampleRate = sampleRate

	if _, err := ws.Write([]byte("RIFF")); err != nil {
		return err
	}
	if err := binary.Write(ws, binary.LittleEndian, int32(0)); err != nil {
		return err
	}
	if _, err := ws.Write([]byte("WAVE")); err != nil {
		return err
	}

	if _, err := ws.Write([]byte("fmt ")); err != nil {
		return err
	}
	if err := binary.Write(ws, binary.LittleEndian, int32(16)); err != nil {
		return err
	}
	format := wavFormat{
		AudioFormat:   pcmFormat,
		Channels:      2,
		SampleRate:    uint32(sampleRate),
		BitsPerSample: 16,
	}
	format.ByteRate = format.SampleRate * uint32(format.Channels) * uint32(format.BitsPerSample/8)
	format.BlockAlign = format.Channels * (format.BitsPerSample / 8)
	if err := binary.Write(ws, binary.LittleEndian, format); err != nil {
		return err
	}

	if _, err := ws.Write([]byte("data")); err != nil {
		return err
	}
	if err := binary.Write(ws, binary.LittleEndian, int32(0)); err != nil {
		return err
	}
	return nil
}

func (d *DiskWriter) Init(bufferSize int) error {
	d.outL = make([]float32, bufferSize)
	d.outR = make([]float32, bufferSize)
	d.scratch = make([]int16, bufferSize*2)
	return nil
}

func (d *DiskWriter) Connect() error { return nil }
func (d *DiskWriter) Disconnect()    {}

func (d *DiskWriter) SampleRate() float64 { return d.sampleRate }
func (d *DiskWriter) OutL() []float32     { return d.outL }
func (d *DiskWriter) OutR() []float32     { return d.outR }

func (d *DiskWriter) ClearPerTrackBuffers(nFrames int) {}

// Retryable reports that the disk writer has no realtime deadline.
func (d *DiskWriter) Retryable() bool { return true }

// WriteFrame converts the last nFrames rendered into OutL/OutR to
// interleaved 16-bit PCM and appends them to the file. The caller
// drives this once per engine.Process call.
func (d *DiskWriter) WriteFrame(nFrames int) error {
	for i := 0; i < nFrames; i++ {
		d.scratch[2*i+0] = floatToInt16(d.outL[i])
		d.scratch[2*i+1] = floatToInt16(d.outR[i])
	}
	return binary.Write(d.ws, binary.LittleEndian, d.scratch[:nFrames*2])
}

// Finish patches in the RIFF chunk sizes now that the data length is
// known, and returns the total file length.
func (d *DiskWriter) Finish() (int64, error) {
	total, err := d.ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}

	if _, err := d.ws.Seek(4, io.SeekStart); err != nil {
		return 0, err
	}
	if err := binary.Write(d.ws, binary.LittleEndian, int32(total-8)); err != nil {
		return 0, err
	}

	if _, err := d.ws.Seek(40, io.SeekStart); err != nil {
		return 0, err
	}
	if err := binary.Write(d.ws, binary.LittleEndian, int32(total-44)); err != nil {
		return 0, err
	}

	return total, nil
}

func floatToInt16(f float32) int16 {
	v := math.Round(float64(f) * 32767)
	if v > 32767 {
		v = 32767
	} else if v < -32768 {
		v = -32768
	}
	return int16(v)
}
