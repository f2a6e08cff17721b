package driver

import (
	"github.com/gordonklaus/portaudio"
)

// PortAudioDriver is the portable backend: it opens a PortAudio
// stream and drives the engine from its realtime callback thread.
type PortAudioDriver struct {
	stream *portaudio.Stream
	hz     float64

	outL, outR []float32
	interleaved []int16

	callback func(nFrames int)

	initialized bool
}

func NewPortAudioDriver() *PortAudioDriver {
	return &PortAudioDriver{hz: 44100}
}

// SetCallback registers the function the stream callback invokes with
// the frame count of each buffer before converting and copying it out
// (typically engine.Engine.Process). Must be called before Connect.
func (d *PortAudioDriver) SetCallback(cb func(nFrames int)) {
	d.callback = cb
}

func (d *PortAudioDriver) Init(bufferSize int) error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	d.initialized = true
	d.outL = make([]float32, bufferSize)
	d.outR = make([]float32, bufferSize)
	d.interleaved = make([]int16, bufferSize*2)
	return nil
}

func (d *PortAudioDriver) Connect() error {
	stream, err := portaudio.OpenDefaultStream(0, 2, d.hz, len(d.outL), d.streamCallback)
	if err != nil {
		return err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return err
	}
	d.stream = stream
	return nil
}

func (d *PortAudioDriver) Disconnect() {
	if d.stream != nil {
		d.stream.Stop()
		d.stream.Close()
		d.stream = nil
	}
	if d.initialized {
		portaudio.Terminate()
		d.initialized = false
	}
}

func (d *PortAudioDriver) SampleRate() float64 { return d.hz }
func (d *PortAudioDriver) OutL() []float32     { return d.outL }
func (d *PortAudioDriver) OutR() []float32     { return d.outR }

func (d *PortAudioDriver) ClearPerTrackBuffers(nFrames int) {}

// streamCallback is PortAudio's realtime callback. It runs one engine
// process cycle, then interleaves OutL/OutR into the int16 buffer the
// device expects.
func (d *PortAudioDriver) streamCallback(out []int16) {
	nFrames := len(out) / 2
	if d.callback != nil {
		d.callback(nFrames)
	} else {
		clearFloat32(d.outL[:nFrames])
		clearFloat32(d.outR[:nFrames])
	}

	for i := 0; i < nFrames; i++ {
		out[2*i] = floatToInt16(d.outL[i])
		out[2*i+1] = floatToInt16(d.outR[i])
	}
}

func clearFloat32(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
}
