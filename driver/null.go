package driver

// NullDriver discards every buffer. It is the backend of last resort
// when no real audio device is available, and the default for
// headless tests that only care about the engine's internal state.
type NullDriver struct {
	sampleRate float64
	outL, outR []float32
}

func NewNullDriver() *NullDriver {
	return &NullDriver{sampleRate: 48000}
}

func (d *NullDriver) Init(bufferSize int) error {
	d.outL = make([]float32, bufferSize)
	d.outR = make([]float32, bufferSize)
	return nil
}

func (d *NullDriver) Connect() error { return nil }
func (d *NullDriver) Disconnect()    {}

func (d *NullDriver) SampleRate() float64 { return d.sampleRate }
func (d *NullDriver) OutL() []float32     { return d.outL }
func (d *NullDriver) OutR() []float32     { return d.outR }

func (d *NullDriver) ClearPerTrackBuffers(nFrames int) {}
