package driver

// FakeDriver is a synchronous, in-process stand-in for a real audio
// device: it never spawns a callback thread, so a caller drives it by
// calling Pump itself, typically from inside a test loop or an
// offline harness that wants deterministic control over when buffers
// are produced.
type FakeDriver struct {
	sampleRate float64
	outL, outR []float32

	// History records every buffer Pump copied out, in order, for
	// assertions.
	History [][2][]float32

	connected bool
}

func NewFakeDriver() *FakeDriver {
	return &FakeDriver{sampleRate: 48000}
}

func (d *FakeDriver) Init(bufferSize int) error {
	d.outL = make([]float32, bufferSize)
	d.outR = make([]float32, bufferSize)
	return nil
}

func (d *FakeDriver) Connect() error {
	d.connected = true
	return nil
}

func (d *FakeDriver) Disconnect() { d.connected = false }

func (d *FakeDriver) SampleRate() float64 { return d.sampleRate }
func (d *FakeDriver) OutL() []float32     { return d.outL }
func (d *FakeDriver) OutR() []float32     { return d.outR }

func (d *FakeDriver) ClearPerTrackBuffers(nFrames int) {}

// Pump runs one process cycle of nFrames on process (typically
// engine.Engine.Process) and snapshots the resulting OutL/OutR into
// History.
func (d *FakeDriver) Pump(nFrames int, process func(int) int) int {
	result := process(nFrames)

	l := make([]float32, nFrames)
	r := make([]float32, nFrames)
	copy(l, d.outL[:nFrames])
	copy(r, d.outR[:nFrames])
	d.History = append(d.History, [2][]float32{l, r})

	return result
}
