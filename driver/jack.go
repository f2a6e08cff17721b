//go:build jack

package driver

import (
	"fmt"

	"github.com/beatforge/beatforge/engine"
	jack "github.com/xthexder/go-jack"
)

// JackDriver is the JACK backend. It implements engine.ExternalClock:
// when another client owns JACK's transport, the engine treats JACK's
// tempo and position as authoritative instead of its own.
type JackDriver struct {
	client   *jack.Client
	outPortL *jack.Port
	outPortR *jack.Port

	outL, outR []float32

	callback func(nFrames int)
}

func NewJackDriver() *JackDriver {
	return &JackDriver{}
}

func init() {
	registry[Jack] = func() engine.DriverAdapter { return NewJackDriver() }
}

// SetCallback registers the function the JACK process callback invokes
// with the frame count of each cycle (typically engine.Engine.Process).
// Must be called before Connect.
func (d *JackDriver) SetCallback(cb func(nFrames int)) {
	d.callback = cb
}

func (d *JackDriver) Init(bufferSize int) error {
	client, status := jack.ClientOpen("beatforge", jack.NoStartServer)
	if status != 0 {
		return fmt.Errorf("driver: jack.ClientOpen failed: status %d", status)
	}
	d.client = client
	d.outL = make([]float32, bufferSize)
	d.outR = make([]float32, bufferSize)
	return nil
}

func (d *JackDriver) Connect() error {
	outL := d.client.PortRegister("out_l", jack.DEFAULT_AUDIO_TYPE, jack.PortIsOutput, 0)
	outR := d.client.PortRegister("out_r", jack.DEFAULT_AUDIO_TYPE, jack.PortIsOutput, 0)
	if outL == nil || outR == nil {
		return fmt.Errorf("driver: jack port registration failed")
	}
	d.outPortL, d.outPortR = outL, outR

	if code := d.client.SetProcessCallback(d.processCallback); code != 0 {
		return fmt.Errorf("driver: jack.SetProcessCallback failed: status %d", code)
	}
	if code := d.client.Activate(); code != 0 {
		return fmt.Errorf("driver: jack.Activate failed: status %d", code)
	}
	return nil
}

func (d *JackDriver) Disconnect() {
	if d.client == nil {
		return
	}
	d.client.Deactivate()
	d.client.Close()
	d.client = nil
}

func (d *JackDriver) SampleRate() float64 {
	if d.client == nil {
		return 48000
	}
	return float64(d.client.GetSampleRate())
}

func (d *JackDriver) OutL() []float32 { return d.outL }
func (d *JackDriver) OutR() []float32 { return d.outR }

func (d *JackDriver) ClearPerTrackBuffers(nFrames int) {}

func (d *JackDriver) processCallback(nFrames uint32) int {
	n := int(nFrames)
	if d.callback != nil {
		d.callback(n)
	}

	bufL := jack.GetAudioSamples(d.outPortL.GetBuffer(nFrames), nFrames)
	bufR := jack.GetAudioSamples(d.outPortR.GetBuffer(nFrames), nFrames)
	for i := 0; i < n; i++ {
		bufL[i] = jack.AudioSample(d.outL[i])
		bufR[i] = jack.AudioSample(d.outR[i])
	}
	return 0
}

// IsExternalMaster reports whether some other JACK client is the
// current timebase master. The engine only needs to know whether to
// defer, not who the master is.
func (d *JackDriver) IsExternalMaster() bool {
	if d.client == nil {
		return false
	}
	_, pos := d.client.TransportQuery()
	return pos.Valid&jack.PositionBBT != 0
}

func (d *JackDriver) MasterBpm() float64 {
	if d.client == nil {
		return 0
	}
	_, pos := d.client.TransportQuery()
	return pos.BeatsPerMinute
}

func (d *JackDriver) RelocateTransport(frame int64) {
	if d.client != nil {
		d.client.TransportLocate(uint64(frame))
	}
}

func (d *JackDriver) StartTransport() {
	if d.client != nil {
		d.client.TransportStart()
	}
}

func (d *JackDriver) StopTransport() {
	if d.client != nil {
		d.client.TransportStop()
	}
}

func (d *JackDriver) UpdateTransportPosition() {}
