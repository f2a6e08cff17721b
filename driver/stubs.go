package driver

import "fmt"

// platformStub is a DriverAdapter that always fails Init, for
// platform APIs this build doesn't link a real library for. Auto
// probing treats the failure like "device unavailable" and moves on
// to the next candidate.
type platformStub struct {
	name Name
}

func (s *platformStub) Init(bufferSize int) error {
	return fmt.Errorf("driver: %s backend not available in this build", s.name)
}

func (s *platformStub) Connect() error                    { return nil }
func (s *platformStub) Disconnect()                       {}
func (s *platformStub) SampleRate() float64               { return 0 }
func (s *platformStub) OutL() []float32                   { return nil }
func (s *platformStub) OutR() []float32                   { return nil }
func (s *platformStub) ClearPerTrackBuffers(nFrames int)  {}

func newOssStub() *platformStub        { return &platformStub{name: Oss} }
func newAlsaStub() *platformStub       { return &platformStub{name: Alsa} }
func newCoreAudioStub() *platformStub  { return &platformStub{name: CoreAudio} }
func newPulseAudioStub() *platformStub { return &platformStub{name: PulseAudio} }
func newJackStub() *platformStub       { return &platformStub{name: Jack} }
