package engine

// DriverAdapter is the boundary over the audio driver the Engine
// consumes: buffers, sample rate, transport sync. Concrete
// implementations (Null, Fake, DiskWriter, PortAudio, Jack, and the
// platform stubs) live in package driver.
type DriverAdapter interface {
	Init(bufferSize int) error
	Connect() error
	Disconnect()
	SampleRate() float64
	OutL() []float32
	OutR() []float32
	ClearPerTrackBuffers(nFrames int)
}

// ExternalClock is an optional capability a DriverAdapter may
// implement (a JACK-like external master transport). The Engine type-
// asserts the attached driver for it on every process cycle.
type ExternalClock interface {
	IsExternalMaster() bool
	MasterBpm() float64
	RelocateTransport(frame int64)
	StartTransport()
	StopTransport()
	UpdateTransportPosition()
}

// RetryableDriver is implemented by drivers without a realtime
// deadline (the disk-writer): on lock timeout the process callback
// retries the same buffer instead of emitting silence.
type RetryableDriver interface {
	Retryable() bool
}
