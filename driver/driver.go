// Package driver implements the engine.DriverAdapter boundary for
// every backend the engine can run against: the always-available Null
// and Fake drivers, the offline DiskWriter, PortAudio, JACK (behind
// the jack build tag), and stub adapters for platform APIs this build
// doesn't wire a real library for.
package driver

import (
	"fmt"

	"github.com/beatforge/beatforge/engine"
)

// Name identifies a driver backend by the string a config file or
// -audioDriver flag uses to request it.
type Name string

const (
	Auto        Name = "Auto"
	Oss         Name = "OSS"
	Alsa        Name = "ALSA"
	Jack        Name = "JACK"
	PortAudio   Name = "PortAudio"
	CoreAudio   Name = "CoreAudio"
	PulseAudio  Name = "PulseAudio"
	Fake        Name = "Fake"
	DiskWriter  Name = "DiskWriter"
	Null        Name = "Null"
)

// probeOrder is the sequence Auto walks, trying each backend's Init
// until one connects: OSS, ALSA and JACK before the portable PortAudio
// backend, then CoreAudio and PulseAudio. Null is not in the list;
// Open returns it only when every candidate failed.
var probeOrder = []Name{Oss, Alsa, Jack, PortAudio, CoreAudio, PulseAudio}

// Factory builds a fresh, unconnected driver instance for a name.
type Factory func() engine.DriverAdapter

var registry = map[Name]Factory{
	Oss:        func() engine.DriverAdapter { return newOssStub() },
	Alsa:       func() engine.DriverAdapter { return newAlsaStub() },
	PortAudio:  func() engine.DriverAdapter { return NewPortAudioDriver() },
	CoreAudio:  func() engine.DriverAdapter { return newCoreAudioStub() },
	PulseAudio: func() engine.DriverAdapter { return newPulseAudioStub() },
	Fake:       func() engine.DriverAdapter { return NewFakeDriver() },
	DiskWriter: func() engine.DriverAdapter { return NewDiskWriter() },
	Null:       func() engine.DriverAdapter { return NewNullDriver() },
}

// This init registers the no-tag JACK stub unless Jack is already in
// the registry; with the jack build tag, jack.go's own init registers
// the real driver over it. Either way Open(Jack, ...) resolves to
// something that fails cleanly instead of a missing-key panic.
func init() {
	if _, ok := registry[Jack]; !ok {
		registry[Jack] = func() engine.DriverAdapter { return newJackStub() }
	}
}

// Open resolves name to an unconnected driver adapter. For Auto it
// walks probeOrder, test-driving each candidate with Init+Connect at
// bufferSize and immediately Disconnecting it again, returning the
// first one that survived the round trip (still unconnected, ready
// for the caller's own StartAudioDrivers call). It falls back to Null
// if every candidate failed.
func Open(name Name, bufferSize int) (engine.DriverAdapter, error) {
	if name != Auto {
		factory, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("driver: unknown backend %q", name)
		}
		return factory(), nil
	}

	for _, candidate := range probeOrder {
		d := registry[candidate]()
		if err := d.Init(bufferSize); err != nil {
			engine.Log.Debugw("driver probe failed to init", "driver", candidate, "err", err)
			continue
		}
		if err := d.Connect(); err != nil {
			engine.Log.Debugw("driver probe failed to connect", "driver", candidate, "err", err)
			continue
		}
		d.Disconnect()
		engine.Log.Infow("driver selected", "driver", candidate)
		return d, nil
	}

	engine.Log.Warnw("no audio backend available, falling back to Null")
	return NewNullDriver(), nil
}
