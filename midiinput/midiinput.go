// Package midiinput decodes realtime MIDI input and routes it to the
// engine: note events reach the scheduler's NoteQueue, transport
// messages drive play/stop (no message relocates), and everything else (Control
// Change, Program Change, arbitrary SysEx) is handed to an ActionMap
// this package only defines the boundary for.
package midiinput

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/beatforge/beatforge/engine"
	"github.com/beatforge/beatforge/notequeue"
	"github.com/beatforge/beatforge/transport"
)

const (
	statusSysExStart = 0xF0
	statusStart      = 0xFA
	statusContinue   = 0xFB
	statusStop       = 0xFC
)

// ActionMap is the boundary to the MIDI-action mapper: deciding what a
// Control Change, Program Change or arbitrary SysEx message does is
// out of scope here, only how it reaches a mapper.
type ActionMap interface {
	// HandleNoteOn reports whether this note is bound to an action
	// rather than an instrument; when true the note is not also
	// forwarded to the note queue if DiscardNoteAfterAction is set.
	HandleNoteOn(channel, note, velocity uint8) bool
	// HandleControlChange reports whether it consumed the message.
	HandleControlChange(channel, controller, value uint8) bool
	HandleProgramChange(channel, program uint8) bool
	HandleSysEx(data []byte) bool
}

// NoteMapper resolves a MIDI note number to an instrument ID when
// FixedMapping is enabled.
type NoteMapper interface {
	InstrumentForNote(note uint8) (instrumentID int, ok bool)
}

// Input listens on one MIDI input port and decodes it against an
// Engine.
type Input struct {
	Engine  *engine.Engine
	Actions ActionMap
	Mapper  NoteMapper

	// ChannelFilter is -1 (accept every channel) or an exact channel
	// number 0-15.
	ChannelFilter int
	// NoteOffIgnore drops NoteOff (and velocity-0 NoteOn) instead of
	// stopping the matching voice.
	NoteOffIgnore bool
	// FixedMapping routes through Mapper instead of
	// SelectedInstrumentID.
	FixedMapping bool
	// DiscardNoteAfterAction drops a note that an ActionMap binding
	// already consumed instead of also queuing it.
	DiscardNoteAfterAction bool

	in   drivers.In
	stop func()
}

// New returns an Input with ChannelFilter defaulted to accept-all.
func New(e *engine.Engine) *Input {
	return &Input{Engine: e, ChannelFilter: -1}
}

// Open finds the named input port (matched the way midi.FindInPort
// does, by substring) and starts listening. An empty name opens the
// first available port.
func (in *Input) Open(portName string) error {
	var port drivers.In
	var err error
	if portName == "" {
		ins := midi.GetInPorts()
		if len(ins) == 0 {
			return fmt.Errorf("midiinput: no input ports available")
		}
		port = ins[0]
	} else {
		port, err = midi.FindInPort(portName)
		if err != nil {
			return fmt.Errorf("midiinput: %w", err)
		}
	}

	stop, err := midi.ListenTo(port, in.handle, midi.UseSysEx())
	if err != nil {
		return fmt.Errorf("midiinput: listen failed: %w", err)
	}

	in.in = port
	in.stop = stop
	return nil
}

// Close stops listening and releases the port.
func (in *Input) Close() {
	if in.stop != nil {
		in.stop()
		in.stop = nil
	}
}

func (in *Input) handle(msg midi.Message, _ int32) {
	var ch, key, vel, cc, val, prog uint8

	switch {
	case msg.GetNoteOn(&ch, &key, &vel):
		if !in.acceptChannel(ch) {
			return
		}
		if vel == 0 {
			in.handleNoteOff(ch, key)
			return
		}
		in.handleNoteOn(ch, key, vel)

	case msg.GetNoteOff(&ch, &key, &vel):
		if !in.acceptChannel(ch) {
			return
		}
		in.handleNoteOff(ch, key)

	case msg.GetControlChange(&ch, &cc, &val):
		if !in.acceptChannel(ch) {
			return
		}
		if in.Actions != nil {
			in.Actions.HandleControlChange(ch, cc, val)
		}

	case msg.GetProgramChange(&ch, &prog):
		if !in.acceptChannel(ch) {
			return
		}
		if in.Actions != nil {
			in.Actions.HandleProgramChange(ch, prog)
		}

	default:
		in.handleRaw(msg.Bytes())
	}
}

// acceptChannel applies the channel filter before any further
// processing.
func (in *Input) acceptChannel(ch uint8) bool {
	return in.ChannelFilter < 0 || int(ch) == in.ChannelFilter
}

func (in *Input) handleRaw(raw []byte) {
	if len(raw) == 0 {
		return
	}
	switch raw[0] {
	case statusStart, statusContinue:
		if err := in.Engine.Play(); err != nil {
			engine.Log.Debugw("midi transport start/continue ignored", "err", err)
		}
	case statusStop:
		if err := in.Engine.Stop(); err != nil {
			engine.Log.Debugw("midi transport stop ignored", "err", err)
		}
	case statusSysExStart:
		in.handleSysEx(raw)
	}
}

// handleSysEx recognizes MMC transport commands (F0 7F <device> 06
// <cmd> F7) directly since they are a standardized opcode, not part
// of the out-of-scope general action map; everything else is handed
// to Actions.
func (in *Input) handleSysEx(data []byte) {
	const (
		mmcPlay  = 0x02
		mmcStop  = 0x01
		mmcPause = 0x09
	)
	if len(data) >= 6 && data[1] == 0x7F && data[3] == 0x06 {
		switch data[4] {
		case mmcPlay:
			_ = in.Engine.Play()
			return
		case mmcStop, mmcPause:
			_ = in.Engine.Stop()
			return
		}
	}
	if in.Actions != nil {
		in.Actions.HandleSysEx(data)
	}
}

func (in *Input) handleNoteOn(ch, key, vel uint8) {
	if in.Actions != nil && in.Actions.HandleNoteOn(ch, key, vel) && in.DiscardNoteAfterAction {
		return
	}

	instrumentID, ok := in.resolveInstrument(key)
	if !ok {
		return
	}

	note := notequeue.Note{
		Note: transport.Note{
			InstrumentID: instrumentID,
			Velocity:     float64(vel) / 127.0,
		},
		Instrument: in.Engine.Scheduler.Instruments[instrumentID],
	}
	in.Engine.PushMidiNote(note)
}

func (in *Input) handleNoteOff(ch, key uint8) {
	if in.NoteOffIgnore {
		return
	}
	instrumentID, ok := in.resolveInstrument(key)
	if !ok {
		return
	}
	note := notequeue.Note{
		Note: transport.Note{
			InstrumentID: instrumentID,
			NoteOff:      true,
		},
		Instrument: in.Engine.Scheduler.Instruments[instrumentID],
	}
	in.Engine.PushMidiNote(note)
}

func (in *Input) resolveInstrument(key uint8) (int, bool) {
	if in.FixedMapping && in.Mapper != nil {
		return in.Mapper.InstrumentForNote(key)
	}
	return in.Engine.SelectedInstrumentID, true
}
