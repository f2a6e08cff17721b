package engine

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Log is the engine's package-level logger. Callers (cmd/beatforged,
// tests) may swap it for zap.NewNop() or a custom core; it defaults to
// a development logger the way a small CLI tool typically does.
var Log *zap.SugaredLogger

func init() {
	l, err := zap.NewDevelopment()
	if err != nil {
		l = zap.NewNop()
	}
	Log = l.Sugar()
}

// Config holds the engine's recognised configuration surface.
type Config struct {
	BufferSize int    `mapstructure:"bufferSize"`
	AudioDriver string `mapstructure:"audioDriver"`
	MidiDriver  string `mapstructure:"midiDriver"`

	UseMetronome     bool    `mapstructure:"useMetronome"`
	MetronomeVolume  float64 `mapstructure:"metronomeVolume"`

	MidiChannelFilter int  `mapstructure:"midiChannelFilter"`
	MidiNoteOffIgnore bool `mapstructure:"midiNoteOffIgnore"`
	MidiFixedMapping  bool `mapstructure:"midiFixedMapping"`

	PlaySelectedInstrument     bool `mapstructure:"playSelectedInstrument"`
	MidiDiscardNoteAfterAction bool `mapstructure:"midiDiscardNoteAfterAction"`

	HumanizeTimeValue     float64 `mapstructure:"humanizeTimeValue"`
	HumanizeVelocityValue float64 `mapstructure:"humanizeVelocityValue"`
	SwingFactor           float64 `mapstructure:"swingFactor"`
}

// defaultConfig returns the floor every unset configuration value
// falls back to.
func defaultConfig() Config {
	return Config{
		BufferSize:        1024,
		AudioDriver:       "Auto",
		MidiDriver:        "None",
		UseMetronome:      false,
		MetronomeVolume:   0.8,
		MidiChannelFilter: -1,
	}
}

// BindFlags registers this configuration's fields as pflag flags on
// fs, so a host binary can override config-file values from the
// command line.
func BindFlags(fs *pflag.FlagSet) {
	d := defaultConfig()
	fs.Int("bufferSize", d.BufferSize, "audio buffer size in frames")
	fs.String("audioDriver", d.AudioDriver, "audio driver tag (Auto, PortAudio, JACK, DiskWriter, Null, ...)")
	fs.String("midiDriver", d.MidiDriver, "midi driver tag (ALSA, PortMidi, CoreMIDI, JACK-MIDI, None)")
	fs.Bool("useMetronome", d.UseMetronome, "enable the metronome click")
	fs.Float64("metronomeVolume", d.MetronomeVolume, "metronome click volume")
	fs.Int("midiChannelFilter", d.MidiChannelFilter, "midi channel filter, -1 for all")
	fs.Bool("midiNoteOffIgnore", false, "ignore incoming midi note-off events")
	fs.Bool("midiFixedMapping", false, "map midi notes to instruments by fixed note number")
	fs.Bool("playSelectedInstrument", false, "route midi notes to the currently selected instrument")
	fs.Bool("midiDiscardNoteAfterAction", false, "discard a midi note once it has triggered an action")
	fs.Float64("humanizeTimeValue", 0, "song-wide humanize-time amount")
	fs.Float64("humanizeVelocityValue", 0, "song-wide humanize-velocity amount")
	fs.Float64("swingFactor", 0, "song-wide swing amount, in [0,1]")
}

// LoadConfig reads configuration from v (already populated from a
// config file and/or bound flags), applying defaultConfig as the
// floor for anything unset.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := defaultConfig()
	if v == nil {
		return cfg, nil
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
