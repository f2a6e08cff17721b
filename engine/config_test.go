package engine

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func TestLoadConfigNilViperReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig(nil) error: %v", err)
	}
	want := defaultConfig()
	if cfg != want {
		t.Errorf("LoadConfig(nil) = %+v, want defaults %+v", cfg, want)
	}
}

func TestBindFlagsAndLoadConfigAppliesOverrides(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	if err := fs.Parse([]string{"--bufferSize=2048", "--useMetronome=true"}); err != nil {
		t.Fatalf("flag parse error: %v", err)
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		t.Fatalf("BindPFlags error: %v", err)
	}

	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.BufferSize != 2048 {
		t.Errorf("BufferSize = %d, want 2048", cfg.BufferSize)
	}
	if !cfg.UseMetronome {
		t.Error("UseMetronome = false, want true")
	}
	if cfg.AudioDriver != "Auto" {
		t.Errorf("AudioDriver = %q, want default %q (unset flag)", cfg.AudioDriver, "Auto")
	}
}

func TestDefaultConfigMidiChannelFilterAcceptsAll(t *testing.T) {
	cfg := defaultConfig()
	if cfg.MidiChannelFilter != -1 {
		t.Errorf("default MidiChannelFilter = %d, want -1 (accept all channels)", cfg.MidiChannelFilter)
	}
}

func TestLogIsInitialized(t *testing.T) {
	if Log == nil {
		t.Fatal("package-level Log was not initialized")
	}
}
