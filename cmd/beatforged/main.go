// beatforged is the interactive host binary: it opens an audio
// driver, wires a reference sampler and an optional MIDI input, and
// lets a terminal keyboard drive the transport the way
// cmd/modplay/play.go drove a *modplayer.Player.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"atomicgo.dev/keyboard"
	"atomicgo.dev/keyboard/keys"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/beatforge/beatforge/driver"
	"github.com/beatforge/beatforge/engine"
	"github.com/beatforge/beatforge/eventqueue"
	"github.com/beatforge/beatforge/midiinput"
	"github.com/beatforge/beatforge/render"
	"github.com/beatforge/beatforge/transport"
)

const (
	escape     = "\x1b["
	hideCursor = escape + "?25l"
	showCursor = escape + "?25h"

	demoPatternTicks = 192 // one 4/4 bar at 48 ticks/quarter
)

var (
	cyan    = color.New(color.FgCyan).SprintfFunc()
	magenta = color.New(color.FgMagenta).SprintfFunc()
	green   = color.New(color.FgGreen).SprintfFunc()
)

// host owns the engine lifecycle plus the keyboard/UI goroutines, the
// way cmd/modplay/play.go's AudioPlayer owns a *modplayer.Player plus
// the stream and keyboard listener.
type host struct {
	eng       *engine.Engine
	drv       engine.DriverAdapter
	midi      *midiinput.Input
	uiWriter  io.Writer
	wg        sync.WaitGroup
	stopOnce  sync.Once
	stopCh    chan struct{}
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("beatforged: ")

	drumkitPath := ""
	midiPort := ""

	root := &cobra.Command{
		Use:   "beatforged",
		Short: "Interactive drum-machine transport host",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, drumkitPath, midiPort)
		},
	}
	engine.BindFlags(root.Flags())
	root.Flags().StringVar(&drumkitPath, "drumkit", "", "path to a bundled drumkit sample file")
	root.Flags().StringVar(&midiPort, "midiPort", "", "MIDI input port name (empty = first available)")

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(cmd *cobra.Command, drumkitPath, midiPort string) error {
	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	cfg, err := engine.LoadConfig(v)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	eng := engine.New(48000, 48)
	eng.Scheduler.UseMetronome = cfg.UseMetronome
	eng.Scheduler.MetronomeInstrumentID = -1

	if drumkitPath != "" {
		raw, err := os.ReadFile(drumkitPath)
		if err != nil {
			return fmt.Errorf("reading drumkit: %w", err)
		}
		kit, err := render.LoadDrumkit(raw)
		if err != nil {
			return fmt.Errorf("parsing drumkit: %w", err)
		}
		eng.Sampler = render.NewReferenceSampler(kit, eng.SampleRate)
	}

	drv, err := driver.Open(driver.Name(cfg.AudioDriver), cfg.BufferSize)
	if err != nil {
		return fmt.Errorf("opening driver: %w", err)
	}
	if pad, ok := drv.(interface{ SetCallback(func(int)) }); ok {
		pad.SetCallback(func(n int) { eng.Process(n) })
	}
	if err := eng.StartAudioDrivers(drv, cfg.BufferSize); err != nil {
		return fmt.Errorf("starting audio driver: %w", err)
	}

	if err := eng.SetSong(&transport.Song{SizeInTicks: demoPatternTicks}, nil); err != nil {
		return fmt.Errorf("setting song: %w", err)
	}
	setupDemoSong(eng)

	h := &host{eng: eng, drv: drv, uiWriter: os.Stdout, stopCh: make(chan struct{})}

	if cfg.MidiDriver != "None" {
		in := midiinput.New(eng)
		in.ChannelFilter = cfg.MidiChannelFilter
		in.NoteOffIgnore = cfg.MidiNoteOffIgnore
		in.FixedMapping = cfg.MidiFixedMapping
		in.DiscardNoteAfterAction = cfg.MidiDiscardNoteAfterAction
		if err := in.Open(midiPort); err != nil {
			engine.Log.Warnw("midi input unavailable", "err", err)
		} else {
			h.midi = in
		}
	}

	h.setupSignalHandlers()
	h.setupKeyboardHandlers()
	h.renderUI()

	<-h.stopCh
	return nil
}

// setupDemoSong builds the single always-playing pattern this host
// uses to exercise the engine: song-file parsing is out of scope for
// this core, so there is nothing richer to load here.
func setupDemoSong(eng *engine.Engine) {
	pattern := &transport.Pattern{ID: 0, LengthInTicks: demoPatternTicks}
	eng.Scheduler.Patterns = map[int]*transport.Pattern{0: pattern}
	eng.Audible.PlayingPatterns = []int{0}
	eng.Queuing.PlayingPatterns = []int{0}
	eng.Audible.Bpm = 120
	eng.Queuing.Bpm = 120
}

func (h *host) setupSignalHandlers() {
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		<-sigch
		h.shutdown()
	}()
}

func (h *host) setupKeyboardHandlers() {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		keyboard.Listen(func(key keys.Key) (stop bool, err error) {
			switch {
			case key.Code == keys.CtrlC || key.Code == keys.Escape:
				h.shutdown()
				return true, nil
			case key.Code == keys.Space:
				h.togglePlay()
			case key.Code == keys.RuneKey && len(key.Runes) > 0 && key.Runes[0] == 'q':
				h.shutdown()
				return true, nil
			}
			return false, nil
		})
	}()
}

func (h *host) togglePlay() {
	if h.eng.State() == engine.StatePlaying {
		if err := h.eng.Stop(); err != nil {
			engine.Log.Debugw("stop rejected", "err", err)
		}
		return
	}
	if err := h.eng.Play(); err != nil {
		engine.Log.Debugw("play rejected", "err", err)
	}
}

func (h *host) shutdown() {
	h.stopOnce.Do(func() {
		h.eng.StopAudioDrivers()
		if h.midi != nil {
			h.midi.Close()
		}
		fmt.Fprint(h.uiWriter, showCursor)
		close(h.stopCh)
	})
}

func (h *host) renderUI() {
	fmt.Fprint(h.uiWriter, hideCursor)
	fmt.Fprintln(h.uiWriter, green("beatforged")+" — space: play/stop, q: quit")

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for ev := range h.eng.Events.Events() {
			switch ev.Kind {
			case eventqueue.EventStateChanged:
				fmt.Fprintf(h.uiWriter, "%s %s\n", cyan("state"), h.eng.State())
			case eventqueue.EventXrun:
				fmt.Fprintf(h.uiWriter, "%s\n", magenta("xrun"))
			case eventqueue.EventError:
				fmt.Fprintf(h.uiWriter, "%s %v\n", magenta("error"), ev.Err)
			}
			select {
			case <-h.stopCh:
				return
			default:
			}
		}
	}()
}
