// beatforge-diskwrite renders a fixed span of transport ticks directly
// to a WAVE file, synchronously and without a realtime deadline, the
// way cmd/modwav/main.go drove a *modplayer.Player straight into a
// wav.Writer with no audio device in the loop at all.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/beatforge/beatforge/driver"
	"github.com/beatforge/beatforge/engine"
	"github.com/beatforge/beatforge/render"
	"github.com/beatforge/beatforge/transport"
)

const (
	sampleRate    = 48000
	resolution    = 48
	bufferFrames  = 2048
	patternTicks  = 192
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("beatforge-diskwrite: ")

	outPath := flag.String("wav", "", "output WAVE file path")
	drumkitPath := flag.String("drumkit", "", "path to a bundled drumkit sample file")
	ticks := flag.Float64("ticks", patternTicks*4, "number of transport ticks to render")
	flag.Parse()

	if *outPath == "" {
		log.Fatal("missing -wav output path")
	}

	eng := engine.New(sampleRate, resolution)
	eng.Scheduler.UseMetronome = true
	eng.Scheduler.MetronomeInstrumentID = -1

	if *drumkitPath != "" {
		raw, err := os.ReadFile(*drumkitPath)
		if err != nil {
			log.Fatal(err)
		}
		kit, err := render.LoadDrumkit(raw)
		if err != nil {
			log.Fatal(err)
		}
		eng.Sampler = render.NewReferenceSampler(kit, eng.SampleRate)
	}

	wavF, err := os.Create(*outPath)
	if err != nil {
		log.Fatal(err)
	}
	defer wavF.Close()

	dw := driver.NewDiskWriter()
	if err := dw.Open(wavF, sampleRate); err != nil {
		log.Fatal(err)
	}

	if err := eng.StartAudioDrivers(dw, bufferFrames); err != nil {
		log.Fatal(err)
	}

	if err := eng.SetSong(&transport.Song{SizeInTicks: *ticks}, nil); err != nil {
		log.Fatal(err)
	}

	pattern := &transport.Pattern{ID: 0, LengthInTicks: patternTicks}
	eng.Scheduler.Patterns = map[int]*transport.Pattern{0: pattern}
	eng.Audible.PlayingPatterns = []int{0}
	eng.Queuing.PlayingPatterns = []int{0}
	eng.Audible.Bpm = 120
	eng.Queuing.Bpm = 120

	if err := eng.Play(); err != nil {
		log.Fatal(err)
	}

	for eng.Audible.Tick < *ticks {
		if eng.Process(bufferFrames) == engine.ProcessRetryBuffer {
			continue
		}
		if err := dw.WriteFrame(bufferFrames); err != nil {
			log.Fatal(err)
		}
	}

	if _, err := dw.Finish(); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote %s\n", *outPath)
}
