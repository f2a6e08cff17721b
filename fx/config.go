package fx

import "fmt"

// FromConfig selects a Chain implementation from a reverb config tag.
func FromConfig(reverb string, sampleRate int) (Chain, error) {
	decay := float32(0.2)
	delayMs := 150
	var err error
	switch reverb {
	case "medium":
		decay, delayMs = 0.3, 250
	case "silly":
		decay, delayMs = 0.5, 2500
	case "none":
		decay, delayMs = 0, 0
	case "light", "":
	default:
		err = fmt.Errorf("unrecognized reverb setting %q", reverb)
	}

	if decay == 0 {
		return NewPassThrough(10 * 1024), err
	}
	return NewCombAdd(10*1024, decay, delayMs, sampleRate), err
}
