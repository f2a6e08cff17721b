package fx

// Comb is a one-shot comb filter reverb: constructed from a complete
// block of sample data, it cannot be fed more afterward.
type Comb struct {
	delayOffset int
	readPos     int
	audio       []int16
}

// NewComb applies a comb-filter reverb to in and returns a Chain that
// drains the processed result.
func NewComb(in []int16, decay float32, delayMs, sampleRate int) *Comb {
	c := &Comb{
		delayOffset: (delayMs * sampleRate) / 1000,
		audio:       make([]int16, len(in)),
	}
	copy(c.audio, in)
	for i := 0; i < len(in)/2-c.delayOffset; i++ {
		c.audio[(i+c.delayOffset)*2+0] += int16(float32(c.audio[i*2+0]) * decay)
		c.audio[(i+c.delayOffset)*2+1] += int16(float32(c.audio[i*2+1]) * decay)
	}
	return c
}

// InputSamples is a no-op: Comb is constructed from a complete block
// and cannot accept more.
func (c *Comb) InputSamples(in []int16) int { return 0 }

func (c *Comb) GetAudio(out []int16) int {
	n := len(out)
	if c.readPos+n > len(c.audio) {
		n = len(c.audio) - c.readPos
	}
	if n <= 0 {
		return 0
	}
	copy(out, c.audio[c.readPos:c.readPos+n])
	c.readPos += n
	return n
}

// CombAdd is a comb filter that can be fed audio incrementally. It
// does not discard used samples and has no upper bound on memory used.
type CombAdd struct {
	audio       []int16
	delayOffset int
	readPos     int
	writePos    int
	decay       float32
}

// NewCombAdd returns an empty incremental comb filter sized for
// initialSize sample pairs.
func NewCombAdd(initialSize int, decay float32, delayMs, sampleRate int) *CombAdd {
	return &CombAdd{
		delayOffset: (delayMs * sampleRate) / 1000,
		audio:       make([]int16, 0, initialSize*2),
		decay:       decay,
	}
}

func (c *CombAdd) InputSamples(in []int16) int {
	c.audio = append(c.audio, in...)
	if len(c.audio) > c.delayOffset*2 {
		ns := len(c.audio) - (c.delayOffset*2 + c.writePos)
		for i := 0; i < ns; i++ {
			c.audio[i+c.delayOffset*2+c.writePos] += int16(float32(c.audio[i+c.writePos]) * c.decay)
		}
		c.writePos += ns
	}
	rem := c.delayOffset*2 - len(c.audio)
	if rem < 0 {
		rem = 0
	}
	return rem
}

func (c *CombAdd) GetAudio(out []int16) int {
	wanted := len(out)
	have := len(c.audio) - c.readPos
	if wanted > have {
		wanted = have
	}
	if wanted > 0 {
		copy(out, c.audio[c.readPos:c.readPos+wanted])
		c.readPos += wanted
	}
	return wanted
}
