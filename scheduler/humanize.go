package scheduler

import (
	"math"
	"math/rand"
)

// gaussian returns a normally-distributed random value with standard
// deviation scale, via the Marsaglia polar method. No spare value is
// cached between calls, matching the one-shot usage pattern the
// scheduling algorithm calls it with (timing, velocity and pitch each
// want an independent draw).
func gaussian(rng *rand.Rand, scale float64) float64 {
	var x1, x2, w float64
	for {
		x1 = 2*rng.Float64() - 1
		x2 = 2*rng.Float64() - 1
		w = x1*x1 + x2*x2
		if w < 1 {
			break
		}
	}
	w = math.Sqrt(-2 * math.Log(w) / w)
	return x1 * w * scale
}
