package sim

import (
	"log"
	"math"
	"time"
)

// Freq defines the type of frequency
type Freq float64

// Defines the unit of frequency
const (
	Hz  Freq = 1
	KHz Freq = 1e3
)

// Period returns the time between two consecutive ticks
func (f Freq) Period() time.Duration {
	if f <= 0 {
		log.Panic("frequency must be positive")
	}

	return time.Duration(float64(time.Second) / float64(f))
}

// Seconds returns the period as a fraction of a second.
func (f Freq) Seconds() float64 {
	return f.Period().Seconds()
}

// Cycle converts an elapsed duration to the number of ticks passed.
func (f Freq) Cycle(elapsed time.Duration) uint64 {
	return uint64(math.Floor(elapsed.Seconds() * float64(f)))
}
