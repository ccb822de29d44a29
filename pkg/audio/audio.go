package audio

import (
	"math"
)

// SampleRate is an amount of samples per second per channel.
type SampleRate uint32

// Channel is an amount of audio channels (1 -- mono, 2 -- stereo, ...).
type Channel uint16

// RMS returns the root-mean-square amplitude of the given samples.
//
// It is used as a loudness proxy for telemetry; an empty slice results in 0.
func RMS(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sumSq float64
	for _, sample := range samples {
		sumSq += float64(sample) * float64(sample)
	}
	return float32(math.Sqrt(sumSq / float64(len(samples))))
}
