// Package noisesuppression defines the contract of a frame-synchronous
// denoiser with voice-activity detection.
package noisesuppression

import (
	"context"
	"io"

	"github.com/xaionaro-go/silentstream/pkg/audio"
)

const (
	// SampleRate is the sample rate every FrameDenoiser operates at.
	SampleRate audio.SampleRate = 48000

	// FrameSize is the amount of mono samples in one processing frame
	// (10ms at SampleRate).
	FrameSize = 480
)

// FrameDenoiser consumes exactly one FrameSize-sized frame of mono samples
// per call and produces a denoised frame of the same length plus a
// voice-activity probability in [0, 1].
//
// Samples are expected in the 16-bit-PCM-equivalent amplitude range
// (i.e. multiplied by 32768), which is the training domain of the denoising
// models; the caller owns the scaling in both directions.
//
// Implementations hold recurrent state across calls, so frames must be fed
// in stream order.
type FrameDenoiser interface {
	io.Closer

	DenoiseFrame(ctx context.Context, voice, noisy []float32) (float64, error)
}
