// Package resampler converts audio between sample rates using a windowed
// FFT with a fixed-size output frame.
//
// Each Process call consumes the amount of input samples reported by
// InputFramesNext and emits exactly one output frame, so the downstream
// consumer (a denoiser with a hard frame-size requirement) never has to
// re-chunk. The input requirement varies between calls when the rate ratio
// is not integral; the fractional remainder is carried over, so the long-run
// consumption matches the ratio exactly.
package resampler

import (
	"fmt"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/xaionaro-go/silentstream/pkg/audio"
)

// FixedOut is a mono sample-rate converter with a fixed output frame size.
//
// It is not safe for concurrent use; it is expected to be owned by a single
// processing loop.
type FixedOut struct {
	inRate       audio.SampleRate
	outRate      audio.SampleRate
	outFrameSize int

	need  int
	carry uint64 // fractional input debt, in units of 1/outRate of a sample
}

// NewFixedOut returns a converter from inRate to outRate emitting
// outFrameSize samples per Process call.
func NewFixedOut(
	inRate audio.SampleRate,
	outRate audio.SampleRate,
	outFrameSize int,
) (*FixedOut, error) {
	if inRate == 0 || outRate == 0 {
		return nil, fmt.Errorf("invalid sample rates: %d -> %d", inRate, outRate)
	}
	if outFrameSize <= 0 {
		return nil, fmt.Errorf("invalid output frame size: %d", outFrameSize)
	}
	r := &FixedOut{
		inRate:       inRate,
		outRate:      outRate,
		outFrameSize: outFrameSize,
	}
	r.advance()
	return r, nil
}

// InputFramesNext returns the amount of input samples the next Process call
// requires.
func (r *FixedOut) InputFramesNext() int {
	return r.need
}

// OutputFrameSize returns the fixed amount of samples every Process call
// emits.
func (r *FixedOut) OutputFrameSize() int {
	return r.outFrameSize
}

func (r *FixedOut) advance() {
	total := uint64(r.outFrameSize)*uint64(r.inRate) + r.carry
	r.need = int(total / uint64(r.outRate))
	r.carry = total % uint64(r.outRate)
}

// Process consumes exactly InputFramesNext() samples and returns one output
// frame of OutputFrameSize() samples.
func (r *FixedOut) Process(in []float32) ([]float32, error) {
	if len(in) != r.need {
		return nil, fmt.Errorf("expected %d input samples, received %d", r.need, len(in))
	}

	out := make([]float32, r.outFrameSize)
	if r.inRate == r.outRate {
		copy(out, in)
		r.advance()
		return out, nil
	}

	// Spectral resize: transform the window, keep the shared low-frequency
	// bins (mirrored to preserve Hermitian symmetry, so the inverse transform
	// is real), and scale for the changed window length.
	inN := len(in)
	outN := r.outFrameSize

	window := make([]float64, inN)
	for i, v := range in {
		window[i] = float64(v)
	}
	spectrum := fft.FFTReal(window)

	resized := make([]complex128, outN)
	resized[0] = spectrum[0]
	keep := inN
	if outN < keep {
		keep = outN
	}
	keep = (keep - 1) / 2
	for k := 1; k <= keep; k++ {
		resized[k] = spectrum[k]
		resized[outN-k] = cmplx.Conj(spectrum[k])
	}

	synthesized := fft.IFFT(resized)
	scale := float64(outN) / float64(inN)
	for i := range out {
		out[i] = float32(real(synthesized[i]) * scale)
	}

	r.advance()
	return out, nil
}
