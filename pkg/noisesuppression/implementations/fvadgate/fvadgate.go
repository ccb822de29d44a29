//go:build fvad
// +build fvad

package fvadgate

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/josharian/fvad"
	"github.com/xaionaro-go/silentstream/pkg/noisesuppression"
)

const (
	// aggressiveness of libfvad, 0 (least) to 3 (most aggressive filtering).
	vadMode = 2
)

// FVADGate is a FrameDenoiser that does not denoise: the frame passes
// through unmodified, while the voice-activity probability comes from
// libfvad (the WebRTC VAD). It keeps voice gating functional in builds
// without RNNoise.
type FVADGate struct {
	Locker   sync.Mutex
	Detector *fvad.Detector
	PCM16    []int16
}

var _ noisesuppression.FrameDenoiser = (*FVADGate)(nil)

func New() (*FVADGate, error) {
	d := fvad.NewDetector()
	if err := d.SetMode(vadMode); err != nil {
		d.Close()
		return nil, fmt.Errorf("unable to set the VAD mode: %w", err)
	}
	if err := d.SetSampleRate(int(noisesuppression.SampleRate)); err != nil {
		d.Close()
		return nil, fmt.Errorf("unable to set the VAD sample rate: %w", err)
	}
	return &FVADGate{
		Detector: d,
		PCM16:    make([]int16, noisesuppression.FrameSize),
	}, nil
}

func (g *FVADGate) Close() error {
	g.Locker.Lock()
	defer g.Locker.Unlock()
	if g.Detector == nil {
		return fmt.Errorf("double-free attempt")
	}
	g.Detector.Close()
	g.Detector = nil
	return nil
}

// DenoiseFrame expects samples in the 16-bit amplitude domain, which makes
// the int16 conversion for libfvad a plain clamp.
func (g *FVADGate) DenoiseFrame(ctx context.Context, voice, noisy []float32) (float64, error) {
	if len(noisy) != noisesuppression.FrameSize {
		return 0, fmt.Errorf("the size of the input frame is %d, expected %d", len(noisy), noisesuppression.FrameSize)
	}
	if len(voice) != len(noisy) {
		return 0, fmt.Errorf("lengths of the voice and noisy slices are not equal: %d != %d", len(voice), len(noisy))
	}

	g.Locker.Lock()
	defer g.Locker.Unlock()
	if g.Detector == nil {
		return 0, fmt.Errorf("the detector is already closed")
	}

	for idx, sample := range noisy {
		switch {
		case sample > math.MaxInt16:
			g.PCM16[idx] = math.MaxInt16
		case sample < math.MinInt16:
			g.PCM16[idx] = math.MinInt16
		default:
			g.PCM16[idx] = int16(sample)
		}
	}

	active, err := g.Detector.Process(g.PCM16)
	if err != nil {
		return 0, fmt.Errorf("unable to process the frame: %w", err)
	}

	copy(voice, noisy)
	if active {
		return 1, nil
	}
	return 0, nil
}
