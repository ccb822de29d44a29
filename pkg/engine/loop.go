package engine

import (
	"context"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/silentstream/pkg/audio"
	"github.com/xaionaro-go/silentstream/pkg/ringchan"
)

const (
	// pcm16Scale shifts samples into the 16-bit-PCM-equivalent amplitude
	// range the denoising models are trained on.
	pcm16Scale = 32768

	// starvationRetryDelay is how long the loop sleeps when not enough input
	// samples are buffered yet. This is back-pressure handling, not an error:
	// only this goroutine may ever suspend, never the driver callbacks.
	starvationRetryDelay = 5 * time.Millisecond
)

// processLoop runs on a dedicated goroutine while the running flag is set.
// The flag is checked only at the head of the loop, so Stop is observed
// within roughly one frame period; the loop is never cancelled mid-frame.
func (e *Engine) processLoop(ctx context.Context, s *session) {
	logger.Debugf(ctx, "processLoop")
	defer logger.Debugf(ctx, "/processLoop")

	defer close(s.doneChan)
	defer func() {
		// The loop owns the denoiser: closing it from Stop could free the
		// recurrent state under a DenoiseFrame still in flight.
		if err := s.denoiser.Close(); err != nil {
			logger.Errorf(ctx, "unable to close the denoiser: %v", err)
		}
		if s.monitor != nil {
			s.monitor.Close()
		}
	}()

	var (
		rawFrame       = make([]float32, FrameSize)
		scaledFrame    = make([]float32, FrameSize)
		denoisedFrame  = make([]float32, FrameSize)
		silenceFrame   = make([]float32, FrameSize)
		converterInput []float32
	)

	for e.running.Load() {
		// Independent snapshots; no joint atomicity needed (or wanted).
		threshold := e.vadThreshold.Load()
		bypass := e.bypass.Load()

		var frame []float32
		if s.converter != nil {
			needed := s.converter.InputFramesNext()
			if s.inputRing.Len() < needed {
				time.Sleep(starvationRetryDelay)
				continue
			}
			if cap(converterInput) < needed {
				converterInput = make([]float32, needed)
			}
			converterInput = converterInput[:needed]
			popInto(s.inputRing, converterInput)

			resampled, err := s.converter.Process(converterInput)
			if err != nil {
				// The frame is skipped, the loop continues.
				logger.Errorf(ctx, "resampling failed: %v", err)
				continue
			}
			frame = resampled
		} else {
			if s.inputRing.Len() < FrameSize {
				time.Sleep(starvationRetryDelay)
				continue
			}
			popInto(s.inputRing, rawFrame)
			frame = rawFrame
		}

		if bypass {
			e.emitFrame(s, frame)
			continue
		}

		for idx, sample := range frame {
			scaledFrame[idx] = sample * pcm16Scale
		}
		vadProb, err := s.denoiser.DenoiseFrame(ctx, denoisedFrame, scaledFrame)
		if err != nil {
			logger.Errorf(ctx, "denoising failed: %v", err)
			continue
		}

		if vadProb < float64(threshold) {
			// Gated: silence goes downstream, telemetry keeps its value.
			e.emitFrame(s, silenceFrame)
			continue
		}

		for idx := range denoisedFrame {
			denoisedFrame[idx] /= pcm16Scale
		}
		e.emitFrame(s, denoisedFrame)
		e.currentVolume.Store(audio.RMS(denoisedFrame))
	}
}

// emitFrame pushes the frame into the output ring, dropping samples that do
// not fit (the same lossy policy as capture), and mirrors it to the monitor
// tap if one is attached.
func (e *Engine) emitFrame(s *session, frame []float32) {
	for _, sample := range frame {
		s.outputRing.TryPush(sample)
	}
	if s.monitor != nil {
		s.monitor.PushFrame(frame)
	}
}

func popInto(ring *ringchan.RingChannel[float32], dst []float32) {
	for idx := range dst {
		sample, _ := ring.TryPop()
		dst[idx] = sample
	}
}
