// Package engine implements the real-time speech-enhancement pipeline:
// capture -> ring channel -> resample -> denoise/VAD-gate -> ring channel ->
// render, with thread-safe controls (VAD threshold, bypass) and volume
// telemetry.
package engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/silentstream/pkg/audio"
	"github.com/xaionaro-go/silentstream/pkg/engine/types"
	"github.com/xaionaro-go/silentstream/pkg/noisesuppression"
	"github.com/xaionaro-go/silentstream/pkg/noisesuppression/implementations/fvadgate"
	"github.com/xaionaro-go/silentstream/pkg/noisesuppression/implementations/rnnoise"
	"github.com/xaionaro-go/silentstream/pkg/resampler"
	"github.com/xaionaro-go/silentstream/pkg/ringchan"
)

const (
	// ProcessingSampleRate is the fixed internal rate everything is denoised
	// at; input at any other device rate goes through the resampler first.
	ProcessingSampleRate = noisesuppression.SampleRate

	// FrameSize is the amount of samples the denoiser consumes per call.
	FrameSize = noisesuppression.FrameSize

	// RingDuration is how much audio each ring channel holds.
	RingDuration = 100 * time.Millisecond

	// DefaultVADThreshold is the initial voice-activity gate threshold
	// (nominal range is 0.0 to 0.5).
	DefaultVADThreshold = 0.5
)

// DenoiserFactory constructs the denoiser for one session; it is invoked on
// every Start, since denoisers carry recurrent state that must not leak
// between sessions.
type DenoiserFactory func(ctx context.Context) (noisesuppression.FrameDenoiser, error)

// Engine owns the capture/render backends and the processing loop.
//
// Construct it once with New; Start/Stop may then be called repeatedly.
// A device change requires a full Stop-then-Start: there is deliberately no
// in-place reconfiguration, and Start while already running is unguarded
// (callers serialize around device changes).
type Engine struct {
	captureBackend types.CaptureBackend
	renderBackend  types.RenderBackend
	newDenoiser    DenoiserFactory
	monitorWriter  io.Writer

	vadThreshold  atomicFloat32
	bypass        atomic.Bool
	currentVolume atomicFloat32
	running       atomic.Bool

	sessionLocker sync.Mutex
	session       *session
}

// session is everything allocated by one Start call.
type session struct {
	captureStream types.CaptureStream
	renderStream  types.RenderStream
	inputRing     *ringchan.RingChannel[float32]
	outputRing    *ringchan.RingChannel[float32]
	denoiser      noisesuppression.FrameDenoiser
	converter     *resampler.FixedOut // nil: passthrough, no rate conversion
	monitor       *monitorTap
	doneChan      chan struct{}
}

type config struct {
	captureBackend types.CaptureBackend
	renderBackend  types.RenderBackend
	newDenoiser    DenoiserFactory
	monitorWriter  io.Writer
}

type Option func(*config)

// WithCaptureBackend overrides the automatically selected capture backend.
func WithCaptureBackend(backend types.CaptureBackend) Option {
	return func(cfg *config) {
		cfg.captureBackend = backend
	}
}

// WithRenderBackend overrides the automatically selected render backend.
func WithRenderBackend(backend types.RenderBackend) Option {
	return func(cfg *config) {
		cfg.renderBackend = backend
	}
}

// WithDenoiserFactory overrides the default denoiser selection.
func WithDenoiserFactory(factory DenoiserFactory) Option {
	return func(cfg *config) {
		cfg.newDenoiser = factory
	}
}

// WithMonitorWriter attaches a diagnostics writer that receives every emitted
// frame as float32 LE PCM (see monitorTap).
func WithMonitorWriter(w io.Writer) Option {
	return func(cfg *config) {
		cfg.monitorWriter = w
	}
}

func New(ctx context.Context, opts ...Option) *Engine {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.captureBackend == nil {
		cfg.captureBackend = NewCaptureBackendAuto(ctx)
	}
	if cfg.renderBackend == nil {
		cfg.renderBackend = NewRenderBackendAuto(ctx)
	}
	if cfg.newDenoiser == nil {
		cfg.newDenoiser = DefaultDenoiserFactory
	}

	e := &Engine{
		captureBackend: cfg.captureBackend,
		renderBackend:  cfg.renderBackend,
		newDenoiser:    cfg.newDenoiser,
		monitorWriter:  cfg.monitorWriter,
	}
	e.vadThreshold.Store(DefaultVADThreshold)
	return e
}

// DefaultDenoiserFactory prefers RNNoise, falls back to the libfvad
// passthrough gate, and as a last resort returns the passthrough dummy
// (audio flows, nothing is suppressed or gated).
func DefaultDenoiserFactory(ctx context.Context) (noisesuppression.FrameDenoiser, error) {
	if d, err := rnnoise.New(); err == nil {
		return d, nil
	} else {
		logger.Debugf(ctx, "RNNoise is not available: %v", err)
	}
	if d, err := fvadgate.New(); err == nil {
		logger.Warnf(ctx, "RNNoise is not available, gating on libfvad without denoising")
		return d, nil
	} else {
		logger.Debugf(ctx, "the libfvad gate is not available: %v", err)
	}
	logger.Warnf(ctx, "no denoiser is available, the audio will pass through unprocessed")
	return noisesuppression.NewDummy(), nil
}

// ListInputDevices returns the capture device names in catalog order.
// Enumeration failure is non-fatal and yields an empty list.
func (e *Engine) ListInputDevices(ctx context.Context) []string {
	devices, err := e.captureBackend.InputDevices(ctx)
	if err != nil {
		logger.Warnf(ctx, "unable to enumerate the input devices: %v", err)
		return nil
	}
	return deviceNames(devices)
}

// ListOutputDevices returns the render device names in catalog order.
// Enumeration failure is non-fatal and yields an empty list.
func (e *Engine) ListOutputDevices(ctx context.Context) []string {
	devices, err := e.renderBackend.OutputDevices(ctx)
	if err != nil {
		logger.Warnf(ctx, "unable to enumerate the output devices: %v", err)
		return nil
	}
	return deviceNames(devices)
}

func deviceNames(devices []types.DeviceInfo) []string {
	var names []string
	for _, device := range devices {
		names = append(names, device.Name)
	}
	return names
}

// Start opens both devices, allocates the ring channels, and spawns the
// processing loop. Any device-open or configuration failure is returned
// before the loop is spawned, with everything already opened closed back.
func (e *Engine) Start(
	ctx context.Context,
	inputDeviceIndex int,
	outputDeviceIndex int,
) error {
	inputDevices, err := e.captureBackend.InputDevices(ctx)
	if err != nil {
		return fmt.Errorf("unable to enumerate the input devices: %w", err)
	}
	if inputDeviceIndex < 0 || inputDeviceIndex >= len(inputDevices) {
		return fmt.Errorf("invalid input device index %d (have %d input devices)", inputDeviceIndex, len(inputDevices))
	}

	// The capture ring is sized at the device-native rate, the render ring at
	// the processing rate; both hold RingDuration worth of audio.
	captureRing := ringchan.New[float32](ringCapacity(inputDevices[inputDeviceIndex].DefaultSampleRate))
	captureStream, err := e.captureBackend.OpenCapture(ctx, inputDeviceIndex, captureRing)
	if err != nil {
		return fmt.Errorf("unable to open input device %d: %w", inputDeviceIndex, err)
	}

	renderRing := ringchan.New[float32](ringCapacity(ProcessingSampleRate))
	renderStream, err := e.renderBackend.OpenRender(ctx, outputDeviceIndex, renderRing)
	if err != nil {
		captureStream.Close()
		return fmt.Errorf("unable to open output device %d: %w", outputDeviceIndex, err)
	}

	denoiser, err := e.newDenoiser(ctx)
	if err != nil {
		captureStream.Close()
		renderStream.Close()
		return fmt.Errorf("unable to initialize a denoiser: %w", err)
	}

	var converter *resampler.FixedOut
	captureRate := captureStream.SampleRate()
	if captureRate != ProcessingSampleRate {
		converter, err = resampler.NewFixedOut(captureRate, ProcessingSampleRate, FrameSize)
		if err != nil {
			// Non-fatal: fall back to processing at the device-native rate.
			logger.Warnf(ctx, "unable to initialize a resampler %dHz->%dHz, processing unconverted: %v", captureRate, ProcessingSampleRate, err)
			converter = nil
		} else {
			logger.Debugf(ctx, "resampling %dHz->%dHz", captureRate, ProcessingSampleRate)
		}
	}

	var monitor *monitorTap
	if e.monitorWriter != nil {
		monitor = newMonitorTap(ctx, e.monitorWriter)
	}

	s := &session{
		captureStream: captureStream,
		renderStream:  renderStream,
		inputRing:     captureRing,
		outputRing:    renderRing,
		denoiser:      denoiser,
		converter:     converter,
		monitor:       monitor,
		doneChan:      make(chan struct{}),
	}

	e.sessionLocker.Lock()
	e.session = s
	e.sessionLocker.Unlock()

	e.running.Store(true)
	observability.Go(ctx, func() {
		e.processLoop(ctx, s)
	})
	return nil
}

// Stop signals the processing loop to exit (it observes the flag within
// roughly one frame period) and tears the hardware streams down. It does not
// wait for the loop: the loop closes the denoiser itself on exit.
func (e *Engine) Stop() error {
	e.running.Store(false)

	e.sessionLocker.Lock()
	s := e.session
	e.session = nil
	e.sessionLocker.Unlock()
	if s == nil {
		return nil
	}

	var mErr *multierror.Error
	if err := s.captureStream.Close(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to close the capture stream: %w", err))
	}
	if err := s.renderStream.Close(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to close the render stream: %w", err))
	}
	return mErr.ErrorOrNil()
}

// Close releases the backends. The engine is unusable afterwards.
func (e *Engine) Close() error {
	var mErr *multierror.Error
	if err := e.Stop(); err != nil {
		mErr = multierror.Append(mErr, err)
	}
	if err := e.captureBackend.Close(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to close the capture backend: %w", err))
	}
	if err := e.renderBackend.Close(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to close the render backend: %w", err))
	}
	return mErr.ErrorOrNil()
}

// IsRunning reports whether a processing loop is currently signalled to run.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// SetVADThreshold sets the voice-activity gate threshold. The update is
// visible to the pipeline eventually, typically within one frame period.
func (e *Engine) SetVADThreshold(threshold float32) {
	e.vadThreshold.Store(threshold)
}

func (e *Engine) VADThreshold() float32 {
	return e.vadThreshold.Load()
}

// SetBypass toggles bypass mode: the (resampled) input passes to the output
// unmodified, skipping denoise, gate and telemetry.
func (e *Engine) SetBypass(bypass bool) {
	e.bypass.Store(bypass)
}

func (e *Engine) Bypass() bool {
	return e.bypass.Load()
}

// CurrentVolume returns the RMS of the most recent voiced, non-bypassed
// frame; 0.0 while nothing voiced was emitted yet.
func (e *Engine) CurrentVolume() float32 {
	return e.currentVolume.Load()
}

func ringCapacity(rate audio.SampleRate) int {
	return int(RingDuration.Seconds() * float64(rate))
}
