package engine

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/silentstream/pkg/audio"
	"github.com/xaionaro-go/silentstream/pkg/engine/types"
	"github.com/xaionaro-go/silentstream/pkg/noisesuppression"
)

type fakeCaptureStream struct {
	Rate     audio.SampleRate
	IsClosed atomic.Bool
}

func (s *fakeCaptureStream) SampleRate() audio.SampleRate {
	return s.Rate
}

func (s *fakeCaptureStream) Close() error {
	s.IsClosed.Store(true)
	return nil
}

type fakeCaptureBackend struct {
	Devices []types.DeviceInfo
	Sink    types.SampleSink
	Stream  *fakeCaptureStream
}

func (b *fakeCaptureBackend) Close() error {
	return nil
}

func (b *fakeCaptureBackend) Ping(context.Context) error {
	return nil
}

func (b *fakeCaptureBackend) InputDevices(context.Context) ([]types.DeviceInfo, error) {
	return b.Devices, nil
}

func (b *fakeCaptureBackend) OpenCapture(
	ctx context.Context,
	deviceIndex int,
	sink types.SampleSink,
) (types.CaptureStream, error) {
	if deviceIndex < 0 || deviceIndex >= len(b.Devices) {
		return nil, fmt.Errorf("invalid input device index %d (have %d input devices)", deviceIndex, len(b.Devices))
	}
	b.Sink = sink
	b.Stream = &fakeCaptureStream{Rate: b.Devices[deviceIndex].DefaultSampleRate}
	return b.Stream, nil
}

type fakeRenderStream struct {
	IsClosed atomic.Bool
}

func (s *fakeRenderStream) Close() error {
	s.IsClosed.Store(true)
	return nil
}

type fakeRenderBackend struct {
	Devices []types.DeviceInfo
	Source  types.SampleSource
	Stream  *fakeRenderStream
}

func (b *fakeRenderBackend) Close() error {
	return nil
}

func (b *fakeRenderBackend) Ping(context.Context) error {
	return nil
}

func (b *fakeRenderBackend) OutputDevices(context.Context) ([]types.DeviceInfo, error) {
	return b.Devices, nil
}

func (b *fakeRenderBackend) OpenRender(
	ctx context.Context,
	deviceIndex int,
	source types.SampleSource,
) (types.RenderStream, error) {
	if deviceIndex < 0 || deviceIndex >= len(b.Devices) {
		return nil, fmt.Errorf("invalid output device index %d (have %d output devices)", deviceIndex, len(b.Devices))
	}
	b.Source = source
	b.Stream = &fakeRenderStream{}
	return b.Stream, nil
}

// scriptedDenoiser scales every sample by Gain and reports the currently
// configured voice probability.
type scriptedDenoiser struct {
	Gain       float32
	probBits   atomic.Uint64
	CloseCount atomic.Int32
}

var _ noisesuppression.FrameDenoiser = (*scriptedDenoiser)(nil)

func newScriptedDenoiser(gain float32, prob float64) *scriptedDenoiser {
	d := &scriptedDenoiser{Gain: gain}
	d.SetProb(prob)
	return d
}

func (d *scriptedDenoiser) SetProb(prob float64) {
	d.probBits.Store(math.Float64bits(prob))
}

func (d *scriptedDenoiser) DenoiseFrame(
	ctx context.Context,
	voice []float32,
	noisy []float32,
) (float64, error) {
	for idx, sample := range noisy {
		voice[idx] = sample * d.Gain
	}
	return math.Float64frombits(d.probBits.Load()), nil
}

func (d *scriptedDenoiser) Close() error {
	d.CloseCount.Add(1)
	return nil
}

func deviceCatalog(rate audio.SampleRate) []types.DeviceInfo {
	return []types.DeviceInfo{{
		Name:              "fake",
		DefaultSampleRate: rate,
		Channels:          1,
	}}
}

func newTestEngine(
	ctx context.Context,
	rate audio.SampleRate,
	denoiser *scriptedDenoiser,
	extraOpts ...Option,
) (*Engine, *fakeCaptureBackend, *fakeRenderBackend) {
	captureBackend := &fakeCaptureBackend{Devices: deviceCatalog(rate)}
	renderBackend := &fakeRenderBackend{Devices: deviceCatalog(ProcessingSampleRate)}
	opts := append([]Option{
		WithCaptureBackend(captureBackend),
		WithRenderBackend(renderBackend),
		WithDenoiserFactory(func(ctx context.Context) (noisesuppression.FrameDenoiser, error) {
			return denoiser, nil
		}),
	}, extraOpts...)
	return New(ctx, opts...), captureBackend, renderBackend
}

func pushSamples(t *testing.T, sink types.SampleSink, samples []float32) {
	for _, sample := range samples {
		require.True(t, sink.TryPush(sample))
	}
}

func collectSamples(t *testing.T, source types.SampleSource, amount int) []float32 {
	result := make([]float32, 0, amount)
	require.Eventually(t, func() bool {
		for len(result) < amount {
			sample, ok := source.TryPop()
			if !ok {
				return false
			}
			result = append(result, sample)
		}
		return true
	}, 5*time.Second, time.Millisecond)
	return result
}

func constFrame(value float32) []float32 {
	frame := make([]float32, FrameSize)
	for idx := range frame {
		frame[idx] = value
	}
	return frame
}

func TestEngineBypassPassthrough(t *testing.T) {
	ctx := context.Background()
	denoiser := newScriptedDenoiser(0.5, 1)
	e, captureBackend, renderBackend := newTestEngine(ctx, ProcessingSampleRate, denoiser)
	defer e.Close()

	e.SetBypass(true)
	require.NoError(t, e.Start(ctx, 0, 0))
	require.True(t, e.IsRunning())
	// The device rate equals the processing rate: no converter.
	require.Nil(t, e.session.converter)

	input := make([]float32, FrameSize)
	for idx := range input {
		input[idx] = float32(math.Sin(2 * math.Pi * float64(idx) / 100))
	}
	pushSamples(t, captureBackend.Sink, input)

	output := collectSamples(t, renderBackend.Source, FrameSize)
	require.Equal(t, input, output)
	require.Zero(t, e.CurrentVolume())
}

func TestEngineGatedFramesBecomeSilence(t *testing.T) {
	ctx := context.Background()
	denoiser := newScriptedDenoiser(1, 0)
	e, captureBackend, renderBackend := newTestEngine(ctx, ProcessingSampleRate, denoiser)
	defer e.Close()

	e.SetVADThreshold(0.3)
	require.NoError(t, e.Start(ctx, 0, 0))

	// Ten frames below the threshold: everything downstream is silence and
	// the volume telemetry is never touched.
	for frameIdx := 0; frameIdx < 10; frameIdx++ {
		pushSamples(t, captureBackend.Sink, constFrame(0.25))
		output := collectSamples(t, renderBackend.Source, FrameSize)
		require.Equal(t, constFrame(0), output)
	}
	require.Zero(t, e.CurrentVolume())
}

func TestEngineVoicedFrame(t *testing.T) {
	ctx := context.Background()
	denoiser := newScriptedDenoiser(0.5, 0.9)
	e, captureBackend, renderBackend := newTestEngine(ctx, ProcessingSampleRate, denoiser)
	defer e.Close()

	e.SetVADThreshold(0.3)
	require.NoError(t, e.Start(ctx, 0, 0))

	pushSamples(t, captureBackend.Sink, constFrame(0.5))
	output := collectSamples(t, renderBackend.Source, FrameSize)

	// The engine scales by 32768 before the denoiser and back after; with a
	// gain of 0.5 the round trip leaves exactly half the input amplitude.
	for idx, sample := range output {
		require.InDelta(t, 0.25, sample, 1e-5, "sample #%d", idx)
	}
	// The telemetry store happens right after the frame is emitted.
	require.Eventually(t, func() bool {
		return math.Abs(float64(audio.RMS(output)-e.CurrentVolume())) < 1e-5
	}, 5*time.Second, time.Millisecond)
}

func TestEngineGateThenVoice(t *testing.T) {
	ctx := context.Background()
	denoiser := newScriptedDenoiser(1, 0)
	e, captureBackend, renderBackend := newTestEngine(ctx, ProcessingSampleRate, denoiser)
	defer e.Close()

	e.SetVADThreshold(0.3)
	require.NoError(t, e.Start(ctx, 0, 0))

	// Below the threshold: silence downstream, the telemetry is untouched.
	pushSamples(t, captureBackend.Sink, constFrame(0.5))
	output := collectSamples(t, renderBackend.Source, FrameSize)
	require.Equal(t, constFrame(0), output)
	require.Zero(t, e.CurrentVolume())

	// Above the threshold: the frame is emitted and the telemetry becomes
	// its RMS (a constant 0.5 frame has an RMS of exactly 0.5).
	denoiser.SetProb(0.9)
	pushSamples(t, captureBackend.Sink, constFrame(0.5))
	output = collectSamples(t, renderBackend.Source, FrameSize)
	for idx, sample := range output {
		require.InDelta(t, 0.5, sample, 1e-5, "sample #%d", idx)
	}
	require.Eventually(t, func() bool {
		return math.Abs(float64(e.CurrentVolume()-0.5)) < 1e-5
	}, 5*time.Second, time.Millisecond)
}

func TestEngineThresholdBoundary(t *testing.T) {
	ctx := context.Background()
	denoiser := newScriptedDenoiser(1, 0.3)
	e, captureBackend, renderBackend := newTestEngine(ctx, ProcessingSampleRate, denoiser)
	defer e.Close()

	// probability == threshold is voiced, the gate is strictly "less than".
	e.SetVADThreshold(0.3)
	require.NoError(t, e.Start(ctx, 0, 0))

	pushSamples(t, captureBackend.Sink, constFrame(0.25))
	output := collectSamples(t, renderBackend.Source, FrameSize)
	for idx, sample := range output {
		require.InDelta(t, 0.25, sample, 1e-5, "sample #%d", idx)
	}
}

func TestEngineInvalidDeviceIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("input", func(t *testing.T) {
		denoiser := newScriptedDenoiser(1, 1)
		e, captureBackend, _ := newTestEngine(ctx, ProcessingSampleRate, denoiser)
		defer e.Close()

		require.Error(t, e.Start(ctx, 3, 0))
		require.False(t, e.IsRunning())
		require.Nil(t, captureBackend.Stream)
		require.Zero(t, denoiser.CloseCount.Load())
	})

	t.Run("output", func(t *testing.T) {
		denoiser := newScriptedDenoiser(1, 1)
		e, captureBackend, renderBackend := newTestEngine(ctx, ProcessingSampleRate, denoiser)
		defer e.Close()

		require.Error(t, e.Start(ctx, 0, 3))
		require.False(t, e.IsRunning())
		// The capture stream was already opened, it must be closed back.
		require.True(t, captureBackend.Stream.IsClosed.Load())
		require.Nil(t, renderBackend.Stream)
	})
}

func TestEngineResamples44100(t *testing.T) {
	ctx := context.Background()
	denoiser := newScriptedDenoiser(1, 1)
	e, captureBackend, renderBackend := newTestEngine(ctx, 44100, denoiser)
	defer e.Close()

	e.SetBypass(true)
	require.NoError(t, e.Start(ctx, 0, 0))
	require.NotNil(t, e.session.converter)
	require.Equal(t, 441, e.session.converter.InputFramesNext())

	// 441 samples at 44100Hz become one 480-sample frame at 48000Hz; a DC
	// signal survives resampling exactly (up to numerical noise).
	input := make([]float32, 441)
	for idx := range input {
		input[idx] = 0.5
	}
	pushSamples(t, captureBackend.Sink, input)

	output := collectSamples(t, renderBackend.Source, FrameSize)
	for idx, sample := range output {
		require.InDelta(t, 0.5, sample, 1e-3, "sample #%d", idx)
	}
}

func TestEngineBypassToggleMidStream(t *testing.T) {
	ctx := context.Background()
	denoiser := newScriptedDenoiser(0.5, 1)
	e, captureBackend, renderBackend := newTestEngine(ctx, ProcessingSampleRate, denoiser)
	defer e.Close()

	require.NoError(t, e.Start(ctx, 0, 0))

	pushSamples(t, captureBackend.Sink, constFrame(0.5))
	output := collectSamples(t, renderBackend.Source, FrameSize)
	for idx, sample := range output {
		require.InDelta(t, 0.25, sample, 1e-5, "sample #%d", idx)
	}

	// The toggle affects only frames processed after it.
	e.SetBypass(true)
	pushSamples(t, captureBackend.Sink, constFrame(0.5))
	output = collectSamples(t, renderBackend.Source, FrameSize)
	require.Equal(t, constFrame(0.5), output)
}

func TestEngineStop(t *testing.T) {
	ctx := context.Background()
	denoiser := newScriptedDenoiser(1, 1)
	e, captureBackend, renderBackend := newTestEngine(ctx, ProcessingSampleRate, denoiser)

	require.NoError(t, e.Start(ctx, 0, 0))
	require.True(t, e.IsRunning())

	require.NoError(t, e.Stop())
	require.False(t, e.IsRunning())
	require.True(t, captureBackend.Stream.IsClosed.Load())
	require.True(t, renderBackend.Stream.IsClosed.Load())

	// The loop owns the denoiser and closes it when it observes the flag.
	require.Eventually(t, func() bool {
		return denoiser.CloseCount.Load() == 1
	}, 5*time.Second, time.Millisecond)

	// Stop is idempotent.
	require.NoError(t, e.Stop())
	require.NoError(t, e.Close())
}

func TestEngineRestart(t *testing.T) {
	ctx := context.Background()
	denoiser := newScriptedDenoiser(1, 1)
	e, captureBackend, renderBackend := newTestEngine(ctx, ProcessingSampleRate, denoiser)
	defer e.Close()

	require.NoError(t, e.Start(ctx, 0, 0))
	require.NoError(t, e.Stop())
	require.Eventually(t, func() bool {
		return denoiser.CloseCount.Load() == 1
	}, 5*time.Second, time.Millisecond)

	// A fresh session: new streams, new rings, a re-created denoiser.
	require.NoError(t, e.Start(ctx, 0, 0))
	require.True(t, e.IsRunning())

	pushSamples(t, captureBackend.Sink, constFrame(0.25))
	output := collectSamples(t, renderBackend.Source, FrameSize)
	for idx, sample := range output {
		require.InDelta(t, 0.25, sample, 1e-5, "sample #%d", idx)
	}

	require.NoError(t, e.Stop())
}

type lockedBuffer struct {
	locker sync.Mutex
	buf    bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.locker.Lock()
	defer b.locker.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.locker.Lock()
	defer b.locker.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func TestEngineMonitorWriter(t *testing.T) {
	ctx := context.Background()
	denoiser := newScriptedDenoiser(1, 1)
	monitorBuf := &lockedBuffer{}
	e, captureBackend, renderBackend := newTestEngine(
		ctx, ProcessingSampleRate, denoiser,
		WithMonitorWriter(monitorBuf),
	)
	defer e.Close()

	e.SetBypass(true)
	require.NoError(t, e.Start(ctx, 0, 0))

	input := constFrame(0.125)
	pushSamples(t, captureBackend.Sink, input)
	collectSamples(t, renderBackend.Source, FrameSize)

	// The tap drains asynchronously; the emitted frame shows up as
	// float32 LE PCM.
	require.Eventually(t, func() bool {
		return len(monitorBuf.Bytes()) >= FrameSize*4
	}, 5*time.Second, time.Millisecond)

	data := monitorBuf.Bytes()
	for idx := range input {
		sample := math.Float32frombits(binary.LittleEndian.Uint32(data[idx*4:]))
		require.Equal(t, input[idx], sample, "sample #%d", idx)
	}
}

func TestEngineListDevices(t *testing.T) {
	ctx := context.Background()
	denoiser := newScriptedDenoiser(1, 1)
	e, _, _ := newTestEngine(ctx, ProcessingSampleRate, denoiser)
	defer e.Close()

	require.Equal(t, []string{"fake"}, e.ListInputDevices(ctx))
	require.Equal(t, []string{"fake"}, e.ListOutputDevices(ctx))
}
