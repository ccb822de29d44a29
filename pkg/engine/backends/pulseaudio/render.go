package pulseaudio

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/jfreymuth/pulse"
	"github.com/xaionaro-go/silentstream/pkg/audio"
	"github.com/xaionaro-go/silentstream/pkg/engine/types"
)

type RenderBackend struct {
	PulseClient *pulse.Client
}

var _ types.RenderBackend = (*RenderBackend)(nil)

func NewRenderBackend() (*RenderBackend, error) {
	c, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("unable to open a client to Pulse: %w", err)
	}
	return &RenderBackend{
		PulseClient: c,
	}, nil
}

func (b *RenderBackend) Close() error {
	b.PulseClient.Close()
	return nil
}

func (b *RenderBackend) Ping(context.Context) error {
	_, err := b.PulseClient.DefaultSink()
	return err
}

func (b *RenderBackend) OutputDevices(
	ctx context.Context,
) ([]types.DeviceInfo, error) {
	sinks, err := b.PulseClient.ListSinks()
	if err != nil {
		return nil, fmt.Errorf("unable to list the sinks: %w", err)
	}
	var result []types.DeviceInfo
	for _, sink := range sinks {
		result = append(result, types.DeviceInfo{
			Name:              sink.Name(),
			DefaultSampleRate: audio.SampleRate(sink.SampleRate()),
			Channels:          audio.Channel(len(sink.Channels())),
		})
	}
	return result, nil
}

func (b *RenderBackend) OpenRender(
	ctx context.Context,
	deviceIndex int,
	source types.SampleSource,
) (types.RenderStream, error) {
	sinks, err := b.PulseClient.ListSinks()
	if err != nil {
		return nil, fmt.Errorf("unable to list the sinks: %w", err)
	}
	if deviceIndex < 0 || deviceIndex >= len(sinks) {
		return nil, fmt.Errorf("invalid output device index %d (have %d sinks)", deviceIndex, len(sinks))
	}
	sinkDevice := sinks[deviceIndex]

	channels, chanMap := streamLayout(sinkDevice.Channels())
	logger.Debugf(ctx, "opening sink %q: %dHz, %d channels", sinkDevice.Name(), sinkDevice.SampleRate(), channels)

	// One sample per output frame, silence on underrun, broadcast to
	// every channel (mono upmix).
	reader := pulse.Float32Reader(func(p []float32) (int, error) {
		for idx := 0; idx < len(p); idx += channels {
			sample, _ := source.TryPop()
			for ch := 0; ch < channels; ch++ {
				p[idx+ch] = sample
			}
		}
		return len(p), nil
	})

	stream, err := b.PulseClient.NewPlayback(
		reader,
		pulse.PlaybackSink(sinkDevice),
		pulse.PlaybackSampleRate(sinkDevice.SampleRate()),
		pulse.PlaybackChannels(chanMap),
		pulse.PlaybackLatency(0.1),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a playback stream: %w", err)
	}

	stream.Start()
	if stream.Error() != nil {
		stream.Close()
		return nil, fmt.Errorf("an error occurred during playback: %w", stream.Error())
	}

	return &RenderStream{
		PlaybackStream: stream,
	}, nil
}

type RenderStream struct {
	*pulse.PlaybackStream
}

var _ types.RenderStream = (*RenderStream)(nil)

func (s *RenderStream) Close() (err error) {
	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("got a panic: %v", r)
		}
	}()
	s.PlaybackStream.Stop()
	s.PlaybackStream.Close()
	return
}
