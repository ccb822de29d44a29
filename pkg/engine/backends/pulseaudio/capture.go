package pulseaudio

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/jfreymuth/pulse"
	"github.com/xaionaro-go/silentstream/pkg/audio"
	"github.com/xaionaro-go/silentstream/pkg/engine/types"
)

type CaptureBackend struct {
	PulseClient *pulse.Client
}

var _ types.CaptureBackend = (*CaptureBackend)(nil)

func NewCaptureBackend() (*CaptureBackend, error) {
	c, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("unable to open a client to Pulse: %w", err)
	}
	return &CaptureBackend{
		PulseClient: c,
	}, nil
}

func (b *CaptureBackend) Close() error {
	b.PulseClient.Close()
	return nil
}

func (b *CaptureBackend) Ping(context.Context) error {
	_, err := b.PulseClient.DefaultSource()
	return err
}

func (b *CaptureBackend) InputDevices(
	ctx context.Context,
) ([]types.DeviceInfo, error) {
	sources, err := b.PulseClient.ListSources()
	if err != nil {
		return nil, fmt.Errorf("unable to list the sources: %w", err)
	}
	var result []types.DeviceInfo
	for _, source := range sources {
		result = append(result, types.DeviceInfo{
			Name:              source.Name(),
			DefaultSampleRate: audio.SampleRate(source.SampleRate()),
			Channels:          audio.Channel(len(source.Channels())),
		})
	}
	return result, nil
}

func (b *CaptureBackend) OpenCapture(
	ctx context.Context,
	deviceIndex int,
	sink types.SampleSink,
) (types.CaptureStream, error) {
	sources, err := b.PulseClient.ListSources()
	if err != nil {
		return nil, fmt.Errorf("unable to list the sources: %w", err)
	}
	if deviceIndex < 0 || deviceIndex >= len(sources) {
		return nil, fmt.Errorf("invalid input device index %d (have %d sources)", deviceIndex, len(sources))
	}
	source := sources[deviceIndex]

	channels, chanMap := streamLayout(source.Channels())
	logger.Debugf(ctx, "opening source %q: %dHz, %d channels", source.Name(), source.SampleRate(), channels)

	// The writer is invoked by the stream machinery; it only extracts
	// channel 0 of every frame and pushes, dropping what does not fit.
	writer := pulse.Float32Writer(func(p []float32) (int, error) {
		for idx := 0; idx < len(p); idx += channels {
			sink.TryPush(p[idx])
		}
		return len(p), nil
	})

	stream, err := b.PulseClient.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordSampleRate(source.SampleRate()),
		pulse.RecordChannels(chanMap),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a record stream: %w", err)
	}

	stream.Start()
	if stream.Error() != nil {
		stream.Close()
		return nil, fmt.Errorf("an error occurred during recording: %w", stream.Error())
	}

	return newCaptureStream(stream, audio.SampleRate(source.SampleRate())), nil
}

type CaptureStream struct {
	*pulse.RecordStream
	Rate audio.SampleRate
}

var _ types.CaptureStream = (*CaptureStream)(nil)

func newCaptureStream(
	pulseStream *pulse.RecordStream,
	rate audio.SampleRate,
) *CaptureStream {
	return &CaptureStream{
		RecordStream: pulseStream,
		Rate:         rate,
	}
}

func (s *CaptureStream) SampleRate() audio.SampleRate {
	return s.Rate
}

func (s *CaptureStream) Close() (err error) {
	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("got a panic: %v", r)
		}
	}()
	s.RecordStream.Stop()
	s.RecordStream.Close()
	return
}
