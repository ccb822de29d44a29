package portaudio

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gordonklaus/portaudio"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/silentstream/pkg/audio"
	"github.com/xaionaro-go/silentstream/pkg/engine/types"
)

type CaptureStream struct {
	PortAudioStream *portaudio.Stream
	Rate            audio.SampleRate
}

var _ types.CaptureStream = (*CaptureStream)(nil)

func (b *Backend) OpenCapture(
	ctx context.Context,
	deviceIndex int,
	sink types.SampleSink,
) (types.CaptureStream, error) {
	devices, err := inputDevices()
	if err != nil {
		return nil, fmt.Errorf("unable to enumerate the input devices: %w", err)
	}
	if deviceIndex < 0 || deviceIndex >= len(devices) {
		return nil, fmt.Errorf("invalid input device index %d (have %d input devices)", deviceIndex, len(devices))
	}
	device := devices[deviceIndex]
	channels := streamChannels(device.MaxInputChannels)
	logger.Debugf(ctx, "opening input device %q: %dHz, %d channels", device.Name, int(device.DefaultSampleRate), channels)

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      device.DefaultSampleRate,
		FramesPerBuffer: portaudio.FramesPerBufferUnspecified,
	}
	// The callback runs on a driver thread: it only extracts channel 0 of
	// every input frame and pushes; a full ring silently drops the sample.
	stream, err := portaudio.OpenStream(params, func(in []float32) {
		for idx := 0; idx < len(in); idx += channels {
			sink.TryPush(in[idx])
		}
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open the stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("unable to start the stream: %w", err)
	}

	return &CaptureStream{
		PortAudioStream: stream,
		Rate:            audio.SampleRate(device.DefaultSampleRate),
	}, nil
}

func (s *CaptureStream) SampleRate() audio.SampleRate {
	return s.Rate
}

func (s *CaptureStream) Close() error {
	var mErr *multierror.Error
	if err := s.PortAudioStream.Abort(); err != nil {
		mErr = multierror.Append(mErr, err)
	}
	if err := s.PortAudioStream.Close(); err != nil {
		mErr = multierror.Append(mErr, err)
	}
	return mErr.ErrorOrNil()
}
