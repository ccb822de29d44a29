package portaudio

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gordonklaus/portaudio"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/silentstream/pkg/engine/types"
)

type RenderStream struct {
	PortAudioStream *portaudio.Stream
}

var _ types.RenderStream = (*RenderStream)(nil)

func (b *Backend) OpenRender(
	ctx context.Context,
	deviceIndex int,
	source types.SampleSource,
) (types.RenderStream, error) {
	devices, err := outputDevices()
	if err != nil {
		return nil, fmt.Errorf("unable to enumerate the output devices: %w", err)
	}
	if deviceIndex < 0 || deviceIndex >= len(devices) {
		return nil, fmt.Errorf("invalid output device index %d (have %d output devices)", deviceIndex, len(devices))
	}
	device := devices[deviceIndex]
	channels := streamChannels(device.MaxOutputChannels)
	logger.Debugf(ctx, "opening output device %q: %dHz, %d channels", device.Name, int(device.DefaultSampleRate), channels)

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowOutputLatency,
		},
		SampleRate:      device.DefaultSampleRate,
		FramesPerBuffer: portaudio.FramesPerBufferUnspecified,
	}
	// The callback runs on a driver thread: one sample per output frame,
	// silence on underrun, broadcast to every channel (mono upmix).
	stream, err := portaudio.OpenStream(params, func(out []float32) {
		for idx := 0; idx < len(out); idx += channels {
			sample, _ := source.TryPop()
			for ch := 0; ch < channels; ch++ {
				out[idx+ch] = sample
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open the stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("unable to start the stream: %w", err)
	}

	return &RenderStream{
		PortAudioStream: stream,
	}, nil
}

func (s *RenderStream) Close() error {
	var mErr *multierror.Error
	if err := s.PortAudioStream.Abort(); err != nil {
		mErr = multierror.Append(mErr, err)
	}
	if err := s.PortAudioStream.Close(); err != nil {
		mErr = multierror.Append(mErr, err)
	}
	return mErr.ErrorOrNil()
}
