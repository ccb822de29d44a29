package portaudio

import (
	"context"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gordonklaus/portaudio"
	"github.com/xaionaro-go/silentstream/pkg/audio"
	"github.com/xaionaro-go/silentstream/pkg/engine/types"
)

// Backend serves both capture and render through PortAudio.
type Backend struct{}

var _ types.CaptureBackend = (*Backend)(nil)
var _ types.RenderBackend = (*Backend)(nil)

func NewBackend() (*Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	return &Backend{}, nil
}

func (*Backend) Close() error {
	return portaudio.Terminate()
}

func (*Backend) Ping(
	ctx context.Context,
) error {
	info, err := portaudio.DefaultHostApi()
	if err != nil {
		return err
	}
	logger.Debugf(ctx, "host API info: %#+v", info)

	if devices, err := portaudio.Devices(); err == nil {
		for idx, device := range devices {
			logger.Tracef(ctx, "devices[%d]: %#+v", idx, device)
		}
	}
	return nil
}

func (*Backend) InputDevices(
	ctx context.Context,
) ([]types.DeviceInfo, error) {
	devices, err := inputDevices()
	if err != nil {
		return nil, err
	}
	return deviceInfos(devices, func(d *portaudio.DeviceInfo) int { return d.MaxInputChannels }), nil
}

func (*Backend) OutputDevices(
	ctx context.Context,
) ([]types.DeviceInfo, error) {
	devices, err := outputDevices()
	if err != nil {
		return nil, err
	}
	return deviceInfos(devices, func(d *portaudio.DeviceInfo) int { return d.MaxOutputChannels }), nil
}

func inputDevices() ([]*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	var result []*portaudio.DeviceInfo
	for _, device := range devices {
		if device.MaxInputChannels > 0 {
			result = append(result, device)
		}
	}
	return result, nil
}

func outputDevices() ([]*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	var result []*portaudio.DeviceInfo
	for _, device := range devices {
		if device.MaxOutputChannels > 0 {
			result = append(result, device)
		}
	}
	return result, nil
}

func deviceInfos(
	devices []*portaudio.DeviceInfo,
	channelsOf func(*portaudio.DeviceInfo) int,
) []types.DeviceInfo {
	var result []types.DeviceInfo
	for _, device := range devices {
		result = append(result, types.DeviceInfo{
			Name:              device.Name,
			DefaultSampleRate: audio.SampleRate(device.DefaultSampleRate),
			Channels:          audio.Channel(channelsOf(device)),
		})
	}
	return result
}

// streamChannels caps the amount of channels a stream is opened with; the
// pipeline only ever uses channel 0 (capture) or broadcasts one sample
// (render), so there is no point opening a 32-channel interface fully.
func streamChannels(maxChannels int) int {
	if maxChannels > 2 {
		return 2
	}
	return maxChannels
}
