// Package types defines the contracts between the streaming engine and its
// audio device backends.
package types

import (
	"context"
	"io"

	"github.com/xaionaro-go/silentstream/pkg/audio"
)

// DeviceInfo describes one device of a backend's catalog.
type DeviceInfo struct {
	Name              string
	DefaultSampleRate audio.SampleRate
	Channels          audio.Channel
}

// SampleSink is where a capture stream delivers samples. TryPush reports
// whether the sample fit; a full sink drops the sample. Implementations are
// wait-free, so it is legal to call TryPush from a driver callback.
type SampleSink interface {
	TryPush(sample float32) bool
}

// SampleSource is where a render stream pulls samples from. An empty source
// reports false and the stream substitutes silence. Implementations are
// wait-free, so it is legal to call TryPop from a driver callback.
type SampleSource interface {
	TryPop() (float32, bool)
}

// CaptureStream is an open, running capture device.
type CaptureStream interface {
	io.Closer

	// SampleRate is the device-native rate the sink is fed at.
	SampleRate() audio.SampleRate
}

// RenderStream is an open, running render device.
type RenderStream interface {
	io.Closer
}

// CaptureBackend opens input devices of one audio subsystem.
//
// OpenCapture opens the device at the given zero-based catalog index using
// its default configuration and starts delivering channel 0 of every input
// frame to the sink. An out-of-range index is an error; there is no fallback
// device.
type CaptureBackend interface {
	io.Closer

	Ping(ctx context.Context) error
	InputDevices(ctx context.Context) ([]DeviceInfo, error)
	OpenCapture(ctx context.Context, deviceIndex int, sink SampleSink) (CaptureStream, error)
}

// RenderBackend opens output devices of one audio subsystem.
//
// OpenRender opens the device at the given zero-based catalog index using its
// default configuration and starts pulling one sample per output frame from
// the source, broadcasting it to every channel of that frame.
type RenderBackend interface {
	io.Closer

	Ping(ctx context.Context) error
	OutputDevices(ctx context.Context) ([]DeviceInfo, error)
	OpenRender(ctx context.Context, deviceIndex int, source SampleSource) (RenderStream, error)
}
