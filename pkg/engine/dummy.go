package engine

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/silentstream/pkg/engine/types"
)

// CaptureBackendDummy is the capture backend of last resort: an empty
// catalog and descriptive errors on open.
type CaptureBackendDummy struct{}

var _ types.CaptureBackend = CaptureBackendDummy{}

func (CaptureBackendDummy) Close() error {
	return nil
}

func (CaptureBackendDummy) Ping(context.Context) error {
	return nil
}

func (CaptureBackendDummy) InputDevices(context.Context) ([]types.DeviceInfo, error) {
	return nil, nil
}

func (CaptureBackendDummy) OpenCapture(context.Context, int, types.SampleSink) (types.CaptureStream, error) {
	return nil, fmt.Errorf("no capture backend is available")
}

// RenderBackendDummy is the render backend of last resort.
type RenderBackendDummy struct{}

var _ types.RenderBackend = RenderBackendDummy{}

func (RenderBackendDummy) Close() error {
	return nil
}

func (RenderBackendDummy) Ping(context.Context) error {
	return nil
}

func (RenderBackendDummy) OutputDevices(context.Context) ([]types.DeviceInfo, error) {
	return nil, nil
}

func (RenderBackendDummy) OpenRender(context.Context, int, types.SampleSource) (types.RenderStream, error) {
	return nil, fmt.Errorf("no render backend is available")
}
