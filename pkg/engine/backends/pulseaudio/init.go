package pulseaudio

import (
	"github.com/xaionaro-go/silentstream/pkg/engine/registry"
	"github.com/xaionaro-go/silentstream/pkg/engine/types"
)

const (
	Priority = 100
)

func init() {
	registry.RegisterCaptureFactory(Priority, CaptureBackendPulseFactory{})
	registry.RegisterRenderFactory(Priority, RenderBackendPulseFactory{})
}

type CaptureBackendPulseFactory struct{}

func (CaptureBackendPulseFactory) NewCaptureBackend() (types.CaptureBackend, error) {
	return NewCaptureBackend()
}

type RenderBackendPulseFactory struct{}

func (RenderBackendPulseFactory) NewRenderBackend() (types.RenderBackend, error) {
	return NewRenderBackend()
}
