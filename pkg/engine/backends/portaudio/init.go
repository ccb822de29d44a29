package portaudio

import (
	"github.com/xaionaro-go/silentstream/pkg/engine/registry"
	"github.com/xaionaro-go/silentstream/pkg/engine/types"
)

const (
	Priority = 60
)

func init() {
	registry.RegisterCaptureFactory(Priority, CaptureBackendFactory{})
	registry.RegisterRenderFactory(Priority, RenderBackendFactory{})
}

type CaptureBackendFactory struct{}

func (CaptureBackendFactory) NewCaptureBackend() (types.CaptureBackend, error) {
	return NewBackend()
}

type RenderBackendFactory struct{}

func (RenderBackendFactory) NewRenderBackend() (types.RenderBackend, error) {
	return NewBackend()
}
