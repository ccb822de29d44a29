package oto

import (
	"github.com/xaionaro-go/silentstream/pkg/engine/registry"
	"github.com/xaionaro-go/silentstream/pkg/engine/types"
)

const (
	Priority = 50
)

func init() {
	// oto has no capture support, so only a render factory is registered.
	registry.RegisterRenderFactory(Priority, RenderBackendOtoFactory{})
}

type RenderBackendOtoFactory struct{}

func (RenderBackendOtoFactory) NewRenderBackend() (types.RenderBackend, error) {
	return NewRenderBackend()
}
