package oto

import (
	"context"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/xaionaro-go/silentstream/pkg/audio"
	"github.com/xaionaro-go/silentstream/pkg/engine/types"
	"github.com/xaionaro-go/silentstream/pkg/noisesuppression"
)

const (
	channelCount = 2
)

// oto permits only one Context per process, so it is a lazy singleton.
var getOtoContext = sync.OnceValues(func() (*oto.Context, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(noisesuppression.SampleRate),
		ChannelCount: channelCount,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready
	return ctx, nil
})

type RenderBackend struct {
	OtoContext *oto.Context
}

var _ types.RenderBackend = (*RenderBackend)(nil)

func NewRenderBackend() (*RenderBackend, error) {
	otoCtx, err := getOtoContext()
	if err != nil {
		return nil, err
	}
	return &RenderBackend{
		OtoContext: otoCtx,
	}, nil
}

func (b *RenderBackend) Close() error {
	// The context is a process-wide singleton and oto provides no way
	// to destroy it.
	return nil
}

func (b *RenderBackend) Ping(context.Context) error {
	return b.OtoContext.Err()
}

func (b *RenderBackend) OutputDevices(
	ctx context.Context,
) ([]types.DeviceInfo, error) {
	// oto exposes no device enumeration; there is only the system default.
	return []types.DeviceInfo{{
		Name:              "default",
		DefaultSampleRate: noisesuppression.SampleRate,
		Channels:          audio.Channel(channelCount),
	}}, nil
}
