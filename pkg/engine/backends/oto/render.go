package oto

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ebitengine/oto/v3"
	"github.com/xaionaro-go/silentstream/pkg/engine/types"
)

const (
	bytesPerSample = 4
	bytesPerFrame  = bytesPerSample * channelCount
)

func (b *RenderBackend) OpenRender(
	ctx context.Context,
	deviceIndex int,
	source types.SampleSource,
) (types.RenderStream, error) {
	if deviceIndex != 0 {
		return nil, fmt.Errorf("invalid output device index %d (have 1 output device)", deviceIndex)
	}

	player := b.OtoContext.NewPlayer(&sourceReader{Source: source})
	player.Play()

	return &RenderStream{
		OtoPlayer: player,
	}, nil
}

// sourceReader adapts a SampleSource to the io.Reader oto pulls from:
// one sample per output frame, silence on underrun, duplicated to both
// channels (mono upmix).
type sourceReader struct {
	Source types.SampleSource
}

func (r *sourceReader) Read(p []byte) (int, error) {
	frames := len(p) / bytesPerFrame
	for idx := 0; idx < frames; idx++ {
		sample, _ := r.Source.TryPop()
		bits := math.Float32bits(sample)
		offset := idx * bytesPerFrame
		binary.LittleEndian.PutUint32(p[offset:], bits)
		binary.LittleEndian.PutUint32(p[offset+bytesPerSample:], bits)
	}
	return frames * bytesPerFrame, nil
}

type RenderStream struct {
	OtoPlayer *oto.Player
}

var _ types.RenderStream = (*RenderStream)(nil)

func (s *RenderStream) Close() error {
	s.OtoPlayer.Pause()
	return s.OtoPlayer.Close()
}
