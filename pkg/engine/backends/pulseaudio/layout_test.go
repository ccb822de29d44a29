package pulseaudio

import (
	"testing"

	"github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/assert"
)

func TestStreamLayout(t *testing.T) {
	t.Run("mono", func(t *testing.T) {
		channels, chanMap := streamLayout(proto.ChannelMap{proto.ChannelMono})
		assert.Equal(t, 1, channels)
		assert.Equal(t, proto.ChannelMap{proto.ChannelMono}, chanMap)
	})

	t.Run("stereo", func(t *testing.T) {
		channels, chanMap := streamLayout(proto.ChannelMap{proto.ChannelLeft, proto.ChannelRight})
		assert.Equal(t, 2, channels)
		assert.Equal(t, proto.ChannelMap{proto.ChannelLeft, proto.ChannelRight}, chanMap)
	})

	t.Run("surround is capped at stereo", func(t *testing.T) {
		native := make(proto.ChannelMap, 6)
		channels, chanMap := streamLayout(native)
		assert.Equal(t, 2, channels)
		assert.Equal(t, proto.ChannelMap{proto.ChannelLeft, proto.ChannelRight}, chanMap)
	})

	t.Run("empty map is treated as mono", func(t *testing.T) {
		channels, chanMap := streamLayout(nil)
		assert.Equal(t, 1, channels)
		assert.Equal(t, proto.ChannelMap{proto.ChannelMono}, chanMap)
	})
}
