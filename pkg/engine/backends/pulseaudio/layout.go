package pulseaudio

import (
	"github.com/jfreymuth/pulse/proto"
)

// streamLayout derives the amount of channels to open a stream with, and the
// matching channel map, from the device's native channel map. Everything
// beyond stereo is capped at 2: the pipeline only ever uses channel 0
// (capture) or broadcasts one sample (render). A degenerate empty map is
// treated as mono.
func streamLayout(native proto.ChannelMap) (int, proto.ChannelMap) {
	if len(native) >= 2 {
		return 2, proto.ChannelMap{proto.ChannelLeft, proto.ChannelRight}
	}
	return 1, proto.ChannelMap{proto.ChannelMono}
}
