package engine

import (
	"math"
	"sync/atomic"
)

// atomicFloat32 is a single-word atomic cell for a float32 control value.
//
// Control fields are independently consistent only: a threshold/bypass pair
// may be observed mid-update, which is acceptable, so there is deliberately
// no cross-field locking anywhere in the engine.
type atomicFloat32 struct {
	bits atomic.Uint32
}

func (f *atomicFloat32) Store(v float32) {
	f.bits.Store(math.Float32bits(v))
}

func (f *atomicFloat32) Load() float32 {
	return math.Float32frombits(f.bits.Load())
}
