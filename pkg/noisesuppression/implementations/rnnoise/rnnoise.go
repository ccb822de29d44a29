//go:build rnnoise
// +build rnnoise

package rnnoise

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"github.com/xaionaro-go/silentstream/pkg/noisesuppression"
)

/*
#cgo pkg-config: rnnoise
#cgo CFLAGS: -march=native
#include <rnnoise.h>
*/
import "C"

// RNNoise is a mono RNNoise denoiser+VAD. It holds the recurrent model state,
// so frames must be processed in stream order.
type RNNoise struct {
	Locker       sync.Mutex
	DenoiseState *C.DenoiseState
}

var _ noisesuppression.FrameDenoiser = (*RNNoise)(nil)

var frameSize int

func init() {
	frameSize = int(C.rnnoise_get_frame_size())
}

func New() (*RNNoise, error) {
	if frameSize != noisesuppression.FrameSize {
		return nil, fmt.Errorf("the frame size of the linked librnnoise is %d, expected %d", frameSize, noisesuppression.FrameSize)
	}
	return &RNNoise{
		DenoiseState: C.rnnoise_create(nil),
	}, nil
}

func (s *RNNoise) Close() error {
	s.Locker.Lock()
	defer s.Locker.Unlock()
	if s.DenoiseState == nil {
		return fmt.Errorf("double-free attempt")
	}
	C.rnnoise_destroy(s.DenoiseState)
	s.DenoiseState = nil
	return nil
}

// DenoiseFrame expects samples in the 16-bit amplitude domain (see the
// noisesuppression package documentation); RNNoise is trained on that range.
func (s *RNNoise) DenoiseFrame(ctx context.Context, voice, noisy []float32) (float64, error) {
	if len(noisy) != frameSize {
		return 0, fmt.Errorf("the size of the input frame is %d, expected %d", len(noisy), frameSize)
	}
	if len(voice) != len(noisy) {
		return 0, fmt.Errorf("lengths of the voice and noisy slices are not equal: %d != %d", len(voice), len(noisy))
	}

	s.Locker.Lock()
	defer s.Locker.Unlock()
	if s.DenoiseState == nil {
		return 0, fmt.Errorf("the denoiser is already closed")
	}

	vadProb := C.rnnoise_process_frame(
		s.DenoiseState,
		(*C.float)(unsafe.Pointer(unsafe.SliceData(voice))),
		(*C.float)(unsafe.Pointer(unsafe.SliceData(noisy))),
	)
	return float64(vadProb), nil
}
