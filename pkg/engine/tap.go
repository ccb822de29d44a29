package engine

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/iamcalledrob/circular"
	"github.com/xaionaro-go/observability"
)

const (
	monitorBufferSize = 256 * 1024
)

// monitorTap mirrors every emitted frame to a diagnostics writer as float32
// LE PCM. The processing loop only copies into a circular buffer (dropping
// the frame when the drain side is behind); the actual Write happens on a
// separate goroutine, so a slow writer can never stall the pipeline.
type monitorTap struct {
	locker       sync.Mutex
	buffer       *circular.Buffer
	progressedCh chan struct{}
	cancelFunc   context.CancelFunc
	frameBytes   []byte
}

func newMonitorTap(ctx context.Context, w io.Writer) *monitorTap {
	ctx, cancelFunc := context.WithCancel(ctx)
	t := &monitorTap{
		buffer:       circular.NewBuffer(monitorBufferSize),
		progressedCh: make(chan struct{}, 1),
		cancelFunc:   cancelFunc,
		frameBytes:   make([]byte, FrameSize*4),
	}
	observability.Go(ctx, func() {
		t.drainLoop(ctx, w)
	})
	return t
}

// PushFrame is called by the processing loop only.
func (t *monitorTap) PushFrame(frame []float32) {
	if len(frame)*4 > len(t.frameBytes) {
		return
	}
	for idx, sample := range frame {
		binary.LittleEndian.PutUint32(t.frameBytes[idx*4:], math.Float32bits(sample))
	}

	t.locker.Lock()
	_, err := t.buffer.Write(t.frameBytes[:len(frame)*4])
	t.locker.Unlock()
	if err != nil {
		// circular.ErrNoSpace: a monitor frame is dropped, playback is not.
		return
	}

	select {
	case t.progressedCh <- struct{}{}:
	default:
	}
}

func (t *monitorTap) drainLoop(ctx context.Context, w io.Writer) {
	logger.Tracef(ctx, "monitor drainLoop")
	defer logger.Tracef(ctx, "/monitor drainLoop")

	readBuf := make([]byte, 65536)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.progressedCh:
		}
		for {
			t.locker.Lock()
			n, err := t.buffer.Read(readBuf)
			t.locker.Unlock()
			if n > 0 {
				if _, wErr := w.Write(readBuf[:n]); wErr != nil {
					logger.Errorf(ctx, "unable to write to the monitor output: %v", wErr)
					return
				}
			}
			if err != nil || n == 0 {
				// io.EOF: the buffer is drained.
				break
			}
		}
	}
}

func (t *monitorTap) Close() error {
	t.cancelFunc()
	return nil
}
