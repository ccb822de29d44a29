package ringchan

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingChannel(t *testing.T) {
	t.Run("FIFO", func(t *testing.T) {
		c := New[float32](8)
		for i := 0; i < 5; i++ {
			require.True(t, c.TryPush(float32(i)))
		}
		assert.Equal(t, 5, c.Len())
		for i := 0; i < 5; i++ {
			v, ok := c.TryPop()
			require.True(t, ok)
			assert.Equal(t, float32(i), v)
		}
		_, ok := c.TryPop()
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("DropOnFull", func(t *testing.T) {
		c := New[int](4)
		for i := 0; i < 4; i++ {
			require.True(t, c.TryPush(i))
		}
		// A full channel never blocks and never grows.
		assert.False(t, c.TryPush(100))
		assert.False(t, c.TryPush(101))
		assert.Equal(t, 4, c.Len())
		assert.Equal(t, 4, c.Cap())

		v, ok := c.TryPop()
		require.True(t, ok)
		assert.Equal(t, 0, v)
		assert.True(t, c.TryPush(102))

		expected := []int{1, 2, 3, 102}
		for _, e := range expected {
			v, ok := c.TryPop()
			require.True(t, ok)
			assert.Equal(t, e, v)
		}
	})

	t.Run("WrapAround", func(t *testing.T) {
		c := New[int](3)
		next := 0
		for round := 0; round < 100; round++ {
			require.True(t, c.TryPush(round*2))
			require.True(t, c.TryPush(round*2+1))
			for i := 0; i < 2; i++ {
				v, ok := c.TryPop()
				require.True(t, ok)
				require.Equal(t, next, v)
				next++
			}
		}
	})

	t.Run("SingleProducerSingleConsumer", func(t *testing.T) {
		const total = 100000
		c := New[int](64)

		var received []int
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < total; i++ {
				for !c.TryPush(i) {
					runtime.Gosched()
				}
			}
		}()
		go func() {
			defer wg.Done()
			for len(received) < total {
				v, ok := c.TryPop()
				if !ok {
					runtime.Gosched()
					continue
				}
				received = append(received, v)
			}
		}()
		wg.Wait()

		require.Len(t, received, total)
		for i, v := range received {
			require.Equal(t, i, v)
		}
	})
}
