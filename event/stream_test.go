package event

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBus_FansOut(t *testing.T) {
	bus := NewBus[string, int]()

	var (
		mu       sync.Mutex
		received []int
	)
	for i := 0; i < 2; i++ {
		bus.AddHandler(HandlerFunc[string, int](func(key string, e int) {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, e)
		}))
	}

	require.NoError(t, bus.OnEvent("key", 42))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestBus_RemoveHandler(t *testing.T) {
	bus := NewBus[string, int]()

	var kept, removed atomic.Int32
	bus.AddHandler(HandlerFunc[string, int](func(string, int) {
		kept.Add(1)
	}))
	remove := bus.AddHandler(HandlerFunc[string, int](func(string, int) {
		removed.Add(1)
	}))

	require.NoError(t, bus.OnEvent("key", 1))
	require.Eventually(t, func() bool {
		return kept.Load() == 1 && removed.Load() == 1
	}, time.Second, 10*time.Millisecond)

	remove()
	remove() // idempotent

	require.NoError(t, bus.OnEvent("key", 2))
	require.Eventually(t, func() bool {
		return kept.Load() == 2
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, int32(1), removed.Load())
}

func TestSelectorStream_FiltersAndBuffers(t *testing.T) {
	stream := NewSelectorStream[int, int]("s1", 4, func(e int) (int, bool) {
		return e, e%2 == 0
	})

	for i := 0; i < 4; i++ {
		require.NoError(t, stream.Notify(i, time.Second))
	}

	require.Equal(t, 0, <-stream.Channel())
	require.Equal(t, 2, <-stream.Channel())

	stream.Close()
	stream.Close() // idempotent

	_, ok := <-stream.Channel()
	require.False(t, ok)
	require.Error(t, stream.Notify(6, time.Second))
}

func TestSelectorStream_TimeoutClosesStream(t *testing.T) {
	stream := NewSelectorStream[int, int]("s1", 1, func(e int) (int, bool) {
		return e, true
	})

	require.NoError(t, stream.Notify(1, 10*time.Millisecond))
	require.Error(t, stream.Notify(2, 10*time.Millisecond))

	// The buffered event is still readable, then the channel is closed.
	require.Equal(t, 1, <-stream.Channel())
	_, ok := <-stream.Channel()
	require.False(t, ok)
}
