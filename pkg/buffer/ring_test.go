package buffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBasicOperations(t *testing.T) {
	r, err := NewRing[string](3)
	require.NoError(t, err, "Failed to create ring")
	defer r.Close()

	assert.Equal(t, 0, r.Size())
	assert.Equal(t, 3, r.Capacity())
	assert.False(t, r.Closed())

	require.NoError(t, r.Write("first"))
	require.NoError(t, r.Write("second"))
	assert.Equal(t, 2, r.Size())

	item, ok := r.Read()
	require.True(t, ok)
	assert.Equal(t, "first", item)

	item, ok = r.Read()
	require.True(t, ok)
	assert.Equal(t, "second", item)

	_, ok = r.Read()
	assert.False(t, ok, "read from empty ring should fail")
}

// A burst of capacity+k writes must leave exactly capacity items buffered,
// and they must be the last capacity produced (oldest silently dropped).
func TestRingDropOldestKeepsMostRecent(t *testing.T) {
	const capacity = 5
	const k = 3

	r, err := NewRing[int](capacity)
	require.NoError(t, err)
	defer r.Close()

	for i := 0; i < capacity+k; i++ {
		require.NoError(t, r.Write(i))
	}

	got := r.Drain()
	require.Len(t, got, capacity)
	for i, v := range got {
		assert.Equal(t, k+i, v, "expected the last %d produced items in FIFO order", capacity)
	}

	assert.Equal(t, int64(k), r.Stats().Drops())
	assert.Equal(t, int64(k), r.Stats().Overflows())
}

func TestRingDropNewest(t *testing.T) {
	r, err := NewRing[int](2, WithOverflowPolicy[int](DropNewest))
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Write(1))
	require.NoError(t, r.Write(2))
	require.NoError(t, r.Write(3)) // dropped

	assert.Equal(t, []int{1, 2}, r.Drain())
	assert.Equal(t, int64(1), r.Stats().Drops())
}

func TestRingDropCallback(t *testing.T) {
	var mu sync.Mutex
	var dropped []int

	r, err := NewRing[int](2, WithDropCallback[int](func(item int) {
		mu.Lock()
		dropped = append(dropped, item)
		mu.Unlock()
	}))
	require.NoError(t, err)
	defer r.Close()

	for i := 1; i <= 4; i++ {
		require.NoError(t, r.Write(i))
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, dropped)
}

func TestRingDrainEmpty(t *testing.T) {
	r, err := NewRing[int](4)
	require.NoError(t, err)
	defer r.Close()

	assert.Nil(t, r.Drain())
}

func TestRingWrapAroundFIFO(t *testing.T) {
	r, err := NewRing[int](3)
	require.NoError(t, err)
	defer r.Close()

	// Force several wrap-arounds interleaving reads and writes
	require.NoError(t, r.Write(1))
	require.NoError(t, r.Write(2))
	_, _ = r.Read()
	require.NoError(t, r.Write(3))
	require.NoError(t, r.Write(4))
	_, _ = r.Read()
	require.NoError(t, r.Write(5))

	assert.Equal(t, []int{3, 4, 5}, r.Drain())
}

func TestRingCloseSemantics(t *testing.T) {
	r, err := NewRing[int](2)
	require.NoError(t, err)

	require.NoError(t, r.Write(7))
	require.NoError(t, r.Close())
	require.NoError(t, r.Close(), "Close must be idempotent")

	assert.True(t, r.Closed())
	assert.Error(t, r.Write(8), "write after close must fail")

	// Buffered items remain readable after close
	item, ok := r.Read()
	require.True(t, ok)
	assert.Equal(t, 7, item)
}

func TestRingMinimumCapacity(t *testing.T) {
	r, err := NewRing[int](0)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 1, r.Capacity())
}

func TestRingConcurrentProducerConsumer(t *testing.T) {
	const total = 10000

	r, err := NewRing[int](64)
	require.NoError(t, err)
	defer r.Close()

	done := make(chan struct{})
	var consumed int64

	go func() {
		defer close(done)
		for {
			batch := r.Drain()
			for range batch {
				consumed++
			}
			if r.Closed() && r.Size() == 0 {
				return
			}
		}
	}()

	for i := 0; i < total; i++ {
		require.NoError(t, r.Write(i))
	}
	require.NoError(t, r.Close())
	<-done

	stats := r.Stats()
	assert.Equal(t, int64(total), stats.Writes())
	assert.Equal(t, int64(total)-stats.Drops(), consumed,
		"every produced item is either read or dropped")
}
