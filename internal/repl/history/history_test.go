package history

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushAndSnapshot(t *testing.T) {
	h := New[string]()
	_, ok := h.Peek()
	assert.False(t, ok)
	assert.Empty(t, h.Items())

	for i := 1; i <= 40; i++ {
		require.NoError(t, h.Push(NewLineID(i, 0, "x"), "item"))
	}
	assert.Equal(t, 40, h.Len())
	items := h.Items()
	require.Len(t, items, 40)
	for i := 1; i < len(items); i++ {
		assert.Less(t, items[i-1].ID.No, items[i].ID.No)
	}
	last, ok := h.Peek()
	require.True(t, ok)
	assert.Equal(t, 40, last.ID.No)
}

func TestPushRejectsNonIncreasing(t *testing.T) {
	h := New[int]()
	require.NoError(t, h.Push(NewLineID(2, 0, "a"), 1))
	require.ErrorIs(t, h.Push(NewLineID(2, 1, "b"), 2), ErrNotMonotonic)
	require.ErrorIs(t, h.Push(NewLineID(1, 0, "c"), 3), ErrNotMonotonic)
	assert.Equal(t, 1, h.Len())
}

func TestSnapshotIsStable(t *testing.T) {
	h := New[int](WithCapacity(1))
	require.NoError(t, h.Push(NewLineID(1, 0, "a"), 1))
	snap := h.Items()
	for i := 2; i <= 10; i++ {
		require.NoError(t, h.Push(NewLineID(i, 0, "a"), i))
	}
	assert.Len(t, snap, 1)
	assert.Equal(t, 1, snap[0].Item)
}

func TestBeforeAndFind(t *testing.T) {
	h := New[string]()
	for i, text := range []string{"val a = 1", "val b = 2", "a + b"} {
		require.NoError(t, h.Push(NewLineID(i+1, 0, text), text))
	}
	before := h.Before(3)
	require.Len(t, before, 2)
	assert.Equal(t, "val b = 2", before[1].Item)
	assert.Empty(t, h.Before(1))
	assert.Len(t, h.Before(100), 3)

	e, ok := h.Find(NewLineID(2, 5, "val b = 2"))
	require.True(t, ok)
	assert.Equal(t, "val b = 2", e.Item)
	_, ok = h.Find(NewLineID(2, 0, "val b = 3"))
	assert.False(t, ok)
}

func TestLineIDOrdering(t *testing.T) {
	a := LineID{No: 1, Hash: 5}
	b := LineID{No: 1, Hash: 6}
	c := LineID{No: 2, Hash: 0}
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, -1, b.Compare(c))
	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, -1, a.Compare(LineID{No: 1, Hash: 5, Generation: 1}))
	assert.True(t, a.SameSnippet(LineID{No: 1, Hash: 5, Generation: 3}))
	assert.False(t, a.SameSnippet(b))
	assert.Equal(t, NewLineID(3, 0, "x").Hash, NewLineID(4, 1, "x").Hash)
}

func TestPushTimesOutUnderContention(t *testing.T) {
	h := New[int](WithLockTimeout(10 * time.Millisecond))
	h.lock <- struct{}{}
	err := h.Push(NewLineID(1, 0, ""), 1)
	require.ErrorIs(t, err, ErrLockTimeout)
	<-h.lock
	require.NoError(t, h.Push(NewLineID(1, 0, ""), 1))
}

func TestConcurrentReaders(t *testing.T) {
	h := New[int](WithCapacity(1))
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				items := h.Items()
				for i, e := range items {
					if e.ID.No != i+1 || e.Item != i+1 {
						t.Errorf("entry %d = %+v", i, e)
						return
					}
				}
			}
		}()
	}
	for i := 1; i <= 500; i++ {
		require.NoError(t, h.Push(NewLineID(i, 0, ""), i))
	}
	close(stop)
	wg.Wait()
	assert.Equal(t, 500, h.Len())
}
