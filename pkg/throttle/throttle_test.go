package throttle

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestThrottle_Trigger(t *testing.T) {
	t.Run("first trigger after a quiet period runs immediately", func(t *testing.T) {
		var runs atomic.Int32
		th := New(50*time.Millisecond, func() { runs.Add(1) })
		defer th.Stop()

		th.Trigger()
		require.Equal(t, int32(1), runs.Load())
		require.False(t, th.Pending())
	})

	t.Run("triggers inside the window collapse into one trailing run", func(t *testing.T) {
		var runs atomic.Int32
		th := New(50*time.Millisecond, func() { runs.Add(1) })
		defer th.Stop()

		th.Trigger()
		for i := 0; i < 100; i++ {
			th.Trigger()
		}
		require.Equal(t, int32(1), runs.Load())
		require.True(t, th.Pending())

		require.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, 5*time.Millisecond)
		time.Sleep(100 * time.Millisecond)
		require.Equal(t, int32(2), runs.Load())
	})

	t.Run("stop cancels the trailing run", func(t *testing.T) {
		var runs atomic.Int32
		th := New(30*time.Millisecond, func() { runs.Add(1) })

		th.Trigger()
		th.Trigger()
		th.Stop()
		th.Trigger()

		time.Sleep(80 * time.Millisecond)
		require.Equal(t, int32(1), runs.Load())
	})
}

func TestBatch_Put(t *testing.T) {
	var (
		mutex   sync.Mutex
		flushes []map[string]int
	)

	b := NewBatch(40*time.Millisecond, func(m map[string]int) {
		mutex.Lock()
		defer mutex.Unlock()
		flushes = append(flushes, m)
	})
	defer b.Stop()

	b.Put("general", 0)
	for i := 1; i <= 50; i++ {
		b.Put("general", i)
	}
	b.Put("random", 7)

	require.Eventually(t, func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		return len(flushes) == 2
	}, time.Second, 5*time.Millisecond)

	mutex.Lock()
	defer mutex.Unlock()
	require.Equal(t, map[string]int{"general": 0}, flushes[0])
	require.Equal(t, map[string]int{"general": 50, "random": 7}, flushes[1])
}

func TestBatch_Drop(t *testing.T) {
	var flushed atomic.Int32
	b := NewBatch(30*time.Millisecond, func(m map[string]int) { flushed.Add(int32(len(m))) })
	defer b.Stop()

	b.Put("a", 1)
	b.Put("b", 2)
	b.Drop("b")
	require.Equal(t, 0, b.Len())

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, int32(1), flushed.Load())
}
