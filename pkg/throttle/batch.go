package throttle

import (
	"sync"
	"time"
)

// Batch keeps one pending slot per key. A new value for a key overwrites the
// previous pending value (last write wins), and all slots are handed to the
// flush function together on the throttle's cadence.
type Batch[K comparable, V any] struct {
	mutex    sync.Mutex
	pending  map[K]V
	flush    func(map[K]V)
	throttle *Throttle
}

func NewBatch[K comparable, V any](window time.Duration, flush func(map[K]V)) *Batch[K, V] {
	b := &Batch[K, V]{
		pending: make(map[K]V),
		flush:   flush,
	}

	b.throttle = New(window, b.run)
	return b
}

// Put stores value as the pending value of key and triggers a flush. It must
// not be called while holding a lock the flush function acquires.
func (b *Batch[K, V]) Put(key K, value V) {
	b.mutex.Lock()
	b.pending[key] = value
	b.mutex.Unlock()

	b.throttle.Trigger()
}

// Drop discards the pending value of key, if any.
func (b *Batch[K, V]) Drop(key K) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	delete(b.pending, key)
}

// Len returns the number of keys waiting for the next flush.
func (b *Batch[K, V]) Len() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return len(b.pending)
}

// Stop cancels the scheduled flush and discards pending values.
func (b *Batch[K, V]) Stop() {
	b.throttle.Stop()

	b.mutex.Lock()
	b.pending = make(map[K]V)
	b.mutex.Unlock()
}

func (b *Batch[K, V]) run() {
	b.mutex.Lock()
	pending := b.pending
	b.pending = make(map[K]V)
	b.mutex.Unlock()

	if len(pending) == 0 {
		return
	}

	b.flush(pending)
}
