// Package serial provides a per-key FIFO task queue. Operations that
// perform non-atomic read-modify-write sequences against shared state
// (channel cursors, run guards, per-user greeting flows) are chained
// behind any in-flight operation on the same key and run one at a time
// in arrival order. This is a cooperative queue discipline, not OS-level
// locking.
package serial

import (
	"context"
	"sync"
)

// Keyed runs tasks one at a time per key, in arrival order. Tasks for
// different keys run independently.
type Keyed struct {
	mu      sync.Mutex
	tails   map[uint64]chan struct{}
	pending map[uint64]int
}

// NewKeyed creates an empty keyed serializer.
func NewKeyed() *Keyed {
	return &Keyed{
		tails:   make(map[uint64]chan struct{}),
		pending: make(map[uint64]int),
	}
}

// Do queues fn behind any task already queued for key and runs it once
// its turn arrives. Waiting is abandoned when ctx is cancelled; the
// abandoned slot opens only once its predecessor finishes, so
// successors never overlap a still-running task.
func (k *Keyed) Do(ctx context.Context, key uint64, fn func(context.Context) error) error {
	k.mu.Lock()

	prev := k.tails[key]
	done := make(chan struct{})
	k.tails[key] = done
	k.pending[key]++

	k.mu.Unlock()

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			// Hand the predecessor's completion forward. Closing done
			// here would let successors start alongside the running
			// head task.
			go func() {
				<-prev
				close(done)
				k.release(key)
			}()

			return ctx.Err()
		}
	}

	defer func() {
		close(done)
		k.release(key)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	return fn(ctx)
}

// release drops one pending reference for key, clearing the chain state
// once the last task finishes.
func (k *Keyed) release(key uint64) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.pending[key]--
	if k.pending[key] == 0 {
		delete(k.tails, key)
		delete(k.pending, key)
	}
}
