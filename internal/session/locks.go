package session

import (
	"context"
	"sync"
)

// LockTable serializes turns per user. Two messages from the same user
// arriving concurrently are processed in arrival order; different users
// never contend. Waiters queue FIFO so a chatty user cannot starve an
// earlier message.
type LockTable struct {
	mu    sync.Mutex
	locks map[string]*lockState
}

type lockState struct {
	held    bool
	waiters []chan struct{}
}

// NewLockTable builds an empty lock table.
func NewLockTable() *LockTable {
	return &LockTable{locks: make(map[string]*lockState)}
}

// Acquire blocks until the lock for key is held or ctx is done. On success
// it returns a release function that must be called exactly once.
func (t *LockTable) Acquire(ctx context.Context, key string) (func(), error) {
	t.mu.Lock()
	state, ok := t.locks[key]
	if !ok {
		state = &lockState{}
		t.locks[key] = state
	}
	if !state.held {
		state.held = true
		t.mu.Unlock()
		return func() { t.release(key) }, nil
	}

	ready := make(chan struct{})
	state.waiters = append(state.waiters, ready)
	t.mu.Unlock()

	select {
	case <-ready:
		return func() { t.release(key) }, nil
	case <-ctx.Done():
		t.abandon(key, ready)
		return nil, ctx.Err()
	}
}

// release hands the lock to the oldest waiter, or frees it.
func (t *LockTable) release(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.locks[key]
	if !ok {
		return
	}
	if len(state.waiters) > 0 {
		next := state.waiters[0]
		state.waiters = state.waiters[1:]
		close(next)
		return
	}
	delete(t.locks, key)
}

// abandon removes a cancelled waiter from the queue. If the lock was handed
// to the waiter in the race between ctx.Done and close, it is passed on.
func (t *LockTable) abandon(key string, ready chan struct{}) {
	t.mu.Lock()
	state, ok := t.locks[key]
	if !ok {
		t.mu.Unlock()
		return
	}
	for i, w := range state.waiters {
		if w == ready {
			state.waiters = append(state.waiters[:i], state.waiters[i+1:]...)
			t.mu.Unlock()
			return
		}
	}
	t.mu.Unlock()
	// Not in the queue: the lock was already handed over. Release it.
	t.release(key)
}
