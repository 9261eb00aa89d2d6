package contract

import (
	"context"
	"sync"
)

// accountLocks hands out one lock per account address. A lock is a one slot channel so that waiting for it
// can be abandoned when the context ends.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newAccountLocks() *accountLocks {
	return &accountLocks{
		locks: make(map[string]chan struct{}),
	}
}

func (a *accountLocks) get(address string) chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()

	lock, exists := a.locks[address]
	if !exists {
		lock = make(chan struct{}, 1)
		a.locks[address] = lock
	}
	return lock
}

// acquire blocks until the address's lock is held or ctx ends. The returned func releases it.
func (a *accountLocks) acquire(ctx context.Context, address string) (func(), error) {
	lock := a.get(address)
	select {
	case lock <- struct{}{}:
		return func() { <-lock }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
