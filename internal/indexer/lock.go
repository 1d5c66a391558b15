package indexer

import (
	"sync"
	"sync/atomic"
)

// IndexLock provides non-blocking lock semantics using atomic operations.
type IndexLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock. Must only be called by the goroutine that
// acquired it.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// lockRegistry holds one IndexLock per project root so concurrent runs on
// different projects proceed while a second run on the same project is
// rejected.
type lockRegistry struct {
	locks sync.Map // root path -> *IndexLock
}

func (r *lockRegistry) get(rootPath string) *IndexLock {
	if lock, ok := r.locks.Load(rootPath); ok {
		return lock.(*IndexLock)
	}
	lock, _ := r.locks.LoadOrStore(rootPath, &IndexLock{})
	return lock.(*IndexLock)
}
