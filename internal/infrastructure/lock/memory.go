// Package lock provides per-invoice mutual exclusion for state transitions.
package lock

import (
	"context"
	"sync"

	"github.com/garyjia/invoice-approval/internal/application/port"
)

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// MemoryLocker serializes callers per invoice id within one process.
// Different ids never contend.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[int64]*keyedEntry
}

// NewMemoryLocker creates an in-process locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{entries: make(map[int64]*keyedEntry)}
}

// Lock blocks until the id is free or ctx is done
func (l *MemoryLocker) Lock(ctx context.Context, id int64) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[id]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		l.entries[id] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.drop(id, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.drop(id, e)
		})
	}, nil
}

func (l *MemoryLocker) drop(id int64, e *keyedEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, id)
	}
}

// held returns the number of ids with waiters or holders
func (l *MemoryLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

var _ port.Locker = (*MemoryLocker)(nil)
