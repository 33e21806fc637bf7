// Package lock provides the advisory lock guarding stock mutation and catalog persistence.
package lock

import (
	"context"
	"errors"
	"sync"
)

// Locker runs fn while holding the named lock.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// Well-known lock keys.
const (
	KeyCatalog = "bookstore:lock:catalog"
)

var errNoCallback = errors.New("lock: callback not provided")

// Local is an in-process Locker. Acquisition honours context cancellation.
type Local struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocal constructs an in-process locker.
func NewLocal() *Local {
	return &Local{slots: map[string]chan struct{}{}}
}

func (l *Local) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// WithLock executes fn while holding key.
func (l *Local) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if fn == nil {
		return errNoCallback
	}
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-ch }()
	return fn(ctx)
}
