package debounce

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned by Latest.Do when a newer call for the same key started before
// this one finished. Its result must not be shown as current.
var ErrSuperseded = errors.New("superseded by a newer lookup")

// Latest runs cancellable lookups where only the most recent call per key may deliver a result.
// Starting a call cancels the context of the previous call for that key.
type Latest[T any] struct {
	mu    sync.Mutex
	calls map[string]*latestCall
	seq   uint64
}

type latestCall struct {
	seq    uint64
	cancel context.CancelFunc
}

// NewLatest constructs an empty Latest.
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{calls: make(map[string]*latestCall)}
}

// Do runs fn for key. If another call for key starts before fn returns, Do returns ErrSuperseded
// regardless of what fn produced.
func (l *Latest[T]) Do(ctx context.Context, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	if prev, ok := l.calls[key]; ok {
		prev.cancel()
	}
	l.seq++
	call := &latestCall{seq: l.seq, cancel: cancel}
	l.calls[key] = call
	l.mu.Unlock()

	result, err := fn(callCtx)

	l.mu.Lock()
	current, ok := l.calls[key]
	isCurrent := ok && current.seq == call.seq
	if isCurrent {
		delete(l.calls, key)
	}
	l.mu.Unlock()

	var zero T
	if !isCurrent {
		return zero, ErrSuperseded
	}
	return result, err
}
