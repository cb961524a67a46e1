package connection

import (
	"log/slog"
	"sync"

	"github.com/atelierhq/realtime/internal/metrics"
)

// handlerList is an ordered registry of subscriber callbacks for one
// event kind. Dispatch walks a snapshot taken at call time, so
// registrations and removals made by a running callback take effect on
// the next dispatch, not the current one. Removal is by identity: the
// same function registered twice yields two independent subscriptions.
type handlerList[T any] struct {
	mu      sync.Mutex
	nextID  uint64
	entries []handlerEntry[T]
}

type handlerEntry[T any] struct {
	id uint64
	fn func(T)
}

func newHandlerList[T any]() *handlerList[T] {
	return &handlerList[T]{}
}

// add registers fn and returns its unsubscribe closure. Calling the
// closure more than once is harmless.
func (l *handlerList[T]) add(fn func(T)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := l.nextID
	l.entries = append(l.entries, handlerEntry[T]{id: id, fn: fn})
	return func() { l.remove(id) }
}

func (l *handlerList[T]) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e.id == id {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return
		}
	}
}

func (l *handlerList[T]) snapshot() []func(T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fns := make([]func(T), len(l.entries))
	for i, e := range l.entries {
		fns[i] = e.fn
	}
	return fns
}

// dispatch invokes every subscriber registered at call time, in
// registration order. A panicking subscriber is recovered and logged so
// the rest of the list still runs.
func (l *handlerList[T]) dispatch(v T, logger *slog.Logger) {
	for _, fn := range l.snapshot() {
		invoke(fn, v, logger)
	}
}

func invoke[T any](fn func(T), v T, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SubscriberPanics.Inc()
			logger.Warn("subscriber panicked", "panic", r)
		}
	}()
	fn(v)
}
