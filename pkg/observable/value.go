// Package observable holds a value and notifies subscribers whenever it is replaced.
package observable

import "sync"

// Value is a concurrency-safe container with change notification.
// Subscribers are called synchronously from Set, in subscription order,
// and must not call Set themselves.
type Value[T any] struct {
	mu      sync.RWMutex
	current T
	nextID  int
	subs    []subscriber[T]
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// New returns a Value holding initial.
func New[T any](initial T) *Value[T] {
	return &Value[T]{current: initial}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Set replaces the value and notifies every subscriber.
func (v *Value[T]) Set(next T) {
	v.mu.Lock()
	v.current = next
	subs := make([]subscriber[T], len(v.subs))
	copy(subs, v.subs)
	v.mu.Unlock()

	for _, s := range subs {
		s.fn(next)
	}
}

// Subscribe registers fn and returns a func that removes it.
func (v *Value[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.subscribeLocked(fn)
}

func (v *Value[T]) subscribeLocked(fn func(T)) func() {
	id := v.nextID
	v.nextID++
	v.subs = append(v.subs, subscriber[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			for i, s := range v.subs {
				if s.id == id {
					v.subs = append(v.subs[:i], v.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Watch subscribes with a buffered channel. The channel receives the current
// value immediately and then each change; a slow reader only ever sees the
// newest value. Call stop to unsubscribe.
func (v *Value[T]) Watch() (updates <-chan T, stop func()) {
	ch := make(chan T, 1)
	push := func(val T) {
		for {
			select {
			case ch <- val:
				return
			default:
				select {
				case <-ch:
				default:
				}
			}
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	push(v.current)
	return ch, v.subscribeLocked(push)
}
