package helpers

import "sync"

// Lazy builds a value on first Get and caches both the value and any error.
// Concurrent first calls block until the single build finishes.
type Lazy[T any] struct {
	once  sync.Once
	build func() (T, error)
	value T
	err   error
}

func NewLazy[T any](build func() (T, error)) *Lazy[T] {
	return &Lazy[T]{build: build}
}

func (l *Lazy[T]) Get() (T, error) {
	l.once.Do(func() {
		l.value, l.err = l.build()
		l.build = nil
	})
	return l.value, l.err
}
