package conformance

import (
	"context"
	"sync"
)

// Fixture is a value initialized on first use and shared afterwards. A failed
// initialization is not retried; every caller gets the same error.
type Fixture[T any] struct {
	once  sync.Once
	init  func(ctx context.Context) (T, error)
	value T
	err   error
}

// NewFixture returns a fixture initialized by init.
func NewFixture[T any](init func(ctx context.Context) (T, error)) *Fixture[T] {
	return &Fixture[T]{init: init}
}

// Get initializes the fixture with ctx on the first call and returns the
// memoized value and error.
func (f *Fixture[T]) Get(ctx context.Context) (T, error) {
	f.once.Do(func() {
		f.value, f.err = f.init(ctx)
	})
	return f.value, f.err
}
