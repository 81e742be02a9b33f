// Package lock serializes work on a single key across goroutines or, when
// Redis is configured, across processes.
package lock

import (
	"context"
	"errors"
)

var ErrNotObtained = errors.New("lock_not_obtained")

// Unlock releases a held lock.
type Unlock func(ctx context.Context) error

type Locker interface {
	// Acquire blocks until key is held or ctx is done.
	Acquire(ctx context.Context, key string) (Unlock, error)
}
