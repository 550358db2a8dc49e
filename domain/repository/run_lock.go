package repository

import "context"

// IRunLock guards a named job against overlapping runs. TryAcquire never
// blocks; ok is false when another run holds the lock.
type IRunLock interface {
	TryAcquire(ctx context.Context, job string) (release func(), ok bool, err error)
}
