package store

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// maxReaders bounds how many concurrent readers the lock admits; a writer
// acquires the full weight, which is the standard trick for building a
// context-aware (and therefore timeout-aware) reader/writer lock on top of
// a weighted semaphore — there is no timed sync.RWMutex in the standard
// library.
const maxReaders = 1 << 30

// timedRWLock is a reader-writer lock whose acquisitions are bounded by a
// caller-supplied timeout instead of blocking indefinitely.
type timedRWLock struct {
	sem *semaphore.Weighted
}

func newTimedRWLock() *timedRWLock {
	return &timedRWLock{sem: semaphore.NewWeighted(maxReaders)}
}

func (l *timedRWLock) rLock(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return ErrLockTimeout
	}
	return nil
}

func (l *timedRWLock) rUnlock() {
	l.sem.Release(1)
}

func (l *timedRWLock) lock(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := l.sem.Acquire(ctx, maxReaders); err != nil {
		return ErrLockTimeout
	}
	return nil
}

func (l *timedRWLock) unlock() {
	l.sem.Release(maxReaders)
}
