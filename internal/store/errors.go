// Package store implements the persistent map: a reader-writer-locked,
// memory-mapped-file-backed associative container with amortized growth.
package store

import "errors"

var (
	// ErrKeyExists is returned by Insert when the key is already present.
	ErrKeyExists = errors.New("store: key exists")
	// ErrKeyNotFound is returned by Update/Get/Delete when the key is absent.
	ErrKeyNotFound = errors.New("store: key not found")
	// ErrLockTimeout is returned when a lock acquisition exceeds its bound.
	ErrLockTimeout = errors.New("store: lock timeout")
	// ErrOutOfSegment is returned when a mutator cannot fit its record in the
	// remaining segment space. The caller is expected to Grow and retry once.
	ErrOutOfSegment = errors.New("store: out of segment space")
	// ErrEmptyKey is returned when an empty key is passed to Insert, Update,
	// Get or Delete.
	ErrEmptyKey = errors.New("store: empty key")
)
