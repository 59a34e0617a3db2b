package session

import "errors"

var (
	// ErrNotFound is returned by registry lookups that miss.
	ErrNotFound = errors.New("session: not found")

	// ErrDuplicateIndex describes a local session index that collides with
	// one already registered. No function in this package returns it:
	// RegisterIndex overwrites an existing entry, and the engine avoids
	// collisions by drawing a new random index until GetByIndex misses (§3).
	ErrDuplicateIndex = errors.New("session: local index already in use")
)
