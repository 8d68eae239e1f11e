package dedup

import "errors"

var (
	// ErrCacheMiss is returned by a Store when no value exists for a key.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidStatus is returned when finalizing with a non-terminal status.
	ErrInvalidStatus = errors.New("invalid dedup status")
)
