package securestore

import "errors"

var (
	ErrNotFound    = errors.New("securestore: key not found")
	ErrEmptyKey    = errors.New("securestore: key must not be empty")
	ErrUnavailable = errors.New("securestore: backend unavailable")
	ErrStaleCopy   = errors.New("securestore: stale copy could not be removed")
)
