package store

import "errors"

var (
	ErrUnavailable = errors.New("backend not available")
	ErrConflict    = errors.New("record already exists")
	ErrNotFound    = errors.New("record not found")
	ErrCacheMiss   = errors.New("cache key not found")
)
