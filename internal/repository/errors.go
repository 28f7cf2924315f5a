package repository

import "errors"

// ErrNotFound indicates the requested record does not exist. All
// backends, including the Redis caches and the in-process fallback,
// return it for misses so callers can branch without knowing the store.
var ErrNotFound = errors.New("repository: not found")
