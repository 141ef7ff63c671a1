// Package repository holds the persistence layer for both backing stores:
// the Postgres document collections shared by a team scope and the Redis
// per-device key-value store used before sign-in.
package repository

import "errors"

// ErrNotFound is returned when a referenced record, team, user, or profile
// does not exist where existence is required. Handlers translate this into
// an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrAuthRequired is returned when an operation needs an authenticated
// identity and none is present. Handlers translate this into HTTP 401.
var ErrAuthRequired = errors.New("authentication required")

// ErrPersistence wraps local or remote store failures (I/O, network,
// permission). Callers check it with errors.Is; the underlying cause stays
// in the wrapped chain.
var ErrPersistence = errors.New("persistence failure")

// ErrScopeUnresolved marks the transient state where the profile lookup that
// determines the active scope has not completed or failed. It is not a
// user-facing error unless it persists past the resolution timeout.
var ErrScopeUnresolved = errors.New("scope unresolved")
