// Package tokenstore persists the client's access and refresh tokens.
//
// A Store is a small string key-value contract. The authenticated client
// treats every call as blocking and awaits it before moving on, so
// implementations only need last-write-wins semantics.
package tokenstore

import (
	"context"
	"errors"
)

// Well-known keys the client reads and writes.
const (
	KeyAccessToken  = "auth_token"
	KeyRefreshToken = "refresh_token"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("token not found")

// Store is durable key-value persistence for token strings.
type Store interface {
	// Get returns the value under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}
