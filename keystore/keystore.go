// Package keystore defines the contract strategies use to persist
// credentials and tokens. The backing implementation is an external
// collaborator - a platform secure store, a database, or an in-memory
// map in tests - exposed here as an opaque key-value secret store.
package keystore

import (
	"context"
	"fmt"
)

// Keys used by the authentication strategies. The current_user key is
// deliberately shared across strategy kinds: whichever strategy is active
// owns "who is logged in", last writer wins.
const (
	KeyAccessToken    = "access_token"
	KeyRefreshToken   = "refresh_token"
	KeyTokenExpires   = "token_expires"
	KeySessionID      = "session_id"
	KeySessionExpires = "session_expires"
	KeyCurrentUser    = "current_user"

	// OAuth2 token material is namespaced so a Session or JWT login
	// cannot clobber an OAuth2 token set.
	OAuth2Prefix = "oauth2_"
)

// Store operations, used as the Op field of StoreError.
const (
	OpStore    = "store"
	OpRetrieve = "retrieve"
	OpDelete   = "delete"
	OpClear    = "clear"
)

// Store is an opaque key-value secret store.
//
// Retrieve reports presence through its bool return - a missing key is
// not an error. Delete of an absent key is a no-op, not an error.
type Store interface {
	Store(ctx context.Context, key, value string) error
	Retrieve(ctx context.Context, key string) (value string, ok bool, err error)
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// StoreError wraps a failure of a single store operation.
type StoreError struct {
	Op  string // one of OpStore, OpRetrieve, OpDelete, OpClear
	Key string // key involved, empty for Clear
	Err error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("keystore %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("keystore %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
