// Package kv is the client for the external config store: an
// eventually-consistent string key-value map with no transactions.
// All values are JSON-encoded blobs owned by their writing component.
package kv

import "context"

// Store reads and writes string values by key. A missing key is not an
// error; Get reports presence through its second return value.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
}
