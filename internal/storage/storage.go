// Package storage defines the keyed JSON document boundary used by the
// checkpoint store, the identity map, and the record store.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by ReadJSON when no document exists at the key.
var ErrNotFound = errors.New("document not found")

// Backend persists whole JSON documents under string keys. Writes always
// replace the full document; there is no partial-write protocol.
type Backend interface {
	// ReadJSON decodes the document at key into v. Returns ErrNotFound if
	// the document does not exist.
	ReadJSON(ctx context.Context, key string, v any) error
	// WriteJSON encodes v and replaces the document at key, returning a
	// location string suitable for progress reporting.
	WriteJSON(ctx context.Context, key string, v any) (string, error)
	// Exists reports whether a document is present at key.
	Exists(ctx context.Context, key string) (bool, error)
}
