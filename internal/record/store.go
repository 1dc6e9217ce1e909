package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/acuervo/catalog-mirror/internal/storage"
)

// Store persists records through a storage backend, one document per
// product, partitioned by warehouse.
type Store struct {
	backend storage.Backend
}

// NewStore returns a Store writing through backend.
func NewStore(backend storage.Backend) *Store {
	return &Store{backend: backend}
}

// key builds the document key for a product. Warehouse may be empty, in
// which case records live unpartitioned at the root.
func (s *Store) key(warehouse, productID string) string {
	if warehouse == "" {
		return fmt.Sprintf("products/%s.json", productID)
	}
	return fmt.Sprintf("products/%s/%s.json", warehouse, productID)
}

// Exists reports whether a record for the product is already stored.
func (s *Store) Exists(ctx context.Context, warehouse, productID string) (bool, error) {
	return s.backend.Exists(ctx, s.key(warehouse, productID))
}

// Load reads the stored record for a product. It returns storage.ErrNotFound
// when the product has never been imported.
func (s *Store) Load(ctx context.Context, warehouse, productID string) (*Record, error) {
	var rec Record
	if err := s.backend.ReadJSON(ctx, s.key(warehouse, productID), &rec); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load record %s: %w", productID, err)
	}
	if rec.Product == nil {
		rec.Product = NewNode()
	}
	return &rec, nil
}

// Save writes the record and returns the backend location of the document.
func (s *Store) Save(ctx context.Context, warehouse, productID string, rec *Record) (string, error) {
	loc, err := s.backend.WriteJSON(ctx, s.key(warehouse, productID), rec)
	if err != nil {
		return "", fmt.Errorf("save record %s: %w", productID, err)
	}
	return loc, nil
}
