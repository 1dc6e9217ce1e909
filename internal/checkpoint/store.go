package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/acuervo/catalog-mirror/internal/catalog"
	"github.com/acuervo/catalog-mirror/internal/storage"
)

// ErrUnknownCategory is returned when a mutation targets a category that is
// not on the frontier.
var ErrUnknownCategory = errors.New("category not on checkpoint frontier")

// Store reads and mutates warehouse checkpoints through a storage backend.
// Every mutation persists before returning, so the on-disk frontier never
// claims work that has not actually finished.
type Store struct {
	backend storage.Backend
}

// NewStore returns a Store writing through backend.
func NewStore(backend storage.Backend) *Store {
	return &Store{backend: backend}
}

func (s *Store) key(warehouse string) string {
	if warehouse == "" {
		return "checkpoints/default.json"
	}
	return fmt.Sprintf("checkpoints/%s.json", warehouse)
}

// Read loads the warehouse checkpoint. A missing document yields an empty
// checkpoint, which callers treat as a cold start.
func (s *Store) Read(ctx context.Context, warehouse string) (*Checkpoint, error) {
	var cp Checkpoint
	err := s.backend.ReadJSON(ctx, s.key(warehouse), &cp)
	if errors.Is(err, storage.ErrNotFound) {
		return &Checkpoint{Warehouse: warehouse}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", warehouse, err)
	}
	cp.Warehouse = warehouse
	return &cp, nil
}

func (s *Store) write(ctx context.Context, cp *Checkpoint) error {
	if _, err := s.backend.WriteJSON(ctx, s.key(cp.Warehouse), cp); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", cp.Warehouse, err)
	}
	return nil
}

// SeedCategories initializes the frontier with every category id in listing
// order, all unlisted. It replaces whatever frontier was stored before.
func (s *Store) SeedCategories(ctx context.Context, warehouse string, ids []int) (*Checkpoint, error) {
	cp := &Checkpoint{Warehouse: warehouse, Categories: make([]CategoryProgress, 0, len(ids))}
	for _, id := range ids {
		cp.Categories = append(cp.Categories, CategoryProgress{ID: id, State: StateUnlisted})
	}
	if err := s.write(ctx, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// SetCategoryProducts records the fetched product listing for a category and
// flips it to listed. Stub keys preserve listing positions. An empty listing
// flips the category straight to drained.
func (s *Store) SetCategoryProducts(ctx context.Context, cp *Checkpoint, categoryID int, products []catalog.RawProduct) error {
	cat := cp.Category(categoryID)
	if cat == nil {
		return fmt.Errorf("category %d: %w", categoryID, ErrUnknownCategory)
	}
	if len(products) == 0 {
		cat.State = StateDrained
		cat.Products = nil
		return s.write(ctx, cp)
	}
	cat.State = StateListed
	cat.Products = make([]ProductStub, 0, len(products))
	for i, p := range products {
		cat.Products = append(cat.Products, ProductStub{Key: i, Product: p})
	}
	return s.write(ctx, cp)
}

// RemoveProductStub marks one product as done. When it was the category's
// last stub the category flips to drained in the same write.
func (s *Store) RemoveProductStub(ctx context.Context, cp *Checkpoint, categoryID, key int) error {
	cat := cp.Category(categoryID)
	if cat == nil {
		return fmt.Errorf("category %d: %w", categoryID, ErrUnknownCategory)
	}
	if !cat.removeStub(key) {
		return fmt.Errorf("category %d stub %d: %w", categoryID, key, ErrUnknownCategory)
	}
	return s.write(ctx, cp)
}

// RemoveCategory clears a finished or skipped category from the frontier.
func (s *Store) RemoveCategory(ctx context.Context, cp *Checkpoint, categoryID int) error {
	if !cp.removeCategory(categoryID) {
		return fmt.Errorf("category %d: %w", categoryID, ErrUnknownCategory)
	}
	return s.write(ctx, cp)
}
