// Package identity maintains the cross-warehouse product identity map: one
// entry per product, listing every warehouse it was seen in.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/acuervo/catalog-mirror/internal/storage"
)

const documentKey = "identities.json"

// Entry is one product identity. Warehouses is kept sorted so the persisted
// document is stable regardless of import order.
type Entry struct {
	ID         string   `json:"id"`
	EAN        string   `json:"ean,omitempty"`
	Slug       string   `json:"slug,omitempty"`
	Name       string   `json:"name,omitempty"`
	Warehouses []string `json:"warehouses"`
}

// Map is the identity map backed by a single storage document. Entries keep
// first-seen order; lookups scan linearly, which is fine at catalog scale.
type Map struct {
	backend storage.Backend
	entries []Entry
	index   map[string]int
}

// Open loads the identity map, or starts empty when none is stored yet.
func Open(ctx context.Context, backend storage.Backend) (*Map, error) {
	m := &Map{backend: backend, index: make(map[string]int)}
	var entries []Entry
	err := backend.ReadJSON(ctx, documentKey, &entries)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load identity map: %w", err)
	}
	m.entries = entries
	for i, e := range entries {
		m.index[e.ID] = i
	}
	return m, nil
}

// Find returns the entry for a product id.
func (m *Map) Find(id string) (Entry, bool) {
	i, ok := m.index[id]
	if !ok {
		return Entry{}, false
	}
	return m.entries[i], true
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.entries)
}

// Upsert records an observation of the product in the given warehouse and
// persists the map. Descriptive fields take the latest non-empty value;
// the warehouse set only grows.
func (m *Map) Upsert(ctx context.Context, e Entry, warehouse string) error {
	if e.ID == "" {
		return errors.New("identity entry without product id")
	}
	i, ok := m.index[e.ID]
	if !ok {
		m.entries = append(m.entries, Entry{ID: e.ID})
		i = len(m.entries) - 1
		m.index[e.ID] = i
	}
	cur := &m.entries[i]
	if e.EAN != "" {
		cur.EAN = e.EAN
	}
	if e.Slug != "" {
		cur.Slug = e.Slug
	}
	if e.Name != "" {
		cur.Name = e.Name
	}
	if warehouse != "" {
		cur.Warehouses = addWarehouse(cur.Warehouses, warehouse)
	}
	if _, err := m.backend.WriteJSON(ctx, documentKey, m.entries); err != nil {
		return fmt.Errorf("save identity map: %w", err)
	}
	return nil
}

func addWarehouse(set []string, warehouse string) []string {
	i := sort.SearchStrings(set, warehouse)
	if i < len(set) && set[i] == warehouse {
		return set
	}
	set = append(set, "")
	copy(set[i+1:], set[i:])
	set[i] = warehouse
	return set
}
