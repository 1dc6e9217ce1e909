// Package checkpoint persists the import frontier so a run can resume after
// a crash or rate-limit pause without repeating finished work.
package checkpoint

import (
	"github.com/acuervo/catalog-mirror/internal/catalog"
)

// CategoryState tracks how far a category has progressed through a run.
type CategoryState string

const (
	// StateUnlisted means the category is known but its product listing
	// has not been fetched yet.
	StateUnlisted CategoryState = "unlisted"
	// StateListed means the product listing was fetched and stubs remain
	// to be processed.
	StateListed CategoryState = "listed"
	// StateDrained means every stub was processed. The marker survives
	// until the category itself is cleared, so a resume never refetches
	// a finished listing.
	StateDrained CategoryState = "drained"
)

// ProductStub is one pending product within a category. Key preserves the
// product's position in the original listing.
type ProductStub struct {
	Key     int                `json:"key"`
	Product catalog.RawProduct `json:"product"`
}

// CategoryProgress is the remaining work for one category.
type CategoryProgress struct {
	ID       int           `json:"id"`
	State    CategoryState `json:"state"`
	Products []ProductStub `json:"products,omitempty"`
}

// Checkpoint is the full frontier for one warehouse. Categories keep the
// order the remote listed them in, so processing order is stable across
// resumes.
type Checkpoint struct {
	Warehouse  string             `json:"warehouse"`
	Categories []CategoryProgress `json:"categories"`
}

// Category returns a pointer to the named category's progress, or nil.
func (c *Checkpoint) Category(id int) *CategoryProgress {
	for i := range c.Categories {
		if c.Categories[i].ID == id {
			return &c.Categories[i]
		}
	}
	return nil
}

// removeCategory drops the category from the frontier, preserving order of
// the rest.
func (c *Checkpoint) removeCategory(id int) bool {
	for i := range c.Categories {
		if c.Categories[i].ID == id {
			c.Categories = append(c.Categories[:i], c.Categories[i+1:]...)
			return true
		}
	}
	return false
}

// removeStub drops one product stub from the category. When the last stub
// goes, the category flips to drained.
func (p *CategoryProgress) removeStub(key int) bool {
	for i := range p.Products {
		if p.Products[i].Key == key {
			p.Products = append(p.Products[:i], p.Products[i+1:]...)
			if len(p.Products) == 0 {
				p.Products = nil
				p.State = StateDrained
			}
			return true
		}
	}
	return false
}
