package record

// Stats tracks the lifecycle of a product record: when it was first built,
// when a merge last mutated it, and how many mutating merges it has seen.
type Stats struct {
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
	Updates   int64 `json:"updates"`
}

// Record is one product's full stored state: the versioned field tree plus
// lifecycle stats.
type Record struct {
	Product *Node `json:"product"`
	Stats   Stats `json:"stats"`
}

// NewRecord returns an empty record stamped at now. A freshly created record
// has zero updates and identical created_at and updated_at.
func NewRecord(now int64) *Record {
	return &Record{
		Product: NewNode(),
		Stats: Stats{
			CreatedAt: now,
			UpdatedAt: now,
			Updates:   0,
		},
	}
}

// Touch marks the record as mutated at now. Callers invoke it only when a
// merge actually changed at least one field, so idempotent re-imports leave
// the stats alone.
func (r *Record) Touch(now int64) {
	r.Stats.UpdatedAt = now
	r.Stats.Updates++
}
