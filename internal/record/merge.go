package record

import "strconv"

// Change describes one field mutation produced by a merge.
type Change struct {
	// Path is the dotted location of the field inside the record tree.
	Path string
	// From holds the displaced value. Nil for newly created fields.
	From any
	// To holds the value now stored at Path.
	To any
	// Created is true when the field did not exist before the merge.
	Created bool
}

// Merger folds remote payloads into records. Now supplies the timestamp
// stamped on every observation of a single merge.
type Merger struct {
	Now func() int64
}

// Merge walks payload and records every scalar as a field observation in
// rec.Product. It returns the list of fields the merge created or changed,
// in deterministic path order. The caller decides whether the changes
// warrant a stats bump.
//
// The categories slice gets re-keyed before the walk so that a category
// keeps its original slot across imports even when the remote listing
// reorders or drops siblings.
func (m *Merger) Merge(rec *Record, payload map[string]any) []Change {
	now := m.Now()
	payload = m.reindexCategories(rec, payload)

	var changes []Change
	walkMap(rec.Product, nil, payload, now, &changes)
	return changes
}

// reindexCategories maps each remote category to the slot it already holds
// in the record, matching on the category id. New categories are appended
// after the highest occupied slot so existing slots never shift.
func (m *Merger) reindexCategories(rec *Record, payload map[string]any) map[string]any {
	raw, ok := payload["categories"].([]any)
	if !ok {
		return payload
	}

	slotByID := make(map[string]string)
	maxSlot := -1
	if cats := rec.Product.Resolve("categories"); cats != nil {
		for _, slot := range cats.Keys() {
			n, err := strconv.Atoi(slot)
			if err != nil {
				continue
			}
			if n > maxSlot {
				maxSlot = n
			}
			if idNode := cats.Resolve(slot, "id"); idNode != nil && idNode.Field() != nil {
				slotByID[canonicalID(idNode.Field().Value)] = slot
			}
		}
	}

	reindexed := make(map[string]any, len(raw))
	for _, item := range raw {
		cat, ok := item.(map[string]any)
		if !ok {
			continue
		}
		slot, known := slotByID[canonicalID(cat["id"])]
		if !known {
			maxSlot++
			slot = strconv.Itoa(maxSlot)
		}
		reindexed[slot] = cat
	}

	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	out["categories"] = reindexed
	return out
}

// canonicalID normalizes an id value so numeric and string encodings of the
// same id land on the same key.
func canonicalID(v any) string {
	if f, ok := asNumber(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func walkMap(root *Node, prefix []string, m map[string]any, now int64, changes *[]Change) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortSegments(keys)
	for _, k := range keys {
		walkValue(root, append(prefix, k), m[k], now, changes)
	}
}

func walkValue(root *Node, path []string, v any, now int64, changes *[]Change) {
	switch val := v.(type) {
	case map[string]any:
		walkMap(root, path, val, now, changes)
	case []any:
		for i, item := range val {
			walkValue(root, append(path, strconv.Itoa(i)), item, now, changes)
		}
	default:
		observe(root, path, val, now, changes)
	}
}

func observe(root *Node, path []string, value any, now int64, changes *[]Change) {
	node := root.ResolveOrCreate(path...)
	f := node.Field()
	if f == nil {
		node.SetField(&Field{Value: value, Timestamp: now, Previous: []Version{}})
		*changes = append(*changes, Change{Path: joinPath(path), To: value, Created: true})
		return
	}
	from := f.Value
	if f.Observe(value, now) {
		*changes = append(*changes, Change{Path: joinPath(path), From: from, To: value})
	}
}

func joinPath(path []string) string {
	switch len(path) {
	case 0:
		return ""
	case 1:
		return path[0]
	}
	n := len(path) - 1
	for _, s := range path {
		n += len(s)
	}
	buf := make([]byte, 0, n)
	buf = append(buf, path[0]...)
	for _, s := range path[1:] {
		buf = append(buf, '.')
		buf = append(buf, s...)
	}
	return string(buf)
}
