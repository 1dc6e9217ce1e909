// Package record implements the versioned product record tree and the merge
// engine that folds remote payloads into it while preserving field history.
package record

import "strconv"

// Version is one historical observation of a field value.
type Version struct {
	Value     any   `json:"value"`
	Timestamp int64 `json:"timestamp"`
}

// Field is a versioned leaf: the latest observation plus its full history.
// Previous is append-only and ordered oldest-first.
type Field struct {
	Value     any       `json:"value"`
	Timestamp int64     `json:"timestamp"`
	Previous  []Version `json:"previous"`
}

// Observe records a new value at ts. If the value loosely differs from the
// stored one, the stored observation is pushed onto Previous and Observe
// reports true. Equal values leave the field untouched, including the
// timestamp, so unchanged fields never churn.
func (f *Field) Observe(value any, ts int64) bool {
	if LooselyEqual(f.Value, value) {
		return false
	}
	f.Previous = append(f.Previous, Version{Value: f.Value, Timestamp: f.Timestamp})
	f.Value = value
	f.Timestamp = ts
	return true
}

// LooselyEqual compares two JSON scalars with type coercion, matching the
// remote API's habit of flipping fields between numeric and string encodings
// across endpoints and releases.
func LooselyEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if ab, ok := a.(bool); ok {
		return truthyEqual(ab, b)
	}
	if bb, ok := b.(bool); ok {
		return truthyEqual(bb, a)
	}
	if a == nil {
		return zeroish(b)
	}
	if b == nil {
		return zeroish(a)
	}
	af, aNum := asNumber(a)
	bf, bNum := asNumber(b)
	if aNum && bNum {
		return af == bf
	}
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return as == bs
	}
	return false
}

func truthyEqual(val bool, other any) bool {
	switch o := other.(type) {
	case bool:
		return val == o
	case nil:
		return !val
	case float64:
		return val == (o != 0)
	case string:
		return val == (o != "" && o != "0")
	default:
		return false
	}
}

func zeroish(v any) bool {
	switch val := v.(type) {
	case float64:
		return val == 0
	case string:
		return val == ""
	default:
		return false
	}
}

// asNumber reports v as a float64 when it is numeric or a numeric string.
func asNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
