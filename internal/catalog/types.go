// Package catalog implements the client for the remote catalog API.
package catalog

import (
	"strconv"
)

// RawProduct is a product payload as returned by the remote API. Listing
// payloads carry a subset of fields; detail payloads add EAN and extended
// attributes. The remote mixes numeric and string encodings for the same
// field across endpoints, so accessors coerce.
type RawProduct map[string]any

// ID returns the product id as a string, regardless of wire encoding.
func (p RawProduct) ID() string {
	return p.StringField("id")
}

// StringField coerces the named scalar field to a string. Missing or
// non-scalar fields yield "".
func (p RawProduct) StringField(key string) string {
	return coerceString(p[key])
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}
