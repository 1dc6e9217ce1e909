package record

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/goccy/go-json"
)

// Node is one position in the record tree. Interior nodes hold children keyed
// by path segment; leaves hold a versioned Field. A node may carry both when
// the remote flips a field between scalar and object shapes.
type Node struct {
	children map[string]*Node
	field    *Field
}

// NewNode returns an empty interior node.
func NewNode() *Node {
	return &Node{}
}

// Field returns the node's versioned field, or nil for interior nodes.
func (n *Node) Field() *Field {
	return n.field
}

// SetField attaches a versioned field to the node.
func (n *Node) SetField(f *Field) {
	n.field = f
}

// Child returns the named child, or nil.
func (n *Node) Child(key string) *Node {
	return n.children[key]
}

// Keys returns the child keys in stable order: numeric segments ascending
// first, then the rest lexicographically. This ordering is what keeps
// persisted output diff-friendly.
func (n *Node) Keys() []string {
	keys := make([]string, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	sortSegments(keys)
	return keys
}

// Len returns the number of children.
func (n *Node) Len() int {
	return len(n.children)
}

// ResolveOrCreate walks the path from this node, creating interior nodes as
// needed, and returns a handle to the final node.
func (n *Node) ResolveOrCreate(path ...string) *Node {
	cur := n
	for _, segment := range path {
		if cur.children == nil {
			cur.children = make(map[string]*Node)
		}
		next, ok := cur.children[segment]
		if !ok {
			next = NewNode()
			cur.children[segment] = next
		}
		cur = next
	}
	return cur
}

// Resolve walks the path without creating anything; nil when absent.
func (n *Node) Resolve(path ...string) *Node {
	cur := n
	for _, segment := range path {
		cur = cur.children[segment]
		if cur == nil {
			return nil
		}
	}
	return cur
}

// MarshalJSON renders the node with stable, numeric-aware key ordering.
func (n *Node) MarshalJSON() ([]byte, error) {
	if n.field != nil && len(n.children) == 0 {
		return json.Marshal(n.field)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	writeKey := func(key string, value any) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	if n.field != nil {
		if err := writeKey("value", n.field.Value); err != nil {
			return nil, err
		}
		if err := writeKey("timestamp", n.field.Timestamp); err != nil {
			return nil, err
		}
		if err := writeKey("previous", n.field.Previous); err != nil {
			return nil, err
		}
	}
	for _, key := range n.Keys() {
		if err := writeKey(key, n.children[key]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON rebuilds the node, recognizing versioned-field leaves by the
// presence of the value/timestamp/previous triple.
func (n *Node) UnmarshalJSON(data []byte) error {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	_, hasValue := raw["value"]
	_, hasTS := raw["timestamp"]
	_, hasPrev := raw["previous"]
	if hasValue && hasTS && hasPrev {
		var f Field
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("decode versioned field: %w", err)
		}
		if f.Previous == nil {
			f.Previous = []Version{}
		}
		n.field = &f
		delete(raw, "value")
		delete(raw, "timestamp")
		delete(raw, "previous")
	}

	for key, msg := range raw {
		child := NewNode()
		if err := json.Unmarshal(msg, child); err != nil {
			return fmt.Errorf("decode node %q: %w", key, err)
		}
		if n.children == nil {
			n.children = make(map[string]*Node)
		}
		n.children[key] = child
	}
	return nil
}

// sortSegments orders path segments numerically where possible, then
// lexicographically, with numeric segments ahead of non-numeric ones.
func sortSegments(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		ni, iErr := strconv.Atoi(keys[i])
		nj, jErr := strconv.Atoi(keys[j])
		switch {
		case iErr == nil && jErr == nil:
			return ni < nj
		case iErr == nil:
			return true
		case jErr == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
}
