package vm

import (
	"fmt"
	"strings"

	"github.com/chazu/stackvm/vm/stackitem"
)

// InspectionResult contains structured information about an inspected item.
type InspectionResult struct {
	Type     string              // Item type name
	Value    string              // Short rendering of the item
	Size     int                 // For compounds and byte items: length
	Elements []*InspectionResult // For compounds: preview of elements (limited)
	Keys     []*InspectionResult // For maps: keys matching Elements
	Cycle    bool                // The item already appears higher up the tree

	compound bool
}

// MaxElementPreview is the maximum number of compound elements to preview.
const MaxElementPreview = 10

// DefaultMaxDepth is the default recursion depth for inspection.
const DefaultMaxDepth = 3

// Inspect inspects an item with the default maximum depth.
func Inspect(item stackitem.Item) *InspectionResult {
	return InspectDepth(item, DefaultMaxDepth)
}

// InspectDepth inspects an item down to depth levels. Compounds reached
// again on the current path are marked as cycles instead of expanded.
func InspectDepth(item stackitem.Item, depth int) *InspectionResult {
	return inspect(item, depth, make(map[stackitem.Item]bool))
}

func inspect(item stackitem.Item, depth int, path map[stackitem.Item]bool) *InspectionResult {
	r := &InspectionResult{Type: item.Type().String(), Value: item.String()}

	switch x := item.(type) {
	case *stackitem.ByteString:
		b, _ := x.TryBytes()
		r.Size = len(b)
		r.Value = previewBytes(b)
	case *stackitem.Buffer:
		r.Size = x.Len()
		r.Value = previewBytes(x.Bytes())
	case stackitem.Compound:
		r.compound = true
		r.Size = x.Len()
		if path[item] {
			r.Cycle = true
			return r
		}
		if depth <= 0 {
			return r
		}
		path[item] = true
		defer delete(path, item)
		if m, ok := x.(*stackitem.Map); ok {
			for i, entry := range m.Entries() {
				if i == MaxElementPreview {
					break
				}
				r.Keys = append(r.Keys, inspect(entry.Key, depth-1, path))
				r.Elements = append(r.Elements, inspect(entry.Value, depth-1, path))
			}
			return r
		}
		for i, sub := range x.SubItems() {
			if i == MaxElementPreview {
				break
			}
			r.Elements = append(r.Elements, inspect(sub, depth-1, path))
		}
	}
	return r
}

// previewBytes renders bytes as a quoted string when printable and as hex
// otherwise.
func previewBytes(b []byte) string {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("0x%x", b)
		}
	}
	return fmt.Sprintf("%q", b)
}

// String returns a pretty-printed representation of the inspection result.
func (r *InspectionResult) String() string {
	var sb strings.Builder
	r.write(&sb, 0, "")
	return sb.String()
}

func (r *InspectionResult) write(sb *strings.Builder, indent int, label string) {
	sb.WriteString(strings.Repeat("  ", indent))
	sb.WriteString(label)
	sb.WriteString(r.Type)
	switch {
	case r.Cycle:
		sb.WriteString(" <cycle>")
	case r.compound:
		sb.WriteString(fmt.Sprintf(" (%d)", r.Size))
	default:
		sb.WriteString(": ")
		sb.WriteString(r.Value)
	}
	sb.WriteString("\n")

	for idx, elem := range r.Elements {
		if idx < len(r.Keys) {
			elem.write(sb, indent+1, "["+r.Keys[idx].Value+"] ")
		} else {
			elem.write(sb, indent+1, fmt.Sprintf("[%d] ", idx))
		}
	}
	if len(r.Elements) < r.Size && len(r.Elements) > 0 {
		sb.WriteString(strings.Repeat("  ", indent+1))
		sb.WriteString(fmt.Sprintf("... %d more\n", r.Size-len(r.Elements)))
	}
}
