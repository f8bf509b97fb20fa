// Package profile defines the persistent form of a set of render elements
// and its JSON and YAML encodings.
package profile

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/solatis/lumen/internal/display"
	"github.com/solatis/lumen/internal/timeline"
	"github.com/solatis/lumen/internal/types"
)

// CurrentVersion is written into every encoded document.
const CurrentVersion = 1

// MaxElements bounds the number of elements in one profile.
const MaxElements = 4096

// Document is a named set of render elements.
type Document struct {
	Version  int             `json:"version,omitempty"`
	Name     string          `json:"name"`
	Elements []ElementEntity `json:"elements"`
}

// ElementEntity is the persistent form of one render element.
// An empty ParentID places the element at the root.
type ElementEntity struct {
	ID        types.ElementID         `json:"id"`
	Name      string                  `json:"name,omitempty"`
	ParentID  types.ElementID         `json:"parent_id,omitempty"`
	Timeline  timeline.Entity         `json:"timeline"`
	Condition display.ConditionEntity `json:"condition"`
}

// Element returns the element with id.
func (d *Document) Element(id types.ElementID) (ElementEntity, bool) {
	for _, e := range d.Elements {
		if e.ID == id {
			return e, true
		}
	}
	return ElementEntity{}, false
}

// Check validates the element hierarchy: ids are unique, parents exist and
// there are no cycles. Returns an error wrapping types.ErrInvalidProfile.
func (d *Document) Check() error {
	_, err := d.Ordered()
	return err
}

// Ordered returns the elements parents first. Siblings keep document order.
func (d *Document) Ordered() ([]ElementEntity, error) {
	if strings.TrimSpace(d.Name) == "" {
		return nil, fmt.Errorf("%w: empty name", types.ErrInvalidProfile)
	}
	if len(d.Elements) > MaxElements {
		return nil, fmt.Errorf("%w: %d elements, limit %d", types.ErrInvalidProfile, len(d.Elements), MaxElements)
	}

	byID := make(map[types.ElementID]int, len(d.Elements))
	children := make(map[types.ElementID][]int)
	var roots []int
	for i, e := range d.Elements {
		if e.ID == "" {
			return nil, fmt.Errorf("%w: element %d has no id", types.ErrInvalidProfile, i)
		}
		if _, dup := byID[e.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate element id %s", types.ErrInvalidProfile, e.ID)
		}
		byID[e.ID] = i
		if e.ParentID == "" {
			roots = append(roots, i)
		} else {
			children[e.ParentID] = append(children[e.ParentID], i)
		}
	}
	for _, e := range d.Elements {
		if e.ParentID == "" {
			continue
		}
		if e.ParentID == e.ID {
			return nil, fmt.Errorf("%w: element %s is its own parent", types.ErrInvalidProfile, e.ID)
		}
		if _, ok := byID[e.ParentID]; !ok {
			return nil, fmt.Errorf("%w: element %s: parent %s: %w", types.ErrInvalidProfile, e.ID, e.ParentID, types.ErrElementNotFound)
		}
	}

	out := make([]ElementEntity, 0, len(d.Elements))
	queue := roots
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		out = append(out, d.Elements[i])
		queue = append(queue, children[d.Elements[i].ID]...)
	}
	// anything unreached hangs off a cycle
	if len(out) != len(d.Elements) {
		return nil, fmt.Errorf("%w: parent cycle among %d elements", types.ErrInvalidProfile, len(d.Elements)-len(out))
	}
	return out, nil
}

// Format is a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported profile format %q", s)
	}
}

// FormatFromPath picks a format from a file extension, JSON by default.
func FormatFromPath(path string) Format {
	if f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), ".")); err == nil {
		return f
	}
	return FormatJSON
}
