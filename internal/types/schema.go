// internal/types/schema.go
package types

import (
	"sort"
)

/*
 * Descriptor-based schemas.
 *
 * A data model publishes its shape once at registration time as a Schema: an
 * ordered set of named properties, each with a declared Type and a Getter.
 * Path resolution composes getters by chained lookup, so evaluation never
 * reflects over plugin structs.
 *
 * Schemas are immutable after NewSchema. A data model whose shape changes
 * publishes a new Schema and notifies the registry.
 */

// Getter reads one property from an object's opaque data.
type Getter func(data any) Value

// Property describes one named member of a Schema.
type Property struct {
	Name        string
	Type        Type
	Get         Getter
	Description string
}

// Schema is an immutable, ordered property registry.
type Schema struct {
	name  string
	props []Property
	index map[string]int
}

// NewSchema builds a schema. Duplicate property names keep the first
// declaration; properties without a getter read as None.
func NewSchema(name string, props ...Property) *Schema {
	s := &Schema{
		name:  name,
		props: make([]Property, 0, len(props)),
		index: make(map[string]int, len(props)),
	}
	for _, p := range props {
		if _, dup := s.index[p.Name]; dup || p.Name == "" {
			continue
		}
		if p.Get == nil {
			p.Get = func(any) Value { return None() }
		}
		s.index[p.Name] = len(s.props)
		s.props = append(s.props, p)
	}
	return s
}

// Name returns the schema's type name. Nil schemas have no name.
func (s *Schema) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Property looks up a property by name.
func (s *Schema) Property(name string) (Property, bool) {
	if s == nil {
		return Property{}, false
	}
	i, ok := s.index[name]
	if !ok {
		return Property{}, false
	}
	return s.props[i], true
}

// Properties returns the properties in declaration order.
func (s *Schema) Properties() []Property {
	if s == nil {
		return nil
	}
	out := make([]Property, len(s.props))
	copy(out, s.props)
	return out
}

// Len returns the number of properties.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.props)
}

// SameLayout reports whether two schemas expose the same property names and
// types, recursing into nested object and event argument schemas.
func (s *Schema) SameLayout(o *Schema) bool {
	return sameLayout(s, o, 0)
}

func sameLayout(a, b *Schema, depth int) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || depth > MaxPathDepth {
		return false
	}
	if a.name != b.name || len(a.props) != len(b.props) {
		return false
	}
	for i := range a.props {
		pa, pb := a.props[i], b.props[i]
		if pa.Name != pb.Name || !sameType(pa.Type, pb.Type, depth) {
			return false
		}
	}
	return true
}

func sameType(a, b Type, depth int) bool {
	if !a.Equal(b) {
		return false
	}
	switch a.Kind {
	case KindObject, KindEvent:
		return sameLayout(a.Schema, b.Schema, depth+1)
	case KindList:
		if a.Elem == nil || b.Elem == nil {
			return a.Elem == nil && b.Elem == nil
		}
		return sameType(*a.Elem, *b.Elem, depth+1)
	default:
		return true
	}
}

// MapGetter returns a getter reading key from map[string]Value data.
// Missing keys and foreign data read as None.
func MapGetter(key string) Getter {
	return func(data any) Value {
		m, ok := data.(map[string]Value)
		if !ok {
			return None()
		}
		return m[key]
	}
}

// InferObject converts a decoded JSON object into an Object value whose
// schema is inferred from the values. Keys are laid out in sorted order so
// the same document always yields the same layout.
func InferObject(name string, m map[string]any) Value {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	data := make(map[string]Value, len(m))
	props := make([]Property, 0, len(m))
	for _, k := range keys {
		var v Value
		if nested, ok := m[k].(map[string]any); ok {
			v = InferObject(joinName(name, k), nested)
		} else {
			v = FromGo(m[k])
		}
		data[k] = v
		t := v.Type()
		if v.IsNone() {
			t = AnyType
		}
		props = append(props, Property{Name: k, Type: t, Get: MapGetter(k)})
	}
	return ObjectValue(NewSchema(name, props...), data)
}

func joinName(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
