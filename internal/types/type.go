// internal/types/type.go
package types

import "strings"

/*
 * Type descriptors for plugin-supplied data models.
 *
 * A Type describes what a path produces. It is a plain value: two descriptors
 * are the same type when Kind, Name and element type match. Object and Event
 * descriptors carry the Schema used to resolve further path segments (object
 * properties, event arguments).
 *
 * Castability mirrors what operators need:
 *   - identical types
 *   - assignable: target is Any, or a generic (unnamed) enum/handle/object/list/event
 *   - numerically wideable: Int -> Float
 */

// Kind is the closed set of value kinds.
type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindEnum
	KindHandle
	KindObject
	KindList
	KindEvent
	KindAny
)

var kindNames = [...]string{
	KindNone:   "none",
	KindBool:   "bool",
	KindInt:    "int",
	KindFloat:  "float",
	KindString: "string",
	KindEnum:   "enum",
	KindHandle: "handle",
	KindObject: "object",
	KindList:   "list",
	KindEvent:  "event",
	KindAny:    "any",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// ParseKind converts a persisted kind name back to a Kind.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), true
		}
	}
	return KindNone, false
}

// Type describes the values a property or path produces.
type Type struct {
	Kind       Kind
	Name       string   // enum, handle or object type name; empty means generic
	Elem       *Type    // list element type
	Schema     *Schema  // object layout or event argument layout
	EnumValues []string // declared enum members, optional
}

// Common descriptors.
var (
	BoolType   = Type{Kind: KindBool}
	IntType    = Type{Kind: KindInt}
	FloatType  = Type{Kind: KindFloat}
	StringType = Type{Kind: KindString}
	AnyType    = Type{Kind: KindAny}

	// Generic descriptors accept any named type of their kind.
	AnyEnumType   = Type{Kind: KindEnum}
	AnyHandleType = Type{Kind: KindHandle}
	AnyObjectType = Type{Kind: KindObject}
	AnyListType   = Type{Kind: KindList}
	AnyEventType  = Type{Kind: KindEvent}
)

// ListOf returns a list descriptor with the given element type.
func ListOf(elem Type) Type {
	e := elem
	return Type{Kind: KindList, Elem: &e}
}

// EnumOf returns a named enum descriptor.
func EnumOf(name string, values ...string) Type {
	return Type{Kind: KindEnum, Name: name, EnumValues: values}
}

// HandleOf returns a named opaque handle descriptor.
func HandleOf(name string) Type {
	return Type{Kind: KindHandle, Name: name}
}

// ObjectOfSchema returns the descriptor for objects laid out by s.
func ObjectOfSchema(s *Schema) Type {
	return Type{Kind: KindObject, Name: s.Name(), Schema: s}
}

// EventOf returns an event descriptor. args may be nil for events without arguments.
func EventOf(args *Schema) Type {
	t := Type{Kind: KindEvent, Schema: args}
	if args != nil {
		t.Name = args.Name()
	}
	return t
}

// IsZero reports whether the descriptor is unset.
func (t Type) IsZero() bool {
	return t.Kind == KindNone
}

// Nullable reports whether values of this type may be None.
// Value kinds (bool, numbers, enums) are never null; reference kinds are.
func (t Type) Nullable() bool {
	switch t.Kind {
	case KindString, KindHandle, KindObject, KindList, KindEvent, KindAny:
		return true
	default:
		return false
	}
}

// Numeric reports whether the type is Int or Float.
func (t Type) Numeric() bool {
	return t.Kind == KindInt || t.Kind == KindFloat
}

// ArgumentType returns the object type of an event's arguments.
func (t Type) ArgumentType() (Type, bool) {
	if t.Kind != KindEvent || t.Schema == nil {
		return Type{}, false
	}
	return ObjectOfSchema(t.Schema), true
}

// ElemType returns the element type of a list.
func (t Type) ElemType() (Type, bool) {
	if t.Kind != KindList || t.Elem == nil {
		return Type{}, false
	}
	return *t.Elem, true
}

// Equal reports whether t and u describe the same type.
func (t Type) Equal(u Type) bool {
	if t.Kind != u.Kind || t.Name != u.Name {
		return false
	}
	if t.Kind == KindList {
		if t.Elem == nil || u.Elem == nil {
			return t.Elem == nil && u.Elem == nil
		}
		return t.Elem.Equal(*u.Elem)
	}
	return true
}

// CastableTo reports whether a value of type t can be used where u is declared:
// identical, assignable, or numerically wideable.
func (t Type) CastableTo(u Type) bool {
	if u.Kind == KindAny {
		return t.Kind != KindNone
	}
	if t.Equal(u) {
		return true
	}
	if t.Kind == KindInt && u.Kind == KindFloat {
		return true
	}
	if t.Kind != u.Kind {
		return false
	}
	switch t.Kind {
	case KindEnum, KindHandle, KindObject, KindEvent:
		return u.Name == ""
	case KindList:
		if u.Elem == nil {
			return true
		}
		return t.Elem != nil && t.Elem.CastableTo(*u.Elem)
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t.Kind {
	case KindList:
		if t.Elem == nil {
			return "list"
		}
		return "list<" + t.Elem.String() + ">"
	case KindEnum, KindHandle, KindObject, KindEvent:
		if t.Name == "" {
			return t.Kind.String()
		}
		var b strings.Builder
		b.WriteString(t.Kind.String())
		b.WriteByte('(')
		b.WriteString(t.Name)
		b.WriteByte(')')
		return b.String()
	default:
		return t.Kind.String()
	}
}
