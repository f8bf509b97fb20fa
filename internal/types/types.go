// Package types provides domain models shared across lumen components.
//
// Zero-dependency design: value.go, type.go, schema.go and coercion.go use only
// the standard library so plugins can depend on this package without pulling in
// storage or transport code. ID utilities in ids.go import uuid but are isolated.
//
// The data model exposed by plugins is described with descriptors (Schema,
// Property, Getter) instead of runtime reflection; values travel as the closed
// tagged union Value.
package types

import "fmt"

// BuiltinExtensionID identifies operators and data models shipped with lumen.
const BuiltinExtensionID = "builtin"

// DataModelID identifies a live data model instance.
// ExtensionID names the owning plugin, Key is unique within that plugin.
type DataModelID struct {
	ExtensionID string `json:"extension_id"`
	Key         string `json:"key"`
}

// IsZero reports whether the id is unset.
func (id DataModelID) IsZero() bool {
	return id.ExtensionID == "" && id.Key == ""
}

// String implements fmt.Stringer.
func (id DataModelID) String() string {
	return fmt.Sprintf("%s/%s", id.ExtensionID, id.Key)
}

// OperatorRef identifies a registered operator by owning extension and type name.
type OperatorRef struct {
	ExtensionID string `json:"extension_id"`
	Type        string `json:"type"`
}

// IsZero reports whether the reference is unset.
func (r OperatorRef) IsZero() bool {
	return r.ExtensionID == "" && r.Type == ""
}

// String implements fmt.Stringer.
func (r OperatorRef) String() string {
	return fmt.Sprintf("%s/%s", r.ExtensionID, r.Type)
}

// Resource limits enforced while building condition trees.
const (
	// MaxPathDepth prevents unbounded accessor chains.
	// 16 segments covers deeply nested plugin models (Game.Player.Inventory.Slot...).
	MaxPathDepth = 16

	// MaxTreeDepth bounds nesting of groups, lists and events when loading entities.
	// Persisted trees deeper than this are rejected as malformed.
	MaxTreeDepth = 32

	// MaxScriptLength caps Static condition scripts to keep compilation bounded.
	MaxScriptLength = 16 * 1024
)
