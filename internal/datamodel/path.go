// internal/datamodel/path.go
package datamodel

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/solatis/lumen/internal/notify"
	"github.com/solatis/lumen/internal/types"
)

/*
 * Property path resolution.
 *
 * A Path is a dotted segment chain resolved once against a type graph into a
 * single composed accessor. Evaluation calls the accessor; it never looks up
 * segments by name again.
 *
 * Rooted paths start at a registered data model and re-resolve when the
 * registry reports a change for that model. The resolved state (model,
 * accessor, type) is swapped atomically: the previous accessor keeps working
 * until the replacement is fully built.
 *
 * Relative paths start at a declared type (current list element, event
 * arguments) and are read with ValueFrom.
 *
 * Segment rules:
 *   - object: property name
 *   - list: non-negative integer index
 *   - empty path: the root itself
 *
 * An unresolvable chain leaves the path invalid: Valid() is false, Value()
 * is None. Construction never fails.
 */

// Accessor reads a value relative to a root value.
type Accessor func(root types.Value) types.Value

// resolved is the immutable result of one resolution.
type resolved struct {
	model  DataModel // nil for relative paths
	schema *types.Schema
	get    Accessor
	typ    types.Type
}

// Path is a resolved property path.
// Paths are owned by exactly one node and must be disposed by it.
type Path struct {
	registry *Registry
	root     types.DataModelID
	rootType types.Type
	raw      string
	segments []string

	state  atomic.Pointer[resolved]
	err    atomic.Pointer[error]
	cancel func()

	onValidated   func()
	onInvalidated func()
	disposed      bool
}

// NewPath resolves path against the registered model root and keeps it
// resolved as the registry changes.
func NewPath(reg *Registry, root types.DataModelID, path string) *Path {
	p := &Path{
		registry: reg,
		root:     root,
		raw:      path,
		segments: splitPath(path),
	}
	if reg != nil {
		p.cancel = reg.Subscribe(root, func(notify.Change[types.DataModelID]) {
			p.revalidate()
		})
	}
	p.resolve()
	return p
}

// NewRelativePath resolves path against values of rootType.
func NewRelativePath(rootType types.Type, path string) *Path {
	p := &Path{
		rootType: rootType,
		raw:      path,
		segments: splitPath(path),
	}
	p.resolve()
	return p
}

// splitPath splits on dots. The empty string is the root itself.
func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Valid reports whether every segment resolved.
func (p *Path) Valid() bool {
	return p.state.Load() != nil
}

// Err returns why the last resolution failed, nil when valid.
func (p *Path) Err() error {
	if e := p.err.Load(); e != nil {
		return *e
	}
	return nil
}

// Type returns the resolved property type, zero when invalid.
func (p *Path) Type() types.Type {
	if r := p.state.Load(); r != nil {
		return r.typ
	}
	return types.Type{}
}

// Root returns the data model id of a rooted path.
func (p *Path) Root() types.DataModelID { return p.root }

// RootType returns the declared root type of a relative path.
func (p *Path) RootType() types.Type { return p.rootType }

// IsRelative reports whether the path is read with ValueFrom.
func (p *Path) IsRelative() bool { return p.registry == nil && p.root.IsZero() }

// String returns the dotted path as given.
func (p *Path) String() string { return p.raw }

// Segments returns a copy of the segment list.
func (p *Path) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)
	return out
}

// Value reads a rooted path. Invalid and relative paths read None.
func (p *Path) Value() types.Value {
	r := p.state.Load()
	if r == nil || r.model == nil {
		return types.None()
	}
	return r.get(types.ObjectValue(r.schema, r.model.Data()))
}

// ValueFrom reads the path relative to root. Invalid paths read None.
func (p *Path) ValueFrom(root types.Value) types.Value {
	r := p.state.Load()
	if r == nil {
		return types.None()
	}
	return r.get(root)
}

// Watch registers the owner's callbacks. validated runs after every
// successful re-resolution, invalidated when a valid path stops resolving.
// Both run on the goroutine calling Registry.Dispatch.
func (p *Path) Watch(validated, invalidated func()) {
	p.onValidated = validated
	p.onInvalidated = invalidated
}

// Revalidate re-resolves the path now.
func (p *Path) Revalidate() {
	p.revalidate()
}

func (p *Path) revalidate() {
	if p.disposed {
		return
	}
	wasValid := p.Valid()
	p.resolve()
	switch {
	case p.Valid():
		if p.onValidated != nil {
			p.onValidated()
		}
	case wasValid:
		if p.onInvalidated != nil {
			p.onInvalidated()
		}
	}
}

// Dispose unsubscribes from the registry and clears the accessor.
func (p *Path) Dispose() {
	if p.disposed {
		return
	}
	p.disposed = true
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.state.Store(nil)
	p.onValidated = nil
	p.onInvalidated = nil
}

// resolve builds the accessor and swaps it in.
func (p *Path) resolve() {
	r, err := p.build()
	if err != nil {
		p.err.Store(&err)
		p.state.Store(nil)
		return
	}
	p.err.Store(nil)
	p.state.Store(r)
}

func (p *Path) build() (*resolved, error) {
	var (
		model    DataModel
		schema   *types.Schema
		rootType = p.rootType
	)
	if p.registry != nil || !p.root.IsZero() {
		if p.registry == nil {
			return nil, fmt.Errorf("path %q: %w", p.raw, types.ErrDataModelNotFound)
		}
		m, ok := p.registry.Get(p.root)
		if !ok {
			return nil, fmt.Errorf("path %q on %s: %w", p.raw, p.root, types.ErrDataModelNotFound)
		}
		model = m
		schema = m.Schema()
		rootType = types.ObjectOfSchema(schema)
	}

	get, typ, err := Compile(rootType, p.segments)
	if err != nil {
		return nil, fmt.Errorf("path %q: %w", p.raw, err)
	}
	return &resolved{model: model, schema: schema, get: get, typ: typ}, nil
}

// Compile walks segments through the type graph starting at rootType and
// composes one accessor. Returns ErrPathTooDeep or ErrPropertyNotFound.
func Compile(rootType types.Type, segments []string) (Accessor, types.Type, error) {
	if len(segments) > types.MaxPathDepth {
		return nil, types.Type{}, types.ErrPathTooDeep
	}
	if rootType.IsZero() {
		return nil, types.Type{}, types.ErrPropertyNotFound
	}

	get := Accessor(func(v types.Value) types.Value { return v })
	cur := rootType
	for _, seg := range segments {
		if seg == "" {
			return nil, types.Type{}, types.ErrPropertyNotFound
		}
		prev := get
		switch cur.Kind {
		case types.KindObject:
			prop, ok := cur.Schema.Property(seg)
			if !ok {
				return nil, types.Type{}, fmt.Errorf("%q on %v: %w", seg, cur, types.ErrPropertyNotFound)
			}
			read := prop.Get
			get = func(v types.Value) types.Value {
				obj, ok := prev(v).AsObject()
				if !ok {
					return types.None()
				}
				return read(obj.Data)
			}
			cur = prop.Type
		case types.KindList:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 {
				return nil, types.Type{}, fmt.Errorf("%q on %v: %w", seg, cur, types.ErrPropertyNotFound)
			}
			elem, ok := cur.ElemType()
			if !ok {
				elem = types.AnyType
			}
			get = func(v types.Value) types.Value {
				items, ok := prev(v).AsList()
				if !ok || idx >= len(items) {
					return types.None()
				}
				return items[idx]
			}
			cur = elem
		default:
			return nil, types.Type{}, fmt.Errorf("%q on %v: %w", seg, cur, types.ErrPropertyNotFound)
		}
	}
	return get, cur, nil
}
