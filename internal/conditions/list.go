// internal/conditions/list.go
package conditions

import (
	"fmt"

	"github.com/solatis/lumen/internal/datamodel"
	"github.com/solatis/lumen/internal/types"
)

/*
 * List quantifier.
 *
 * A List applies its child Group to every element of a sequence:
 *   - Any: at least one element matches
 *   - All: every element matches (vacuously true when empty)
 *   - None: at least one element does not match. This is "not all", kept
 *     for compatibility with existing profiles; it is false when empty.
 *   - Count: the number of matching elements compared against CountSpec
 *
 * Predicates under the child group resolve their left side against the
 * element type. When the list path is re-resolved the whole subtree is
 * re-scoped.
 */

// ListOperator selects the quantifier.
type ListOperator int

const (
	Any ListOperator = iota
	All
	None
	Count
)

var listOperatorNames = [...]string{Any: "any", All: "all", None: "none", Count: "count"}

// String implements fmt.Stringer.
func (o ListOperator) String() string {
	if o < 0 || int(o) >= len(listOperatorNames) {
		return "unknown"
	}
	return listOperatorNames[o]
}

// ParseListOperator parses a persisted quantifier. Empty means Any.
func ParseListOperator(s string) (ListOperator, error) {
	if s == "" {
		return Any, nil
	}
	for i, name := range listOperatorNames {
		if name == s {
			return ListOperator(i), nil
		}
	}
	return Any, fmt.Errorf("list operator %q: %w", s, types.ErrInvalidEntity)
}

// CountMode selects how Count compares the number of matches.
type CountMode int

const (
	Exactly CountMode = iota
	AtLeast
	AtMost
)

var countModeNames = [...]string{Exactly: "exactly", AtLeast: "at-least", AtMost: "at-most"}

// String implements fmt.Stringer.
func (m CountMode) String() string {
	if m < 0 || int(m) >= len(countModeNames) {
		return "unknown"
	}
	return countModeNames[m]
}

// ParseCountMode parses a persisted count mode. Empty means Exactly.
func ParseCountMode(s string) (CountMode, error) {
	if s == "" {
		return Exactly, nil
	}
	for i, name := range countModeNames {
		if name == s {
			return CountMode(i), nil
		}
	}
	return Exactly, fmt.Errorf("count mode %q: %w", s, types.ErrInvalidEntity)
}

// CountSpec configures the Count quantifier.
type CountSpec struct {
	Mode CountMode
	N    int
}

// Matches reports whether matched satisfies the spec.
func (c CountSpec) Matches(matched int) bool {
	switch c.Mode {
	case AtLeast:
		return matched >= c.N
	case AtMost:
		return matched <= c.N
	default:
		return matched == c.N
	}
}

// List evaluates a child group across the elements of a sequence.
type List struct {
	nodeBase
	op    ListOperator
	count CountSpec
	path  *datamodel.Path
	child *Group
}

func newList(env *Env, parent Node, sc scope, op ListOperator) *List {
	l := &List{nodeBase: nodeBase{env: env, parent: parent, scope: sc}, op: op}
	l.child = newScopedGroup(env, l, scope{list: l})
	return l
}

// ListOperator returns the quantifier.
func (l *List) ListOperator() ListOperator { return l.op }

// SetListOperator changes the quantifier.
func (l *List) SetListOperator(op ListOperator) { l.op = op }

// CountSpec returns the Count configuration.
func (l *List) CountSpec() CountSpec { return l.count }

// SetCount switches to the Count quantifier with spec.
func (l *List) SetCount(spec CountSpec) {
	l.op = Count
	l.count = spec
}

// Path returns the list path, nil if unset.
func (l *List) Path() *datamodel.Path { return l.path }

// Group returns the child group every element is evaluated with.
func (l *List) Group() *Group { return l.child }

// Children implements Node.
func (l *List) Children() []Node { return []Node{l.child} }

// ElementType returns the declared element type, zero while the path is
// invalid and Any for untyped lists.
func (l *List) ElementType() types.Type {
	if l.path == nil || !l.path.Valid() {
		return types.Type{}
	}
	t := l.path.Type()
	if elem, ok := t.ElemType(); ok {
		return elem
	}
	if t.Kind == types.KindList || t.Kind == types.KindAny {
		return types.AnyType
	}
	return types.Type{}
}

// UpdatePath points the list at a sequence. A zero root resolves path
// relative to the enclosing list element or event arguments.
func (l *List) UpdatePath(root types.DataModelID, path string) error {
	if l.disposed {
		return types.ErrDisposed
	}
	if root.IsZero() && l.scope.kind() == ScopeRoot {
		return fmt.Errorf("list path %q in root scope: %w", path, types.ErrWrongScope)
	}
	if l.path != nil {
		l.path.Dispose()
	}
	l.path = l.newPath(root, path)
	l.path.Watch(l.child.rescope, l.child.rescope)
	l.child.rescope()
	return nil
}

// Evaluate implements Node.
func (l *List) Evaluate() (bool, error) {
	if l.disposed {
		return false, types.ErrDisposed
	}
	if l.path == nil || l.path.IsRelative() {
		return false, nil
	}
	return l.evaluateList(l.path.Value())
}

// EvaluateObject implements Node.
func (l *List) EvaluateObject(target types.Value) (bool, error) {
	if l.disposed {
		return false, types.ErrDisposed
	}
	if l.path == nil {
		return false, nil
	}
	return l.evaluateList(readPath(l.path, target))
}

func (l *List) evaluateList(v types.Value) (bool, error) {
	items, ok := v.AsList()
	if !ok || !l.path.Valid() {
		return false, nil
	}

	switch l.op {
	case Any:
		for _, item := range items {
			r, err := l.child.EvaluateObject(item)
			if err != nil || r {
				return r, err
			}
		}
		return false, nil
	case All:
		for _, item := range items {
			r, err := l.child.EvaluateObject(item)
			if err != nil || !r {
				return false, err
			}
		}
		return true, nil
	case None:
		for _, item := range items {
			r, err := l.child.EvaluateObject(item)
			if err != nil {
				return false, err
			}
			if !r {
				return true, nil
			}
		}
		return false, nil
	case Count:
		matched := 0
		for _, item := range items {
			r, err := l.child.EvaluateObject(item)
			if err != nil {
				return false, err
			}
			if r {
				matched++
			}
		}
		return l.count.Matches(matched), nil
	default:
		return false, nil
	}
}

func (l *List) rescope() {
	if l.path != nil && l.path.IsRelative() {
		path := l.path.String()
		l.path.Dispose()
		l.path = l.newPath(types.DataModelID{}, path)
		l.path.Watch(l.child.rescope, l.child.rescope)
	}
	l.child.rescope()
}

// Save implements Node.
func (l *List) Save() NodeEntity {
	e := NodeEntity{
		Kind:         KindList,
		ListOperator: l.op.String(),
		Path:         pathEntity(l.path),
		Children:     []NodeEntity{l.child.Save()},
	}
	if l.op == Count {
		e.Count = &CountEntity{Mode: l.count.Mode.String(), N: l.count.N}
	}
	return e
}

// Dispose implements Node.
func (l *List) Dispose() {
	if l.disposed {
		return
	}
	l.child.Dispose()
	if l.path != nil {
		l.path.Dispose()
	}
	l.disposed = true
}
