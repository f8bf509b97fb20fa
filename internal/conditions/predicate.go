// internal/conditions/predicate.go
package conditions

import (
	"fmt"

	"github.com/solatis/lumen/internal/datamodel"
	"github.com/solatis/lumen/internal/notify"
	"github.com/solatis/lumen/internal/operators"
	"github.com/solatis/lumen/internal/types"
)

/*
 * Leaf comparison.
 *
 * A Predicate compares its left path against a static value or a right path
 * through an operator. The same type serves three scopes: root (paths on data
 * models), list (left side relative to the current element) and event (left
 * side relative to the event arguments).
 *
 * Consistency is kept at assignment time, never during evaluation:
 *   - a static value is coerced once to the operator's right side type and
 *     falls back to the type default when that fails
 *   - a dynamic right side whose type differs from the left gets a one-time
 *     conversion step
 *   - a new left type clears an operator that no longer accepts it
 *   - a new operator clears a right side it cannot compare against
 *
 * Operators are held by reference. When the owning extension unregisters,
 * the operator is dropped but its reference is kept so the predicate
 * resolves it again once the extension comes back.
 *
 * Evaluate returns false when the operator is missing, the left path is
 * invalid, or a non-nullable left side meets a None static value.
 */

// PredicateKind selects the right operand kind.
type PredicateKind int

const (
	// Static compares against a literal value.
	Static PredicateKind = iota
	// Dynamic compares against a second path.
	Dynamic
)

// String implements fmt.Stringer.
func (k PredicateKind) String() string {
	if k == Dynamic {
		return "dynamic"
	}
	return "static"
}

// ParsePredicateKind parses a persisted kind. Empty means Static.
func ParsePredicateKind(s string) (PredicateKind, error) {
	switch s {
	case "", "static":
		return Static, nil
	case "dynamic":
		return Dynamic, nil
	default:
		return Static, fmt.Errorf("predicate type %q: %w", s, types.ErrInvalidEntity)
	}
}

// Predicate is a leaf comparing a left path against a right operand.
type Predicate struct {
	nodeBase
	kind PredicateKind

	left  *datamodel.Path
	right *datamodel.Path
	// static holds the coerced right value; raw is the value as assigned so
	// it survives a left side that is not resolvable yet.
	static types.Value
	raw    types.Value

	operator    *operators.Operator
	operatorRef types.OperatorRef
	cancelOp    func()

	// convert casts dynamic right values to the left side type.
	convert func(types.Value) types.Value
}

func newPredicate(env *Env, parent Node, sc scope, kind PredicateKind) *Predicate {
	return &Predicate{
		nodeBase: nodeBase{env: env, parent: parent, scope: sc},
		kind:     kind,
	}
}

// Kind returns the right operand kind.
func (p *Predicate) Kind() PredicateKind { return p.kind }

// LeftPath returns the left path, nil if unset.
func (p *Predicate) LeftPath() *datamodel.Path { return p.left }

// RightPath returns the dynamic right path, nil if unset.
func (p *Predicate) RightPath() *datamodel.Path { return p.right }

// StaticValue returns the coerced static right value.
func (p *Predicate) StaticValue() types.Value { return p.static }

// Operator returns the resolved operator, nil if unset or unregistered.
func (p *Predicate) Operator() *operators.Operator { return p.operator }

// OperatorRef returns the operator reference, including one that is
// waiting for its extension to register.
func (p *Predicate) OperatorRef() types.OperatorRef { return p.operatorRef }

// List returns the owning List of a list predicate.
func (p *Predicate) List() *List { return p.scope.list }

// Event returns the owning Event of an event predicate.
func (p *Predicate) Event() *Event { return p.scope.event }

// Children implements Node.
func (p *Predicate) Children() []Node { return nil }

// leftType is the resolved left type, zero when invalid.
func (p *Predicate) leftType() types.Type {
	if p.left == nil {
		return types.Type{}
	}
	return p.left.Type()
}

// settled reports whether t is concrete enough to check operators and right
// sides against. Unresolved and Any left sides keep whatever was assigned.
func settled(t types.Type) bool {
	return !t.IsZero() && t.Kind != types.KindAny
}

// UpdateLeftSide points the left side at path. Root predicates need a data
// model; list and event predicates take a zero id and resolve path against
// the current element or event arguments.
func (p *Predicate) UpdateLeftSide(root types.DataModelID, path string) error {
	if p.disposed {
		return types.ErrDisposed
	}
	if (p.scope.kind() == ScopeRoot) == root.IsZero() {
		return fmt.Errorf("left side %q in %s scope: %w", path, p.scope.kind(), types.ErrWrongScope)
	}
	if p.left != nil {
		p.left.Dispose()
	}
	p.left = p.newPath(root, path)
	p.left.Watch(p.leftChanged, nil)
	p.leftChanged()
	return nil
}

// leftChanged reconciles operator and right side with a new left type.
func (p *Predicate) leftChanged() {
	lt := p.leftType()
	if p.operator != nil && settled(lt) && !p.operator.SupportsLeft(lt) {
		p.env.logger().Debug("clearing operator incompatible with left side",
			"operator", p.operatorRef.String(), "left_type", lt.String())
		p.setOperator(nil, types.OperatorRef{})
	}
	p.reconcileRight()
}

// UpdateOperator assigns op, or clears the operator when op is nil.
// Returns ErrIncompatibleOperator if op does not accept the left side.
func (p *Predicate) UpdateOperator(op *operators.Operator) error {
	if p.disposed {
		return types.ErrDisposed
	}
	if op == nil {
		p.setOperator(nil, types.OperatorRef{})
		p.reconcileRight()
		return nil
	}
	if lt := p.leftType(); settled(lt) && !op.SupportsLeft(lt) {
		return fmt.Errorf("operator %s on %v: %w", op.Ref(), lt, types.ErrIncompatibleOperator)
	}
	p.setOperator(op, op.Ref())
	p.reconcileRight()
	return nil
}

// setOperatorRef assigns by reference. An unknown reference is kept pending
// until the operator registers.
func (p *Predicate) setOperatorRef(ref types.OperatorRef) error {
	op, ok := p.env.Operators.Lookup(ref)
	if !ok {
		p.setOperator(nil, ref)
		return nil
	}
	return p.UpdateOperator(op)
}

func (p *Predicate) setOperator(op *operators.Operator, ref types.OperatorRef) {
	if p.cancelOp != nil && ref != p.operatorRef {
		p.cancelOp()
		p.cancelOp = nil
	}
	p.operator = op
	p.operatorRef = ref
	if p.cancelOp == nil && !ref.IsZero() && p.env.Operators != nil {
		p.cancelOp = p.env.Operators.Subscribe(ref, p.operatorChanged)
	}
}

// operatorChanged follows the operator through unregister and re-register.
func (p *Predicate) operatorChanged(c notify.Change[types.OperatorRef]) {
	if p.disposed || c.Key != p.operatorRef {
		return
	}
	switch c.Op {
	case notify.Removed:
		if p.operator != nil {
			if cur, ok := p.env.Operators.Lookup(c.Key); !ok || cur != p.operator {
				p.operator = nil
			}
		}
	case notify.Added:
		if p.operator != nil {
			return
		}
		op, ok := p.env.Operators.Lookup(c.Key)
		if !ok {
			return
		}
		if lt := p.leftType(); settled(lt) && !op.SupportsLeft(lt) {
			return
		}
		p.operator = op
		p.reconcileRight()
	}
}

// UpdateRightSideStatic switches to a static right side holding v.
// The value is coerced to the operator's right side type; a value that
// cannot be converted is replaced by that type's default.
func (p *Predicate) UpdateRightSideStatic(v types.Value) error {
	if p.disposed {
		return types.ErrDisposed
	}
	if p.kind != Static {
		p.ChangeType(Static)
	}
	p.raw = v
	p.static = types.None()
	p.coerceStatic()
	return nil
}

// UpdateRightSideDynamic switches to a dynamic right side reading path.
// A zero root resolves path relative to the current element or event
// arguments. Returns ErrIncompatibleRightSide if the operator cannot compare
// against the path's type.
func (p *Predicate) UpdateRightSideDynamic(root types.DataModelID, path string) error {
	if p.disposed {
		return types.ErrDisposed
	}
	if root.IsZero() && p.scope.kind() == ScopeRoot {
		return fmt.Errorf("right side %q in root scope: %w", path, types.ErrWrongScope)
	}
	next := p.newPath(root, path)
	lt := p.leftType()
	if p.operator != nil && next.Valid() && settled(lt) && !p.operator.SupportsRight(next.Type(), lt) {
		next.Dispose()
		return fmt.Errorf("right side %v for %s: %w", next.Type(), p.operatorRef, types.ErrIncompatibleRightSide)
	}

	if p.kind != Dynamic {
		p.ChangeType(Dynamic)
	}
	if p.right != nil {
		p.right.Dispose()
	}
	p.right = next
	p.right.Watch(p.reconcileRight, nil)
	p.reconcileRight()
	return nil
}

// ChangeType switches between static and dynamic right sides, clearing the
// previous right operand.
func (p *Predicate) ChangeType(kind PredicateKind) {
	if p.kind == kind {
		return
	}
	p.kind = kind
	p.clearRight()
}

func (p *Predicate) clearRight() {
	if p.right != nil {
		p.right.Dispose()
		p.right = nil
	}
	p.convert = nil
	p.static = types.None()
	p.raw = types.None()
}

// reconcileRight re-validates the right side against left type and operator.
func (p *Predicate) reconcileRight() {
	if p.disposed {
		return
	}
	if p.operator != nil && !p.operator.SupportsRightSide {
		if p.right != nil || !p.raw.IsNone() {
			p.clearRight()
		}
		return
	}

	switch p.kind {
	case Static:
		p.coerceStatic()
	case Dynamic:
		p.convert = nil
		lt := p.leftType()
		if p.right == nil || !p.right.Valid() || !settled(lt) {
			return
		}
		rt := p.right.Type()
		if p.operator != nil && !p.operator.SupportsRight(rt, lt) {
			p.env.logger().Debug("clearing right side incompatible with operator",
				"operator", p.operatorRef.String(), "right_type", rt.String())
			p.right.Dispose()
			p.right = nil
			return
		}
		want := lt
		if p.operator != nil {
			want = p.operator.RightSideType(lt)
		}
		if !rt.Equal(want) && want.Kind != types.KindAny {
			p.convert = func(v types.Value) types.Value {
				c, err := types.Convert(v, want)
				if err != nil {
					return types.None()
				}
				return c
			}
		}
	}
}

// coerceStatic converts raw into the static slot.
func (p *Predicate) coerceStatic() {
	lt := p.leftType()
	if lt.IsZero() {
		// Nothing to coerce against yet; keep the value as given.
		p.static = p.raw
		return
	}
	if lt.Kind == types.KindAny {
		if p.static.IsNone() {
			p.static = p.raw
		}
		return
	}
	want := lt
	if p.operator != nil {
		want = p.operator.RightSideType(lt)
	}
	c, err := types.Convert(p.raw, want)
	if err != nil {
		p.env.logger().Warn("static value does not convert, using default",
			"value", p.raw.String(), "type", want.String(), "error", err)
		c = types.Default(want)
	}
	p.static = c
}

// Evaluate implements Node. List and event predicates have no target here
// and evaluate false.
func (p *Predicate) Evaluate() (bool, error) {
	if p.disposed {
		return false, types.ErrDisposed
	}
	if p.scope.kind() != ScopeRoot {
		return false, nil
	}
	return p.evaluate(types.None()), nil
}

// EvaluateObject implements Node. Root predicates ignore target.
func (p *Predicate) EvaluateObject(target types.Value) (bool, error) {
	if p.disposed {
		return false, types.ErrDisposed
	}
	return p.evaluate(target), nil
}

func (p *Predicate) evaluate(target types.Value) bool {
	op := p.operator
	if op == nil || p.left == nil || !p.left.Valid() {
		return false
	}
	left := readPath(p.left, target)
	if !op.SupportsRightSide {
		return op.Evaluate(left, types.None())
	}

	switch p.kind {
	case Static:
		if !p.left.Type().Nullable() && p.static.IsNone() {
			return false
		}
		return op.Evaluate(left, p.static)
	case Dynamic:
		if p.right == nil || !p.right.Valid() {
			return false
		}
		right := readPath(p.right, target)
		if p.convert != nil {
			right = p.convert(right)
		}
		return op.Evaluate(left, right)
	default:
		return false
	}
}

func (p *Predicate) rescope() {
	if p.left != nil && p.left.IsRelative() {
		path := p.left.String()
		p.left.Dispose()
		p.left = p.newPath(types.DataModelID{}, path)
		p.left.Watch(p.leftChanged, nil)
		p.leftChanged()
	}
	if p.right != nil && p.right.IsRelative() {
		path := p.right.String()
		p.right.Dispose()
		p.right = p.newPath(types.DataModelID{}, path)
		p.right.Watch(p.reconcileRight, nil)
		p.reconcileRight()
	}
}

// Save implements Node.
func (p *Predicate) Save() NodeEntity {
	e := NodeEntity{
		Kind:          predicateEntityKind(p.scope.kind()),
		PredicateType: p.kind.String(),
		LeftPath:      pathEntity(p.left),
	}
	if !p.operatorRef.IsZero() {
		ref := p.operatorRef
		e.Operator = &ref
	}
	switch p.kind {
	case Static:
		v := p.static
		if !settled(p.leftType()) {
			v = p.raw
		}
		if !v.IsNone() {
			if ve, ok := EncodeValue(v); ok {
				e.RightValue = &ve
			}
		}
	case Dynamic:
		e.RightPath = pathEntity(p.right)
	}
	return e
}

// Dispose implements Node.
func (p *Predicate) Dispose() {
	if p.disposed {
		return
	}
	p.disposed = true
	if p.cancelOp != nil {
		p.cancelOp()
		p.cancelOp = nil
	}
	if p.left != nil {
		p.left.Dispose()
	}
	if p.right != nil {
		p.right.Dispose()
	}
	p.operator = nil
	p.convert = nil
}

func predicateEntityKind(s Scope) NodeKind {
	switch s {
	case ScopeList:
		return KindListPredicate
	case ScopeEvent:
		return KindEventPredicate
	default:
		return KindPredicate
	}
}
