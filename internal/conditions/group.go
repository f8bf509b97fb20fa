// internal/conditions/group.go
package conditions

import (
	"fmt"
	"strings"

	"github.com/solatis/lumen/internal/types"
)

/*
 * Boolean combinator.
 *
 * Evaluation:
 *   - no children: true
 *   - one child: the child's result, operator ignored
 *   - And: every child true
 *   - Or: any child true
 *   - AndNot: every child false (each child negated, not the aggregate)
 *   - OrNot: any child false
 *
 * Children evaluate left to right and short-circuit. Node evaluation has no
 * side effects apart from Event nodes consuming their trigger, so an Event
 * placed after a short-circuiting sibling keeps its trigger for later.
 */

// BooleanOperator selects how a Group combines its children.
type BooleanOperator int

const (
	And BooleanOperator = iota
	Or
	AndNot
	OrNot
)

var booleanOperatorNames = [...]string{And: "and", Or: "or", AndNot: "and-not", OrNot: "or-not"}

// String implements fmt.Stringer.
func (o BooleanOperator) String() string {
	if o < 0 || int(o) >= len(booleanOperatorNames) {
		return "unknown"
	}
	return booleanOperatorNames[o]
}

// ParseBooleanOperator parses a persisted operator name. Empty means And.
func ParseBooleanOperator(s string) (BooleanOperator, error) {
	if s == "" {
		return And, nil
	}
	for i, name := range booleanOperatorNames {
		if strings.EqualFold(name, s) {
			return BooleanOperator(i), nil
		}
	}
	return And, fmt.Errorf("boolean operator %q: %w", s, types.ErrInvalidEntity)
}

// Group combines child nodes with a boolean operator.
type Group struct {
	nodeBase
	op       BooleanOperator
	children []Node
}

// NewGroup creates a root-scope group.
func NewGroup(env *Env, op BooleanOperator) *Group {
	return &Group{nodeBase: nodeBase{env: env}, op: op}
}

func newScopedGroup(env *Env, parent Node, sc scope) *Group {
	return &Group{nodeBase: nodeBase{env: env, parent: parent, scope: sc}}
}

// BooleanOperator returns the combinator.
func (g *Group) BooleanOperator() BooleanOperator { return g.op }

// SetBooleanOperator changes the combinator.
func (g *Group) SetBooleanOperator(op BooleanOperator) { g.op = op }

// Children implements Node. The slice is a copy.
func (g *Group) Children() []Node {
	out := make([]Node, len(g.children))
	copy(out, g.children)
	return out
}

// AddGroup appends a nested group in this group's scope.
func (g *Group) AddGroup(op BooleanOperator) *Group {
	child := newScopedGroup(g.env, g, g.scope)
	child.op = op
	g.children = append(g.children, child)
	return child
}

// AddPredicate appends a predicate in this group's scope: a plain predicate
// at the root, a list predicate under a List, an event predicate under an
// Event.
func (g *Group) AddPredicate(kind PredicateKind) *Predicate {
	child := newPredicate(g.env, g, g.scope, kind)
	g.children = append(g.children, child)
	return child
}

// AddList appends a list quantifier.
func (g *Group) AddList(op ListOperator) *List {
	child := newList(g.env, g, g.scope, op)
	g.children = append(g.children, child)
	return child
}

// AddEvent appends an event node.
func (g *Group) AddEvent() *Event {
	child := newEvent(g.env, g, g.scope)
	g.children = append(g.children, child)
	return child
}

// RemoveChild detaches and disposes child. Returns false if child is not a
// direct child of g.
func (g *Group) RemoveChild(child Node) bool {
	for i, c := range g.children {
		if c == child {
			g.children = append(g.children[:i:i], g.children[i+1:]...)
			child.Dispose()
			return true
		}
	}
	return false
}

// MoveChild moves child to index, clamped to the valid range.
func (g *Group) MoveChild(child Node, index int) bool {
	from := -1
	for i, c := range g.children {
		if c == child {
			from = i
			break
		}
	}
	if from < 0 {
		return false
	}
	g.children = append(g.children[:from:from], g.children[from+1:]...)
	index = max(0, min(index, len(g.children)))
	g.children = append(g.children[:index], append([]Node{child}, g.children[index:]...)...)
	return true
}

// Evaluate implements Node.
func (g *Group) Evaluate() (bool, error) {
	if g.disposed {
		return false, types.ErrDisposed
	}
	return g.combine(func(n Node) (bool, error) { return n.Evaluate() })
}

// EvaluateObject implements Node.
func (g *Group) EvaluateObject(target types.Value) (bool, error) {
	if g.disposed {
		return false, types.ErrDisposed
	}
	return g.combine(func(n Node) (bool, error) { return n.EvaluateObject(target) })
}

func (g *Group) combine(eval func(Node) (bool, error)) (bool, error) {
	switch len(g.children) {
	case 0:
		return true, nil
	case 1:
		return eval(g.children[0])
	}

	switch g.op {
	case And, AndNot:
		// And: stop at the first false; AndNot: stop at the first true
		want := g.op == And
		for _, c := range g.children {
			r, err := eval(c)
			if err != nil {
				return false, err
			}
			if r != want {
				return false, nil
			}
		}
		return true, nil
	case Or, OrNot:
		want := g.op == Or
		for _, c := range g.children {
			r, err := eval(c)
			if err != nil {
				return false, err
			}
			if r == want {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, nil
	}
}

// Save implements Node.
func (g *Group) Save() NodeEntity {
	e := NodeEntity{Kind: KindGroup, BooleanOperator: g.op.String()}
	for _, c := range g.children {
		e.Children = append(e.Children, c.Save())
	}
	return e
}

// Dispose implements Node.
func (g *Group) Dispose() {
	if g.disposed {
		return
	}
	for _, c := range g.children {
		c.Dispose()
	}
	g.disposed = true
}

func (g *Group) rescope() {
	for _, c := range g.children {
		c.rescope()
	}
}
