// internal/conditions/entity.go
package conditions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/solatis/lumen/internal/types"
)

/*
 * Persistent form of a condition tree.
 *
 * NodeEntity is a discriminated tree: Kind selects which fields apply.
 * Paths store the data model id (absent for element/argument relative
 * paths) and the dotted path. Static right values store their kind next to
 * the JSON value so they can be rebuilt against the left side's type.
 *
 * Load is tolerant of a profile that outlived its extensions:
 *   - an operator that is not registered stays pending
 *   - a path on an unregistered data model loads invalid and resolves later
 *   - a static value that does not decode falls back to the type default
 *     and is logged
 * Structural problems (unknown kind, wrong scope, excessive depth) are
 * errors.
 */

// NodeKind discriminates NodeEntity.
type NodeKind string

const (
	KindGroup          NodeKind = "group"
	KindPredicate      NodeKind = "predicate"
	KindListPredicate  NodeKind = "list-predicate"
	KindEventPredicate NodeKind = "event-predicate"
	KindList           NodeKind = "list"
	KindEvent          NodeKind = "event"
)

// NodeEntity is the persistent form of one node and its subtree.
type NodeEntity struct {
	Kind NodeKind `json:"kind"`

	// group
	BooleanOperator string `json:"boolean_operator,omitempty"`

	// predicate, list-predicate, event-predicate
	PredicateType string             `json:"predicate_type,omitempty"`
	Operator      *types.OperatorRef `json:"operator,omitempty"`
	LeftPath      *PathEntity        `json:"left_path,omitempty"`
	RightPath     *PathEntity        `json:"right_path,omitempty"`
	RightValue    *ValueEntity       `json:"right_value,omitempty"`

	// list, event
	ListOperator    string       `json:"list_operator,omitempty"`
	Count           *CountEntity `json:"count,omitempty"`
	Path            *PathEntity  `json:"path,omitempty"`
	TriggerTracking string       `json:"trigger_tracking,omitempty"`

	Children []NodeEntity `json:"children,omitempty"`
}

// PathEntity is a persisted path. DataModel is nil for relative paths.
type PathEntity struct {
	DataModel *types.DataModelID `json:"data_model,omitempty"`
	Path      string             `json:"path"`
}

func (p *PathEntity) root() types.DataModelID {
	if p == nil || p.DataModel == nil {
		return types.DataModelID{}
	}
	return *p.DataModel
}

// CountEntity is a persisted CountSpec.
type CountEntity struct {
	Mode string `json:"mode"`
	N    int    `json:"n"`
}

// ValueEntity is a persisted static value tagged with its kind.
type ValueEntity struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// EncodeValue converts a scalar or list value for persistence. Handles,
// objects and events have no persistent form and report false.
func EncodeValue(v types.Value) (ValueEntity, bool) {
	switch v.Kind() {
	case types.KindHandle, types.KindObject, types.KindEvent:
		return ValueEntity{}, false
	case types.KindList:
		items, _ := v.AsList()
		for _, item := range items {
			if _, ok := EncodeValue(item); !ok {
				return ValueEntity{}, false
			}
		}
	}
	raw, err := json.Marshal(v.Interface())
	if err != nil {
		return ValueEntity{}, false
	}
	return ValueEntity{Kind: v.Kind().String(), Value: raw}, true
}

// DecodeValue rebuilds a persisted value. Returns ErrInvalidEntity for an
// unknown kind or malformed JSON.
func DecodeValue(e ValueEntity) (types.Value, error) {
	kind, ok := types.ParseKind(e.Kind)
	if !ok {
		return types.None(), fmt.Errorf("value kind %q: %w", e.Kind, types.ErrInvalidEntity)
	}
	if kind == types.KindNone || len(e.Value) == 0 {
		return types.None(), nil
	}

	dec := json.NewDecoder(bytes.NewReader(e.Value))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return types.None(), fmt.Errorf("value %s: %w", e.Kind, errors.Join(types.ErrInvalidEntity, err))
	}
	v := types.FromGo(raw)

	switch kind {
	case types.KindEnum:
		s, ok := v.AsString()
		if !ok {
			return types.None(), fmt.Errorf("enum value %s: %w", e.Value, types.ErrInvalidEntity)
		}
		return types.Enum(s), nil
	case types.KindInt, types.KindFloat, types.KindBool, types.KindString:
		c, err := types.Convert(v, types.Type{Kind: kind})
		if err != nil {
			return types.None(), fmt.Errorf("value %s as %s: %w", e.Value, e.Kind, errors.Join(types.ErrInvalidEntity, err))
		}
		return c, nil
	case types.KindList:
		if v.Kind() != types.KindList {
			return types.None(), fmt.Errorf("list value %s: %w", e.Value, types.ErrInvalidEntity)
		}
		return v, nil
	default:
		return v, nil
	}
}

// LoadGroup rebuilds a root-scope group from its persistent form.
func LoadGroup(env *Env, e NodeEntity) (*Group, error) {
	if e.Kind != KindGroup {
		return nil, fmt.Errorf("root node %q: %w", e.Kind, types.ErrInvalidEntity)
	}
	op, err := ParseBooleanOperator(e.BooleanOperator)
	if err != nil {
		return nil, err
	}
	g := NewGroup(env, op)
	if err := loadChildren(env, g, e.Children, 1); err != nil {
		g.Dispose()
		return nil, err
	}
	return g, nil
}

// LoadEvent rebuilds a root-scope event node.
func LoadEvent(env *Env, e NodeEntity) (*Event, error) {
	if e.Kind != KindEvent {
		return nil, fmt.Errorf("event node %q: %w", e.Kind, types.ErrInvalidEntity)
	}
	ev := NewEvent(env)
	if err := loadEvent(env, ev, e, 1); err != nil {
		ev.Dispose()
		return nil, err
	}
	return ev, nil
}

func loadChildren(env *Env, g *Group, children []NodeEntity, depth int) error {
	if depth > types.MaxTreeDepth {
		return types.ErrTreeTooDeep
	}
	for i, c := range children {
		if err := loadChild(env, g, c, depth); err != nil {
			return fmt.Errorf("child %d: %w", i, err)
		}
	}
	return nil
}

func loadChild(env *Env, g *Group, e NodeEntity, depth int) error {
	switch e.Kind {
	case KindGroup:
		op, err := ParseBooleanOperator(e.BooleanOperator)
		if err != nil {
			return err
		}
		return loadChildren(env, g.AddGroup(op), e.Children, depth+1)

	case KindPredicate, KindListPredicate, KindEventPredicate:
		if want := predicateEntityKind(g.scope.kind()); e.Kind != want {
			return fmt.Errorf("%s under %s scope: %w", e.Kind, g.scope.kind(), types.ErrWrongScope)
		}
		kind, err := ParsePredicateKind(e.PredicateType)
		if err != nil {
			return err
		}
		return loadPredicate(env, g.AddPredicate(kind), e)

	case KindList:
		op, err := ParseListOperator(e.ListOperator)
		if err != nil {
			return err
		}
		l := g.AddList(op)
		if e.Count != nil {
			mode, err := ParseCountMode(e.Count.Mode)
			if err != nil {
				return err
			}
			l.count = CountSpec{Mode: mode, N: e.Count.N}
		}
		if e.Path != nil {
			if err := l.UpdatePath(e.Path.root(), e.Path.Path); err != nil {
				return err
			}
		}
		child, err := singleGroup(e)
		if err != nil {
			return err
		}
		childOp, err := ParseBooleanOperator(child.BooleanOperator)
		if err != nil {
			return err
		}
		l.child.op = childOp
		return loadChildren(env, l.child, child.Children, depth+1)

	case KindEvent:
		return loadEvent(env, g.AddEvent(), e, depth)

	default:
		return fmt.Errorf("node kind %q: %w", e.Kind, types.ErrInvalidEntity)
	}
}

func loadEvent(env *Env, ev *Event, e NodeEntity, depth int) error {
	tracking, err := ParseTriggerTracking(e.TriggerTracking)
	if err != nil {
		return err
	}
	ev.tracking = tracking
	if e.Path != nil {
		if err := ev.UpdatePath(e.Path.root(), e.Path.Path); err != nil {
			return err
		}
	}
	child, err := singleGroup(e)
	if err != nil {
		return err
	}
	op, err := ParseBooleanOperator(child.BooleanOperator)
	if err != nil {
		return err
	}
	ev.child.op = op
	return loadChildren(env, ev.child, child.Children, depth+1)
}

// singleGroup returns the one child group of a list or event entity.
// A missing child is an empty group.
func singleGroup(e NodeEntity) (NodeEntity, error) {
	switch len(e.Children) {
	case 0:
		return NodeEntity{Kind: KindGroup}, nil
	case 1:
		if e.Children[0].Kind != KindGroup {
			return NodeEntity{}, fmt.Errorf("%s child %q: %w", e.Kind, e.Children[0].Kind, types.ErrInvalidEntity)
		}
		return e.Children[0], nil
	default:
		return NodeEntity{}, fmt.Errorf("%s has %d children: %w", e.Kind, len(e.Children), types.ErrInvalidEntity)
	}
}

func loadPredicate(env *Env, p *Predicate, e NodeEntity) error {
	log := env.logger()

	if e.LeftPath != nil {
		if err := p.UpdateLeftSide(e.LeftPath.root(), e.LeftPath.Path); err != nil {
			return err
		}
	}

	if e.Operator != nil && !e.Operator.IsZero() {
		if err := p.setOperatorRef(*e.Operator); err != nil {
			log.Warn("operator no longer accepts left side, dropping it",
				"operator", e.Operator.String(), "error", err)
		}
	}

	switch p.kind {
	case Static:
		if e.RightValue == nil {
			return nil
		}
		v, err := DecodeValue(*e.RightValue)
		if err != nil {
			log.Warn("static value does not decode, using default",
				"kind", e.RightValue.Kind, "error", err)
			v = types.Default(p.staticTarget())
		}
		return p.UpdateRightSideStatic(v)
	case Dynamic:
		if e.RightPath == nil {
			return nil
		}
		if err := p.UpdateRightSideDynamic(e.RightPath.root(), e.RightPath.Path); err != nil {
			if errors.Is(err, types.ErrIncompatibleRightSide) {
				log.Warn("right side no longer compatible, dropping it",
					"path", e.RightPath.Path, "error", err)
				return nil
			}
			return err
		}
	}
	return nil
}

// staticTarget is the type static values are coerced to, zero if unknown.
func (p *Predicate) staticTarget() types.Type {
	lt := p.leftType()
	if lt.IsZero() || p.operator == nil {
		return lt
	}
	return p.operator.RightSideType(lt)
}
