// Package operators holds the comparison operators predicates use, keyed by
// owning extension and type name.
package operators

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/solatis/lumen/internal/notify"
	"github.com/solatis/lumen/internal/types"
)

// CompareFunc compares a left value against a right value. Right is None for
// operators without a right side.
type CompareFunc func(left, right types.Value) bool

// Operator is a type-checked binary comparison.
// Registered operators are immutable and shared by every predicate using them.
type Operator struct {
	// Type is unique within the owning extension.
	Type string
	// Description is the human-readable label shown in editors.
	Description string
	// LeftTypes lists the declared compatible left side types.
	LeftTypes []types.Type
	// RightType fixes the right side type. Zero means "same as the left side".
	RightType types.Type
	// RightTypeFor derives the right side type from the left side type.
	// Takes precedence over RightType.
	RightTypeFor func(left types.Type) types.Type
	// SupportsRightSide is false for unary operators (is-null, is-true).
	SupportsRightSide bool
	Compare           CompareFunc

	extensionID string
	seq         uint64
}

// ExtensionID returns the owning extension, set on registration.
func (o *Operator) ExtensionID() string { return o.extensionID }

// Ref returns the persistent reference to this operator.
func (o *Operator) Ref() types.OperatorRef {
	return types.OperatorRef{ExtensionID: o.extensionID, Type: o.Type}
}

// SupportsLeft reports whether t is castable to a declared left type.
func (o *Operator) SupportsLeft(t types.Type) bool {
	for _, lt := range o.LeftTypes {
		if t.CastableTo(lt) {
			return true
		}
	}
	return false
}

// ExactLeft reports whether t is one of the declared left types.
func (o *Operator) ExactLeft(t types.Type) bool {
	for _, lt := range o.LeftTypes {
		if t.Equal(lt) {
			return true
		}
	}
	return false
}

// RightSideType returns the type the right side is coerced to for a left side of type left.
func (o *Operator) RightSideType(left types.Type) types.Type {
	switch {
	case o.RightTypeFor != nil:
		return o.RightTypeFor(left)
	case !o.RightType.IsZero():
		return o.RightType
	default:
		return left
	}
}

// SupportsRight reports whether a right side of type t can be compared
// against a left side of type left.
func (o *Operator) SupportsRight(t, left types.Type) bool {
	if !o.SupportsRightSide {
		return false
	}
	want := o.RightSideType(left)
	return t.CastableTo(want) || (t.Numeric() && want.Numeric())
}

// Evaluate runs the comparison.
func (o *Operator) Evaluate(left, right types.Value) bool {
	return o.Compare(left, right)
}

type opKey struct {
	extensionID string
	typ         string
}

type opSnapshot struct {
	version uint64
	ops     map[opKey]*Operator
	order   []*Operator
}

// Registry tracks registered operators. Reads are lock-free against an
// atomically swapped snapshot; writers serialize on a mutex and queue change
// notifications for Dispatch.
type Registry struct {
	mu     sync.Mutex
	snap   atomic.Pointer[opSnapshot]
	hub    *notify.Hub[types.OperatorRef]
	seq    uint64
	logger *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger discards output.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Registry{
		hub:    notify.New[types.OperatorRef](),
		logger: logger,
	}
	r.snap.Store(&opSnapshot{ops: map[opKey]*Operator{}})
	return r
}

// Register adds op under extensionID and returns the registered copy.
// Returns ErrInvalidOperator for definitions without a type, left types or
// compare func, and ErrOperatorExists for duplicates.
func (r *Registry) Register(extensionID string, op Operator) (*Operator, error) {
	if extensionID == "" || op.Type == "" || op.Compare == nil || len(op.LeftTypes) == 0 {
		return nil, fmt.Errorf("register operator %s/%s: %w", extensionID, op.Type, types.ErrInvalidOperator)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	key := opKey{extensionID, op.Type}
	if _, ok := cur.ops[key]; ok {
		return nil, fmt.Errorf("register operator %s/%s: %w", extensionID, op.Type, types.ErrOperatorExists)
	}

	r.seq++
	registered := op
	registered.extensionID = extensionID
	registered.seq = r.seq
	registered.LeftTypes = append([]types.Type(nil), op.LeftTypes...)

	next := cur.clone()
	next.ops[key] = &registered
	next.order = append(next.order, &registered)
	r.publish(next, registered.Ref(), notify.Added)
	return &registered, nil
}

// Unregister removes the operator identified by ref.
func (r *Registry) Unregister(ref types.OperatorRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	key := opKey{ref.ExtensionID, ref.Type}
	op, ok := cur.ops[key]
	if !ok {
		return fmt.Errorf("unregister operator %s: %w", ref, types.ErrInvalidOperator)
	}

	next := cur.clone()
	delete(next.ops, key)
	for i, o := range next.order {
		if o == op {
			next.order = append(next.order[:i:i], next.order[i+1:]...)
			break
		}
	}
	r.publish(next, ref, notify.Removed)
	return nil
}

// UnregisterExtension removes every operator owned by extensionID.
func (r *Registry) UnregisterExtension(extensionID string) int {
	var refs []types.OperatorRef
	for _, op := range r.snap.Load().order {
		if op.extensionID == extensionID {
			refs = append(refs, op.Ref())
		}
	}
	n := 0
	for _, ref := range refs {
		if r.Unregister(ref) == nil {
			n++
		}
	}
	return n
}

// publish swaps the snapshot and queues the change. Caller holds r.mu.
func (r *Registry) publish(next *opSnapshot, ref types.OperatorRef, op notify.Op) {
	next.version++
	r.snap.Store(next)
	r.hub.Publish(notify.Change[types.OperatorRef]{Key: ref, Op: op, Version: next.version})
	r.logger.Debug("operator registry changed", "operator", ref.String(), "op", op.String())
}

// Find looks up an operator.
func (r *Registry) Find(extensionID, typ string) (*Operator, bool) {
	op, ok := r.snap.Load().ops[opKey{extensionID, typ}]
	return op, ok
}

// Lookup looks up an operator by reference.
func (r *Registry) Lookup(ref types.OperatorRef) (*Operator, bool) {
	return r.Find(ref.ExtensionID, ref.Type)
}

// All returns every operator in registration order.
func (r *Registry) All() []*Operator {
	order := r.snap.Load().order
	out := make([]*Operator, len(order))
	copy(out, order)
	return out
}

// Compatible lists operators accepting a left side of type t, in
// registration order. Operators sharing a description are listed once:
// an exact declared-type match beats a castable one, and the first
// registered wins ties.
func (r *Registry) Compatible(t types.Type) []*Operator {
	best := map[string]*Operator{}
	var descriptions []string
	for _, op := range r.snap.Load().order {
		if !op.SupportsLeft(t) {
			continue
		}
		cur, seen := best[op.Description]
		if !seen {
			best[op.Description] = op
			descriptions = append(descriptions, op.Description)
			continue
		}
		if op.ExactLeft(t) && !cur.ExactLeft(t) {
			best[op.Description] = op
		}
	}

	out := make([]*Operator, 0, len(descriptions))
	for _, op := range r.snap.Load().order {
		if chosen, ok := best[op.Description]; ok && chosen == op {
			out = append(out, op)
		}
	}
	return out
}

// Version increases on every registration change.
func (r *Registry) Version() uint64 {
	return r.snap.Load().version
}

// Subscribe registers fn for changes to ref. Callbacks run inside Dispatch.
func (r *Registry) Subscribe(ref types.OperatorRef, fn func(notify.Change[types.OperatorRef])) func() {
	return r.hub.Subscribe(ref, fn)
}

// SubscribeAll registers fn for every change.
func (r *Registry) SubscribeAll(fn func(notify.Change[types.OperatorRef])) func() {
	return r.hub.SubscribeAll(fn)
}

// Dispatch delivers queued changes. Must be called from the update goroutine.
func (r *Registry) Dispatch() int {
	return r.hub.Dispatch()
}

func (s *opSnapshot) clone() *opSnapshot {
	next := &opSnapshot{
		version: s.version,
		ops:     make(map[opKey]*Operator, len(s.ops)+1),
		order:   make([]*Operator, len(s.order), len(s.order)+1),
	}
	for k, v := range s.ops {
		next.ops[k] = v
	}
	copy(next.order, s.order)
	return next
}
