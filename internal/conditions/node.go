// Package conditions implements the composable condition tree: groups,
// predicates, list quantifiers and event nodes evaluated against live data
// models.
//
// Evaluation is fail-closed. Missing operators, invalid paths and
// incompatible operands evaluate to false; only use after Dispose is an
// error (types.ErrDisposed).
//
// Trees are not safe for concurrent mutation. The host serializes editor
// changes against evaluation; registry notifications arrive on the update
// goroutine through Registry.Dispatch.
package conditions

import (
	"log/slog"
	"time"

	"github.com/solatis/lumen/internal/datamodel"
	"github.com/solatis/lumen/internal/operators"
	"github.com/solatis/lumen/internal/types"
)

// Env bundles the collaborators every node needs.
type Env struct {
	DataModels *datamodel.Registry
	Operators  *operators.Registry
	Logger     *slog.Logger
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// NewEnv creates an environment with fresh registries.
func NewEnv(logger *slog.Logger) *Env {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Env{
		DataModels: datamodel.NewRegistry(logger),
		Operators:  operators.NewRegistry(logger),
		Logger:     logger,
		Clock:      time.Now,
	}
}

func (e *Env) logger() *slog.Logger {
	if e == nil || e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

func (e *Env) now() time.Time {
	if e == nil || e.Clock == nil {
		return time.Now()
	}
	return e.Clock()
}

// Dispatch delivers pending registry changes to subscribed nodes. Call it
// from the update goroutine before evaluating.
func (e *Env) Dispatch() int {
	n := 0
	if e.Operators != nil {
		n += e.Operators.Dispatch()
	}
	if e.DataModels != nil {
		n += e.DataModels.Dispatch()
	}
	return n
}

// Node is the common contract of every condition node.
type Node interface {
	// Evaluate evaluates against the bound data models.
	Evaluate() (bool, error)
	// EvaluateObject evaluates against target, the current list element or
	// event arguments. Nodes outside a list or event scope ignore target.
	EvaluateObject(target types.Value) (bool, error)
	// Parent returns the owning node, nil for a root.
	Parent() Node
	// Children returns the owned child nodes.
	Children() []Node
	// Save converts the subtree into its persistent form.
	Save() NodeEntity
	// Dispose releases subscriptions and paths depth-first.
	Dispose()
	// Disposed reports whether Dispose ran.
	Disposed() bool

	base() *nodeBase
	// rescope re-resolves paths that are relative to an enclosing list
	// element or event arguments.
	rescope()
}

// Scope identifies what relative paths of a node resolve against.
type Scope int

const (
	// ScopeRoot resolves paths against registered data models.
	ScopeRoot Scope = iota
	// ScopeList resolves paths against the current element of a List.
	ScopeList
	// ScopeEvent resolves paths against the arguments of an Event.
	ScopeEvent
)

// String implements fmt.Stringer.
func (s Scope) String() string {
	switch s {
	case ScopeList:
		return "list"
	case ScopeEvent:
		return "event"
	default:
		return "root"
	}
}

// scope is a non-owning back-reference to the List or Event whose element
// relative paths resolve against. Both nil means root scope.
type scope struct {
	list  *List
	event *Event
}

func (s scope) kind() Scope {
	switch {
	case s.list != nil:
		return ScopeList
	case s.event != nil:
		return ScopeEvent
	default:
		return ScopeRoot
	}
}

// targetType is the declared type relative paths resolve against.
func (s scope) targetType() types.Type {
	switch {
	case s.list != nil:
		return s.list.ElementType()
	case s.event != nil:
		t, _ := s.event.ArgumentType()
		return t
	default:
		return types.Type{}
	}
}

// nodeBase carries the state shared by all node kinds.
type nodeBase struct {
	env      *Env
	parent   Node
	scope    scope
	disposed bool
}

func (b *nodeBase) base() *nodeBase { return b }

// Parent implements Node.
func (b *nodeBase) Parent() Node { return b.parent }

// Disposed implements Node.
func (b *nodeBase) Disposed() bool { return b.disposed }

// Scope reports what relative paths resolve against.
func (b *nodeBase) Scope() Scope { return b.scope.kind() }

// newPath creates a rooted path in root scope and a relative path otherwise.
// A rooted path requested inside a list or event scope stays rooted.
func (b *nodeBase) newPath(root types.DataModelID, path string) *datamodel.Path {
	if root.IsZero() {
		return datamodel.NewRelativePath(b.scope.targetType(), path)
	}
	return datamodel.NewPath(b.env.DataModels, root, path)
}

// readPath reads a path, relative paths against target.
func readPath(p *datamodel.Path, target types.Value) types.Value {
	if p == nil {
		return types.None()
	}
	if p.IsRelative() {
		return p.ValueFrom(target)
	}
	return p.Value()
}

// pathEntity saves a path.
func pathEntity(p *datamodel.Path) *PathEntity {
	if p == nil {
		return nil
	}
	e := &PathEntity{Path: p.String()}
	if !p.IsRelative() {
		id := p.Root()
		e.DataModel = &id
	}
	return e
}

// Walk visits n and its descendants depth-first, parents before children.
// Returning false from fn skips the node's children.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children() {
		Walk(c, fn)
	}
}
