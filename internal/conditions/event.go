// internal/conditions/event.go
package conditions

import (
	"fmt"
	"time"

	"github.com/solatis/lumen/internal/datamodel"
	"github.com/solatis/lumen/internal/types"
)

/*
 * Edge-triggered event node.
 *
 * An Event is true on the first evaluation after its event fired, then false
 * until it fires again. When the event carries arguments the child Group is
 * evaluated against them; without arguments a new trigger alone is enough.
 *
 * After consuming a trigger the node records the last processed time:
 *   - WallClock: the clock at evaluation time. Triggers that happen between
 *     the trigger time and the evaluation are folded into one.
 *   - TriggerTime: the event's own trigger timestamp, so no trigger that
 *     arrives after it is lost.
 *
 * The last processed time starts at construction, so triggers that happened
 * before the node existed do not count.
 */

// TriggerTracking selects what an Event records after consuming a trigger.
type TriggerTracking int

const (
	// WallClock records the evaluation time.
	WallClock TriggerTracking = iota
	// TriggerTime records the event's trigger timestamp.
	TriggerTime
)

// String implements fmt.Stringer.
func (t TriggerTracking) String() string {
	if t == TriggerTime {
		return "trigger-time"
	}
	return "wall-clock"
}

// ParseTriggerTracking parses a persisted mode. Empty means WallClock.
func ParseTriggerTracking(s string) (TriggerTracking, error) {
	switch s {
	case "", "wall-clock":
		return WallClock, nil
	case "trigger-time":
		return TriggerTime, nil
	default:
		return WallClock, fmt.Errorf("trigger tracking %q: %w", s, types.ErrInvalidEntity)
	}
}

// Event is true once per trigger of an event-capable value.
type Event struct {
	nodeBase
	path          *datamodel.Path
	lastProcessed time.Time
	tracking      TriggerTracking
	child         *Group
}

func newEvent(env *Env, parent Node, sc scope) *Event {
	e := &Event{
		nodeBase:      nodeBase{env: env, parent: parent, scope: sc},
		lastProcessed: env.now(),
	}
	e.child = newScopedGroup(env, e, scope{event: e})
	return e
}

// NewEvent creates a root-scope event node, as used by event-driven display
// conditions.
func NewEvent(env *Env) *Event {
	return newEvent(env, nil, scope{})
}

// Path returns the event path, nil if unset.
func (e *Event) Path() *datamodel.Path { return e.path }

// Group returns the child group evaluated against the event arguments.
func (e *Event) Group() *Group { return e.child }

// Children implements Node.
func (e *Event) Children() []Node { return []Node{e.child} }

// Tracking returns the trigger tracking mode.
func (e *Event) Tracking() TriggerTracking { return e.tracking }

// SetTracking changes the trigger tracking mode.
func (e *Event) SetTracking(t TriggerTracking) { e.tracking = t }

// LastProcessed returns the last processed trigger time.
func (e *Event) LastProcessed() time.Time { return e.lastProcessed }

// Reset forgets triggers up to now.
func (e *Event) Reset() { e.lastProcessed = e.env.now() }

// ArgumentType returns the declared argument type of the bound event.
func (e *Event) ArgumentType() (types.Type, bool) {
	if e.path == nil || !e.path.Valid() {
		return types.Type{}, false
	}
	return e.path.Type().ArgumentType()
}

// UpdatePath binds the node to an event. A zero root resolves path relative
// to the enclosing list element or event arguments.
func (e *Event) UpdatePath(root types.DataModelID, path string) error {
	if e.disposed {
		return types.ErrDisposed
	}
	if root.IsZero() && e.scope.kind() == ScopeRoot {
		return fmt.Errorf("event path %q in root scope: %w", path, types.ErrWrongScope)
	}
	if e.path != nil {
		e.path.Dispose()
	}
	e.path = e.newPath(root, path)
	e.path.Watch(e.child.rescope, e.child.rescope)
	e.child.rescope()
	return nil
}

// Evaluate implements Node.
func (e *Event) Evaluate() (bool, error) {
	if e.disposed {
		return false, types.ErrDisposed
	}
	if e.path == nil || e.path.IsRelative() {
		return false, nil
	}
	return e.evaluateEvent(e.path.Value())
}

// EvaluateObject implements Node.
func (e *Event) EvaluateObject(target types.Value) (bool, error) {
	if e.disposed {
		return false, types.ErrDisposed
	}
	if e.path == nil {
		return false, nil
	}
	return e.evaluateEvent(readPath(e.path, target))
}

func (e *Event) evaluateEvent(v types.Value) (bool, error) {
	ev, ok := v.AsEvent()
	if !ok {
		return false, nil
	}
	last := ev.LastTrigger()
	if !last.After(e.lastProcessed) {
		return false, nil
	}

	if e.tracking == TriggerTime {
		e.lastProcessed = last
	} else {
		e.lastProcessed = e.env.now()
	}

	args, ok := ev.Arguments()
	if !ok {
		return true, nil
	}
	return e.child.EvaluateObject(types.ObjectValue(args.Schema, args.Data))
}

func (e *Event) rescope() {
	if e.path != nil && e.path.IsRelative() {
		path := e.path.String()
		e.path.Dispose()
		e.path = e.newPath(types.DataModelID{}, path)
		e.path.Watch(e.child.rescope, e.child.rescope)
	}
	e.child.rescope()
}

// Save implements Node.
func (e *Event) Save() NodeEntity {
	return NodeEntity{
		Kind:            KindEvent,
		Path:            pathEntity(e.path),
		TriggerTracking: e.tracking.String(),
		Children:        []NodeEntity{e.child.Save()},
	}
}

// Dispose implements Node.
func (e *Event) Dispose() {
	if e.disposed {
		return
	}
	e.child.Dispose()
	if e.path != nil {
		e.path.Dispose()
	}
	e.disposed = true
}
