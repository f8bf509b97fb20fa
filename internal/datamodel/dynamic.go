// internal/datamodel/dynamic.go
package datamodel

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/solatis/lumen/internal/types"
)

/*
 * Map-backed data models.
 *
 * Dynamic backs models published over the plugin API: values arrive as
 * decoded JSON, the schema is inferred from them, and events are declared by
 * name. State is copy-on-write behind an atomic pointer so extension
 * goroutines can update while the update goroutine reads.
 *
 * Update and DefineEvent report whether the schema layout changed. The caller
 * forwards that to Registry.Changed so dependent paths re-resolve.
 */

type dynamicState struct {
	schema *types.Schema
	data   map[string]types.Value
	values map[string]any
}

// Dynamic is a data model whose layout is inferred from JSON-like values.
type Dynamic struct {
	id types.DataModelID

	mu     sync.Mutex // serializes writers
	state  atomic.Pointer[dynamicState]
	events map[string]*DynamicEvent
}

// NewDynamic creates a model from initial values.
func NewDynamic(id types.DataModelID, values map[string]any) *Dynamic {
	d := &Dynamic{id: id, events: map[string]*DynamicEvent{}}
	d.state.Store(d.build(values, nil))
	return d
}

// ID implements DataModel.
func (d *Dynamic) ID() types.DataModelID { return d.id }

// Schema implements DataModel.
func (d *Dynamic) Schema() *types.Schema { return d.state.Load().schema }

// Data implements DataModel. The returned map must not be modified.
func (d *Dynamic) Data() any { return d.state.Load().data }

// Values returns the last published raw values.
func (d *Dynamic) Values() map[string]any { return d.state.Load().values }

// Update replaces all values. Returns true if the layout changed.
func (d *Dynamic) Update(values map[string]any) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.state.Load()
	next := d.build(values, prev.schema)
	d.state.Store(next)
	return next.schema != prev.schema
}

// Set updates a single top-level value. Returns true if the layout changed.
func (d *Dynamic) Set(key string, value any) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.state.Load()
	values := make(map[string]any, len(prev.values)+1)
	for k, v := range prev.values {
		values[k] = v
	}
	values[key] = value
	next := d.build(values, prev.schema)
	d.state.Store(next)
	return next.schema != prev.schema
}

// DefineEvent declares an event property. args describes the trigger payload
// and may be nil. Redefining an existing event returns it unchanged.
// Returns the event and whether the layout changed.
func (d *Dynamic) DefineEvent(name string, args *types.Schema) (*DynamicEvent, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ev, ok := d.events[name]; ok {
		return ev, false
	}
	ev := NewDynamicEvent(args)
	d.events[name] = ev

	prev := d.state.Load()
	next := d.build(prev.values, prev.schema)
	d.state.Store(next)
	return ev, next.schema != prev.schema
}

// Event returns a declared event.
func (d *Dynamic) Event(name string) (*DynamicEvent, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ev, ok := d.events[name]
	return ev, ok
}

// EventNames returns declared event names in sorted order.
func (d *Dynamic) EventNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.events))
	for name := range d.events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Trigger fires a declared event. Returns ErrEventNotFound otherwise.
func (d *Dynamic) Trigger(name string, args map[string]any, at time.Time) error {
	ev, ok := d.Event(name)
	if !ok {
		return fmt.Errorf("trigger %s on %s: %w", name, d.id, types.ErrEventNotFound)
	}
	ev.Trigger(at, args)
	return nil
}

// build lays out values and events. The previous schema pointer is reused
// when the layout is unchanged so paths see no change. Null and empty list
// values inherit the property type from prev. Caller holds d.mu
// (or owns d exclusively).
func (d *Dynamic) build(values map[string]any, prev *types.Schema) *dynamicState {
	if values == nil {
		values = map[string]any{}
	}
	obj, _ := types.InferObject(d.id.Key, values).AsObject()
	data := obj.Data.(map[string]types.Value)

	names := make([]string, 0, len(d.events))
	for name := range d.events {
		names = append(names, name)
	}
	sort.Strings(names)

	var props []types.Property
	for _, p := range obj.Schema.Properties() {
		if _, shadowed := d.events[p.Name]; shadowed {
			delete(data, p.Name)
			continue
		}
		if last, ok := prev.Property(p.Name); ok && untyped(data[p.Name]) && last.Type.Kind != types.KindEvent {
			p.Type = last.Type
		}
		props = append(props, p)
	}
	for _, name := range names {
		ev := d.events[name]
		data[name] = types.EventValue(ev)
		props = append(props, types.Property{
			Name: name,
			Type: types.EventOf(ev.ArgumentSchema()),
			Get:  types.MapGetter(name),
		})
	}

	schema := types.NewSchema(d.id.Key, props...)
	if prev != nil && prev.SameLayout(schema) {
		schema = prev
	}
	return &dynamicState{schema: schema, data: data, values: values}
}

// untyped reports whether v carries no type information of its own: null,
// or an empty list. Such values keep the type the property had before.
func untyped(v types.Value) bool {
	if v.IsNone() {
		return true
	}
	items, ok := v.AsList()
	return ok && len(items) == 0
}

// triggerState is one immutable trigger record.
type triggerState struct {
	last  time.Time
	count int
	args  *types.Object
}

// DynamicEvent is a thread-safe event with an optional argument schema.
type DynamicEvent struct {
	args  *types.Schema
	state atomic.Pointer[triggerState]
}

// NewDynamicEvent creates an event that has never fired. Argument getters
// are replaced with map getters since triggers store arguments as maps.
func NewDynamicEvent(args *types.Schema) *DynamicEvent {
	if args != nil {
		args = mapSchema(args)
	}
	ev := &DynamicEvent{args: args}
	ev.state.Store(&triggerState{})
	return ev
}

// ArgumentSchema returns the declared argument layout, nil if none.
func (e *DynamicEvent) ArgumentSchema() *types.Schema { return e.args }

// LastTrigger implements types.Event.
func (e *DynamicEvent) LastTrigger() time.Time { return e.state.Load().last }

// TriggerCount implements types.Event.
func (e *DynamicEvent) TriggerCount() int { return e.state.Load().count }

// Arguments implements types.Event.
func (e *DynamicEvent) Arguments() (types.Object, bool) {
	a := e.state.Load().args
	if a == nil {
		return types.Object{}, false
	}
	return *a, true
}

// Trigger records a firing at the given time. Arguments are converted to the
// declared schema; values that do not convert fall back to the type default.
func (e *DynamicEvent) Trigger(at time.Time, args map[string]any) {
	var obj *types.Object
	if e.args != nil {
		data := make(map[string]types.Value, e.args.Len())
		for _, p := range e.args.Properties() {
			v, err := types.Convert(types.FromGo(args[p.Name]), p.Type)
			if err != nil {
				v = types.Default(p.Type)
			}
			data[p.Name] = v
		}
		o := types.Object{Schema: e.args, Data: data}
		obj = &o
	} else if args != nil {
		o, _ := types.InferObject("", args).AsObject()
		obj = &o
	}

	for {
		cur := e.state.Load()
		next := &triggerState{last: at, count: cur.count + 1, args: obj}
		if e.state.CompareAndSwap(cur, next) {
			return
		}
	}
}

// mapSchema copies s with getters reading map[string]Value data.
func mapSchema(s *types.Schema) *types.Schema {
	props := s.Properties()
	for i := range props {
		props[i].Get = types.MapGetter(props[i].Name)
	}
	return types.NewSchema(s.Name(), props...)
}
