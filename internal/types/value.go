// internal/types/value.go
package types

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

/*
 * Dynamic values.
 *
 * Value is a closed tagged union over Kind. Operators and coercion switch on
 * Kind exhaustively instead of type-asserting arbitrary interface values.
 *
 * Numeric comparison: Int and Float mix freely (AsFloat widens Int), matching
 * how plugin models expose counters next to percentages.
 *
 * Object values pair a Schema with opaque Data; only the schema's getters
 * interpret Data. Event values wrap the Event interface so the trigger state
 * stays owned by the plugin.
 */

// Event is an event-capable value exposed by a data model.
type Event interface {
	// LastTrigger returns the time the event last fired, zero if never.
	LastTrigger() time.Time
	// TriggerCount returns how many times the event fired.
	TriggerCount() int
	// Arguments returns the payload of the last trigger, if any.
	Arguments() (Object, bool)
}

// Object is a structured value laid out by a Schema.
type Object struct {
	Schema *Schema
	Data   any
}

// Get reads a property through the schema getter.
func (o Object) Get(name string) (Value, bool) {
	p, ok := o.Schema.Property(name)
	if !ok {
		return None(), false
	}
	return p.Get(o.Data), true
}

// Value is a dynamically typed value produced by data model getters.
// The zero Value is None.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	ref  any
}

// None returns the null value.
func None() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.i = 1
	}
	return v
}

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Enum returns an enum value identified by member name.
func Enum(member string) Value { return Value{kind: KindEnum, s: member} }

// HandleValue wraps an opaque plugin reference. nil becomes None.
func HandleValue(h any) Value {
	if h == nil {
		return None()
	}
	return Value{kind: KindHandle, ref: h}
}

// ObjectValue wraps data laid out by s.
func ObjectValue(s *Schema, data any) Value {
	return Value{kind: KindObject, ref: Object{Schema: s, Data: data}}
}

// ListValue wraps a sequence. A nil slice is an empty list, not None.
func ListValue(items []Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindList, ref: items}
}

// EventValue wraps an event. nil becomes None.
func EventValue(ev Event) Value {
	if ev == nil {
		return None()
	}
	return Value{kind: KindEvent, ref: ev}
}

// Kind returns the value kind.
func (v Value) Kind() Kind { return v.kind }

// IsNone reports whether v is the null value.
func (v Value) IsNone() bool { return v.kind == KindNone }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.i == 1, true
}

// AsInt returns the integer payload. Floats are not truncated.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// AsFloat returns the numeric payload, widening Int.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsEnum returns the enum member name.
func (v Value) AsEnum() (string, bool) {
	if v.kind != KindEnum {
		return "", false
	}
	return v.s, true
}

// AsHandle returns the opaque handle.
func (v Value) AsHandle() (any, bool) {
	if v.kind != KindHandle {
		return nil, false
	}
	return v.ref, true
}

// AsObject returns the object payload.
func (v Value) AsObject() (Object, bool) {
	if v.kind != KindObject {
		return Object{}, false
	}
	return v.ref.(Object), true
}

// AsList returns the list elements. The slice must not be modified.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.ref.([]Value), true
}

// AsEvent returns the wrapped event.
func (v Value) AsEvent() (Event, bool) {
	if v.kind != KindEvent {
		return nil, false
	}
	return v.ref.(Event), true
}

// Type infers a descriptor from the value itself.
// Named enum/handle types cannot be recovered and come back generic.
func (v Value) Type() Type {
	switch v.kind {
	case KindObject:
		return ObjectOfSchema(v.ref.(Object).Schema)
	case KindList:
		return ListOf(inferElemType(v.ref.([]Value)))
	case KindEvent:
		return AnyEventType
	default:
		return Type{Kind: v.kind}
	}
}

// Equal compares two values. Int and Float compare numerically.
func (v Value) Equal(u Value) bool {
	if a, ok := v.AsFloat(); ok {
		b, ok := u.AsFloat()
		return ok && a == b
	}
	if v.kind != u.kind {
		return false
	}
	switch v.kind {
	case KindNone:
		return true
	case KindBool:
		return v.i == u.i
	case KindString, KindEnum:
		return v.s == u.s
	case KindList:
		a, b := v.ref.([]Value), u.ref.([]Value)
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		return true
	case KindObject:
		a, b := v.ref.(Object), u.ref.(Object)
		return a.Schema == b.Schema && refEqual(a.Data, b.Data)
	default:
		return refEqual(v.ref, u.ref)
	}
}

// refEqual compares opaque references without panicking on non-comparable types.
func refEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// Interface converts v to plain Go values for scripts and JSON.
// Objects become map[string]any by calling every schema getter.
func (v Value) Interface() any {
	return v.toInterface(0)
}

func (v Value) toInterface(depth int) any {
	if depth > MaxPathDepth {
		return nil
	}
	switch v.kind {
	case KindBool:
		return v.i == 1
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString, KindEnum:
		return v.s
	case KindHandle:
		return v.ref
	case KindList:
		items := v.ref.([]Value)
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = item.toInterface(depth + 1)
		}
		return out
	case KindObject:
		obj := v.ref.(Object)
		props := obj.Schema.Properties()
		out := make(map[string]any, len(props))
		for _, p := range props {
			out[p.Name] = p.Get(obj.Data).toInterface(depth + 1)
		}
		return out
	case KindEvent:
		ev := v.ref.(Event)
		out := map[string]any{
			"trigger_count": ev.TriggerCount(),
			"last_trigger":  ev.LastTrigger(),
		}
		if args, ok := ev.Arguments(); ok {
			out["arguments"] = ObjectValue(args.Schema, args.Data).toInterface(depth + 1)
		}
		return out
	default:
		return nil
	}
}

// String implements fmt.Stringer for diagnostics.
func (v Value) String() string {
	switch v.kind {
	case KindNone:
		return "none"
	case KindBool:
		return strconv.FormatBool(v.i == 1)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindEnum:
		return v.s
	case KindList:
		return fmt.Sprintf("list[%d]", len(v.ref.([]Value)))
	case KindObject:
		return fmt.Sprintf("object(%s)", v.ref.(Object).Schema.Name())
	case KindEvent:
		return fmt.Sprintf("event(%d)", v.ref.(Event).TriggerCount())
	default:
		return fmt.Sprintf("handle(%v)", v.ref)
	}
}

// FromGo converts decoded JSON and common Go scalars into a Value.
// Maps become objects with an inferred schema.
func FromGo(x any) Value {
	switch t := x.(type) {
	case nil:
		return None()
	case Value:
		return t
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int8:
		return Int(int64(t))
	case int16:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint8:
		return Int(int64(t))
	case uint16:
		return Int(int64(t))
	case uint32:
		return Int(int64(t))
	case uint64:
		if t > math.MaxInt64 {
			return Float(float64(t))
		}
		return Int(int64(t))
	case float32:
		return Float(float64(t))
	case float64:
		// JSON numbers decode as float64; keep integral values as Int
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return Int(int64(t))
		}
		return Float(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i)
		}
		f, _ := t.Float64()
		return Float(f)
	case string:
		return String(t)
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = String(s)
		}
		return ListValue(items)
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = FromGo(e)
		}
		return ListValue(items)
	case map[string]any:
		return InferObject("", t)
	case Event:
		return EventValue(t)
	default:
		return HandleValue(t)
	}
}

// inferElemType returns the common element type, or Any for mixed/empty lists.
func inferElemType(items []Value) Type {
	if len(items) == 0 {
		return AnyType
	}
	first := items[0].Type()
	for _, item := range items[1:] {
		t := item.Type()
		if !t.Equal(first) {
			if t.Numeric() && first.Numeric() {
				first = FloatType
				continue
			}
			return AnyType
		}
	}
	return first
}
