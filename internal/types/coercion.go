// internal/types/coercion.go
package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

/*
 * Value coercion.
 *
 * Conversion runs once, when a static value or operator is assigned, never
 * during evaluation. Null passes through untouched so callers can apply the
 * asymmetric null rule themselves; only impossible conversions fail.
 *
 * Type modes:
 *   - Int/Float: strict. Numeric strings are accepted after trimming,
 *     booleans are rejected, Float to Int only when integral.
 *   - String: lenient. Scalars and handles render to text.
 *   - Bool: strict. Only booleans ("true" vs 1 is ambiguous).
 *   - Enum: by member name, or by index when members are declared.
 *   - Handle/Object/List/Event: only from the same kind; list elements are
 *     converted one by one against the declared element type.
 *   - Any: passthrough.
 */

// Convert coerces v to type t. Returns ErrCoercionFailed for impossible
// conversions. None is returned unchanged for every target type.
func Convert(v Value, t Type) (Value, error) {
	if v.IsNone() || t.Kind == KindAny {
		return v, nil
	}

	switch t.Kind {
	case KindInt:
		return convertInt(v)
	case KindFloat:
		return convertFloat(v)
	case KindString:
		return convertString(v)
	case KindBool:
		if v.kind != KindBool {
			return None(), ErrCoercionFailed
		}
		return v, nil
	case KindEnum:
		return convertEnum(v, t)
	case KindList:
		return convertList(v, t)
	case KindHandle, KindObject, KindEvent:
		if v.kind != t.Kind || !v.Type().CastableTo(t) {
			return None(), ErrCoercionFailed
		}
		return v, nil
	default:
		return None(), ErrCoercionFailed
	}
}

// Default returns the type-appropriate fallback: zero for value kinds,
// None for reference kinds. Enums fall back to their first declared member.
func Default(t Type) Value {
	switch t.Kind {
	case KindBool:
		return Bool(false)
	case KindInt:
		return Int(0)
	case KindFloat:
		return Float(0)
	case KindEnum:
		if len(t.EnumValues) > 0 {
			return Enum(t.EnumValues[0])
		}
		return Enum("")
	default:
		return None()
	}
}

func convertInt(v Value) (Value, error) {
	switch v.kind {
	case KindInt:
		return v, nil
	case KindFloat:
		if v.f != math.Trunc(v.f) || math.Abs(v.f) >= 1<<63 {
			return None(), ErrCoercionFailed
		}
		return Int(int64(v.f)), nil
	case KindString:
		s := strings.TrimSpace(v.s)
		if s == "" {
			return None(), ErrCoercionFailed
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(i), nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return None(), ErrCoercionFailed
		}
		return convertInt(Float(f))
	default:
		// Strict mode: booleans and reference kinds are not numbers
		return None(), ErrCoercionFailed
	}
}

func convertFloat(v Value) (Value, error) {
	switch v.kind {
	case KindFloat:
		return v, nil
	case KindInt:
		return Float(float64(v.i)), nil
	case KindString:
		s := strings.TrimSpace(v.s)
		if s == "" {
			return None(), ErrCoercionFailed
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return None(), ErrCoercionFailed
		}
		return Float(f), nil
	default:
		return None(), ErrCoercionFailed
	}
}

func convertString(v Value) (Value, error) {
	switch v.kind {
	case KindString:
		return v, nil
	case KindInt:
		return String(strconv.FormatInt(v.i, 10)), nil
	case KindFloat:
		return String(strconv.FormatFloat(v.f, 'f', -1, 64)), nil
	case KindBool:
		return String(strconv.FormatBool(v.i == 1)), nil
	case KindEnum:
		return String(v.s), nil
	case KindHandle:
		return String(fmt.Sprintf("%v", v.ref)), nil
	default:
		return None(), ErrCoercionFailed
	}
}

func convertEnum(v Value, t Type) (Value, error) {
	var member string
	switch v.kind {
	case KindEnum:
		member = v.s
	case KindString:
		member = strings.TrimSpace(v.s)
	case KindInt:
		if v.i < 0 || v.i >= int64(len(t.EnumValues)) {
			return None(), ErrCoercionFailed
		}
		return Enum(t.EnumValues[v.i]), nil
	default:
		return None(), ErrCoercionFailed
	}
	if member == "" {
		return None(), ErrCoercionFailed
	}
	if len(t.EnumValues) == 0 {
		return Enum(member), nil
	}
	for _, candidate := range t.EnumValues {
		if candidate == member {
			return Enum(member), nil
		}
	}
	return None(), ErrCoercionFailed
}

func convertList(v Value, t Type) (Value, error) {
	items, ok := v.AsList()
	if !ok {
		return None(), ErrCoercionFailed
	}
	if t.Elem == nil || t.Elem.Kind == KindAny {
		return v, nil
	}
	out := make([]Value, len(items))
	for i, item := range items {
		c, err := Convert(item, *t.Elem)
		if err != nil {
			return None(), fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = c
	}
	return ListValue(out), nil
}
