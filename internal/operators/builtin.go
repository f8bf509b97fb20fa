// internal/operators/builtin.go
package operators

import (
	"errors"
	"math"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/solatis/lumen/internal/types"
)

/*
 * Built-in comparison operators.
 *
 * Values reach Compare already coerced: static right sides at assignment
 * time, dynamic right sides through the predicate's conversion step.
 *
 * Operators:
 *   - equals/not-equals: any type, numeric Int/Float mixing
 *   - less/greater(-or-equal): numeric only
 *   - divisible-by: integers, false for a zero divisor
 *   - contains/not-contains: substring for strings, membership for lists
 *   - starts-with/ends-with/matches-regex: strings only
 *   - is-one-of: membership of the left value in a right-side list
 *   - is-null/is-not-null/is-true/is-false: unary
 *
 * Non-matching kinds compare false, never panic.
 */

// Builtin operator type names.
const (
	TypeEquals             = "equals"
	TypeNotEquals          = "not-equals"
	TypeLessThan           = "less-than"
	TypeLessThanOrEqual    = "less-than-or-equal"
	TypeGreaterThan        = "greater-than"
	TypeGreaterThanOrEqual = "greater-than-or-equal"
	TypeDivisibleBy        = "divisible-by"
	TypeContains           = "contains"
	TypeNotContains        = "not-contains"
	TypeStartsWith         = "starts-with"
	TypeEndsWith           = "ends-with"
	TypeMatchesRegex       = "matches-regex"
	TypeIsOneOf            = "is-one-of"
	TypeIsNull             = "is-null"
	TypeIsNotNull          = "is-not-null"
	TypeIsTrue             = "is-true"
	TypeIsFalse            = "is-false"
)

// Builtins returns the operators shipped with lumen.
func Builtins() []Operator {
	anyLeft := []types.Type{types.AnyType}
	numeric := []types.Type{types.FloatType}
	text := []types.Type{types.StringType}
	containers := []types.Type{types.StringType, types.AnyListType}

	return []Operator{
		{Type: TypeEquals, Description: "Equals", LeftTypes: anyLeft, SupportsRightSide: true, Compare: compareEqual},
		{Type: TypeNotEquals, Description: "Does not equal", LeftTypes: anyLeft, SupportsRightSide: true,
			Compare: func(l, r types.Value) bool { return !compareEqual(l, r) }},
		{Type: TypeLessThan, Description: "Is less than", LeftTypes: numeric, RightType: types.FloatType, SupportsRightSide: true,
			Compare: numericCompare(func(c int) bool { return c < 0 })},
		{Type: TypeLessThanOrEqual, Description: "Is less than or equal to", LeftTypes: numeric, RightType: types.FloatType, SupportsRightSide: true,
			Compare: numericCompare(func(c int) bool { return c <= 0 })},
		{Type: TypeGreaterThan, Description: "Is greater than", LeftTypes: numeric, RightType: types.FloatType, SupportsRightSide: true,
			Compare: numericCompare(func(c int) bool { return c > 0 })},
		{Type: TypeGreaterThanOrEqual, Description: "Is greater than or equal to", LeftTypes: numeric, RightType: types.FloatType, SupportsRightSide: true,
			Compare: numericCompare(func(c int) bool { return c >= 0 })},
		{Type: TypeDivisibleBy, Description: "Is divisible by", LeftTypes: []types.Type{types.IntType}, RightType: types.IntType, SupportsRightSide: true,
			Compare: compareDivisible},
		{Type: TypeContains, Description: "Contains", LeftTypes: containers, RightTypeFor: containedType, SupportsRightSide: true,
			Compare: compareContains},
		{Type: TypeNotContains, Description: "Does not contain", LeftTypes: containers, RightTypeFor: containedType, SupportsRightSide: true,
			Compare: func(l, r types.Value) bool { return !l.IsNone() && !compareContains(l, r) }},
		{Type: TypeStartsWith, Description: "Starts with", LeftTypes: text, SupportsRightSide: true,
			Compare: stringCompare(strings.HasPrefix)},
		{Type: TypeEndsWith, Description: "Ends with", LeftTypes: text, SupportsRightSide: true,
			Compare: stringCompare(strings.HasSuffix)},
		{Type: TypeMatchesRegex, Description: "Matches regex", LeftTypes: text, SupportsRightSide: true,
			Compare: compareRegex},
		{Type: TypeIsOneOf, Description: "Is one of", LeftTypes: anyLeft, RightTypeFor: types.ListOf, SupportsRightSide: true,
			Compare: compareIn},
		{Type: TypeIsNull, Description: "Is null", LeftTypes: anyLeft,
			Compare: func(l, _ types.Value) bool { return l.IsNone() }},
		{Type: TypeIsNotNull, Description: "Is not null", LeftTypes: anyLeft,
			Compare: func(l, _ types.Value) bool { return !l.IsNone() }},
		{Type: TypeIsTrue, Description: "Is true", LeftTypes: []types.Type{types.BoolType},
			Compare: boolCompare(true)},
		{Type: TypeIsFalse, Description: "Is false", LeftTypes: []types.Type{types.BoolType},
			Compare: boolCompare(false)},
	}
}

// RegisterBuiltins registers Builtins under types.BuiltinExtensionID.
func RegisterBuiltins(r *Registry) error {
	var errs []error
	for _, op := range Builtins() {
		if _, err := r.Register(types.BuiltinExtensionID, op); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// compareEqual performs equality with Int/Float mixing.
func compareEqual(l, r types.Value) bool {
	return l.Equal(r)
}

// numericCompare adapts a three-way result predicate into a CompareFunc.
// Non-numeric operands compare false.
func numericCompare(accept func(int) bool) CompareFunc {
	return func(l, r types.Value) bool {
		a, ok1 := l.AsFloat()
		b, ok2 := r.AsFloat()
		if !ok1 || !ok2 || math.IsNaN(a) || math.IsNaN(b) {
			return false
		}
		switch {
		case a < b:
			return accept(-1)
		case a > b:
			return accept(1)
		default:
			return accept(0)
		}
	}
}

func compareDivisible(l, r types.Value) bool {
	a, ok1 := l.AsInt()
	b, ok2 := r.AsInt()
	if !ok1 || !ok2 || b == 0 {
		return false
	}
	return a%b == 0
}

// containedType is the right side type of contains: the element type for
// lists, a substring otherwise.
func containedType(left types.Type) types.Type {
	if left.Kind == types.KindList {
		if elem, ok := left.ElemType(); ok {
			return elem
		}
		return types.AnyType
	}
	return types.StringType
}

func compareContains(l, r types.Value) bool {
	if items, ok := l.AsList(); ok {
		for _, item := range items {
			if item.Equal(r) {
				return true
			}
		}
		return false
	}
	return stringCompare(strings.Contains)(l, r)
}

// compareIn checks whether the left value is an element of the right list.
func compareIn(l, r types.Value) bool {
	items, ok := r.AsList()
	if !ok {
		return false
	}
	for _, item := range items {
		if l.Equal(item) {
			return true
		}
	}
	return false
}

// stringCompare returns false unless both sides are strings.
func stringCompare(fn func(s, sub string) bool) CompareFunc {
	return func(l, r types.Value) bool {
		ls, ok1 := l.AsString()
		rs, ok2 := r.AsString()
		if !ok1 || !ok2 {
			return false
		}
		return fn(ls, rs)
	}
}

func boolCompare(want bool) CompareFunc {
	return func(l, _ types.Value) bool {
		b, ok := l.AsBool()
		return ok && b == want
	}
}

// RegexCacheSize bounds the number of compiled patterns kept in memory.
const RegexCacheSize = 256

// regexCache holds recently used patterns. Invalid patterns are cached as nil.
var regexCache = mustRegexCache(RegexCacheSize)

func mustRegexCache(size int) *lru.Cache[string, *regexp.Regexp] {
	c, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		panic(err)
	}
	return c
}

func compareRegex(l, r types.Value) bool {
	s, ok1 := l.AsString()
	pattern, ok2 := r.AsString()
	if !ok1 || !ok2 {
		return false
	}
	re, ok := regexCache.Get(pattern)
	if !ok {
		var err error
		if re, err = regexp.Compile(pattern); err != nil {
			re = nil
		}
		regexCache.Add(pattern, re)
	}
	return re != nil && re.MatchString(s)
}
