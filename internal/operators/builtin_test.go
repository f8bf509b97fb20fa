package operators

import (
	"fmt"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/lumen/internal/types"
)

func builtinByType(t *testing.T, typ string) Operator {
	t.Helper()
	for _, op := range Builtins() {
		if op.Type == typ {
			return op
		}
	}
	t.Fatalf("no builtin %s", typ)
	return Operator{}
}

func TestBuiltins_Compare(t *testing.T) {
	list := types.ListValue([]types.Value{types.Int(1), types.Int(2), types.Int(3)})

	tests := []struct {
		name  string
		op    string
		left  types.Value
		right types.Value
		want  bool
	}{
		// equals / not-equals
		{"eq: int vs float", TypeEquals, types.Int(5), types.Float(5.0), true},
		{"eq: strings", TypeEquals, types.String("ace"), types.String("ace"), true},
		{"eq: none vs none", TypeEquals, types.None(), types.None(), true},
		{"neq: different", TypeNotEquals, types.Int(5), types.Int(6), true},
		{"neq: same", TypeNotEquals, types.Enum("Idle"), types.Enum("Idle"), false},

		// numeric
		{"gt: 50 > 0", TypeGreaterThan, types.Int(50), types.Int(0), true},
		{"gt: 0 > 0", TypeGreaterThan, types.Int(0), types.Int(0), false},
		{"gte: 12 >= 10", TypeGreaterThanOrEqual, types.Int(12), types.Float(10), true},
		{"lt: mixed", TypeLessThan, types.Float(1.5), types.Int(2), true},
		{"lte: equal", TypeLessThanOrEqual, types.Int(2), types.Int(2), true},
		{"lt: string fails", TypeLessThan, types.String("1"), types.Int(2), false},
		{"gt: NaN fails", TypeGreaterThan, types.Float(math.NaN()), types.Int(0), false},
		{"gt: none fails", TypeGreaterThan, types.None(), types.Int(0), false},

		// divisible-by
		{"div: 4 by 2", TypeDivisibleBy, types.Int(4), types.Int(2), true},
		{"div: 3 by 2", TypeDivisibleBy, types.Int(3), types.Int(2), false},
		{"div: negative", TypeDivisibleBy, types.Int(-6), types.Int(3), true},
		{"div: zero divisor", TypeDivisibleBy, types.Int(4), types.Int(0), false},

		// strings
		{"contains substring", TypeContains, types.String("checkered flag"), types.String("flag"), true},
		{"contains list element", TypeContains, list, types.Int(2), true},
		{"contains missing element", TypeContains, list, types.Int(9), false},
		{"not-contains list", TypeNotContains, list, types.Int(9), true},
		{"not-contains none", TypeNotContains, types.None(), types.String("x"), false},
		{"starts-with", TypeStartsWith, types.String("pit lane"), types.String("pit"), true},
		{"ends-with", TypeEndsWith, types.String("pit lane"), types.String("lane"), true},
		{"ends-with non-string", TypeEndsWith, types.Int(1), types.String("1"), false},
		{"regex match", TypeMatchesRegex, types.String("lap 12"), types.String(`^lap \d+$`), true},
		{"regex invalid pattern", TypeMatchesRegex, types.String("lap"), types.String(`(`), false},

		// membership
		{"is-one-of hit", TypeIsOneOf, types.Float(2), list, true},
		{"is-one-of miss", TypeIsOneOf, types.Int(7), list, false},
		{"is-one-of non-list", TypeIsOneOf, types.Int(7), types.Int(7), false},

		// unary
		{"is-null", TypeIsNull, types.None(), types.None(), true},
		{"is-not-null", TypeIsNotNull, types.String(""), types.None(), true},
		{"is-true", TypeIsTrue, types.Bool(true), types.None(), true},
		{"is-false on true", TypeIsFalse, types.Bool(true), types.None(), false},
		{"is-true on none", TypeIsTrue, types.None(), types.None(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := builtinByType(t, tt.op)
			if got := op.Compare(tt.left, tt.right); got != tt.want {
				t.Errorf("%s(%v, %v) = %v, want %v", tt.op, tt.left, tt.right, got, tt.want)
			}
		})
	}
}

// Property-based test: numeric operators agree with Go's comparison
func TestBuiltins_RegexCacheIsBounded(t *testing.T) {
	op := builtinByType(t, TypeMatchesRegex)
	for i := 0; i < RegexCacheSize*4; i++ {
		pattern := fmt.Sprintf("^lap %d$", i)
		if !op.Compare(types.String(fmt.Sprintf("lap %d", i)), types.String(pattern)) {
			t.Fatalf("pattern %q did not match", pattern)
		}
	}
	if n := regexCache.Len(); n > RegexCacheSize {
		t.Errorf("regex cache holds %d patterns, want at most %d", n, RegexCacheSize)
	}

	// Evicted patterns compile again on demand.
	if !op.Compare(types.String("lap 0"), types.String("^lap 0$")) {
		t.Error("evicted pattern no longer matches")
	}
}

func TestBuiltins_PropertyNumericConsistency(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	lt := builtinByType(t, TypeLessThan)
	gte := builtinByType(t, TypeGreaterThanOrEqual)
	eq := builtinByType(t, TypeEquals)
	neq := builtinByType(t, TypeNotEquals)

	properties.Property("less-than is the negation of greater-or-equal", prop.ForAll(
		func(a, b int64) bool {
			l, r := types.Int(a), types.Int(b)
			return lt.Compare(l, r) != gte.Compare(l, r)
		},
		gen.Int64Range(-1000, 1000),
		gen.Int64Range(-1000, 1000),
	))

	properties.Property("equals and not-equals are complementary", prop.ForAll(
		func(a int64, f float64) bool {
			l, r := types.Int(a), types.Float(f)
			return eq.Compare(l, r) != neq.Compare(l, r)
		},
		gen.Int64Range(-5, 5),
		gen.Float64Range(-5, 5),
	))

	properties.TestingRun(t)
}
