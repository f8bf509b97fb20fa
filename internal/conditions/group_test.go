package conditions

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/lumen/internal/types"
)

func TestGroup_Evaluate(t *testing.T) {
	tests := []struct {
		name     string
		op       BooleanOperator
		children []bool
		want     bool
	}{
		{"empty and", And, nil, true},
		{"empty or-not", OrNot, nil, true},
		{"and all true", And, []bool{true, true}, true},
		{"and one false", And, []bool{true, false}, false},
		{"or one true", Or, []bool{false, true}, true},
		{"or all false", Or, []bool{false, false}, false},
		{"and-not mixed", AndNot, []bool{true, false}, false},
		{"and-not all false", AndNot, []bool{false, false}, true},
		{"or-not all false", OrNot, []bool{false, false}, true},
		{"or-not all true", OrNot, []bool{true, true}, false},
		{"or-not mixed", OrNot, []bool{true, false}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := groupOf(tt.op, tt.children...)
			if got := mustEvaluate(t, g); got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGroup_SingleChildIgnoresOperator(t *testing.T) {
	for _, op := range []BooleanOperator{And, Or, AndNot, OrNot} {
		for _, child := range []bool{true, false} {
			g, _ := groupOf(op, child)
			if got := mustEvaluate(t, g); got != child {
				t.Errorf("%v with single child %v = %v", op, child, got)
			}
		}
	}
}

func TestGroup_ShortCircuits(t *testing.T) {
	g, leaves := groupOf(And, false, true)
	mustEvaluate(t, g)
	if leaves[1].calls != 0 {
		t.Errorf("And evaluated %d children after the first false", leaves[1].calls)
	}

	g, leaves = groupOf(Or, true, false)
	mustEvaluate(t, g)
	if leaves[1].calls != 0 {
		t.Errorf("Or evaluated %d children after the first true", leaves[1].calls)
	}
}

func TestGroup_DisposedRejectsEvaluate(t *testing.T) {
	g, leaves := groupOf(And, true, true)
	g.Dispose()

	if _, err := g.Evaluate(); !errors.Is(err, types.ErrDisposed) {
		t.Errorf("Evaluate() after Dispose error = %v, want ErrDisposed", err)
	}
	if _, err := g.EvaluateObject(types.Int(1)); !errors.Is(err, types.ErrDisposed) {
		t.Errorf("EvaluateObject() after Dispose error = %v, want ErrDisposed", err)
	}
	for i, l := range leaves {
		if !l.Disposed() {
			t.Errorf("child %d not disposed", i)
		}
	}
}

func TestGroup_ChildManagement(t *testing.T) {
	env, _ := newTestEnv(t)
	g := NewGroup(env, And)
	a := g.AddGroup(Or)
	b := g.AddPredicate(Static)
	c := g.AddList(Any)

	if len(g.Children()) != 3 || a.Parent() != g || b.Parent() != g || c.Parent() != g {
		t.Fatal("children not attached to group")
	}
	if !g.MoveChild(c, 0) || g.Children()[0] != c {
		t.Error("MoveChild() did not move list to the front")
	}
	if !g.RemoveChild(b) || !b.Disposed() {
		t.Error("RemoveChild() did not detach and dispose the predicate")
	}
	if g.RemoveChild(b) {
		t.Error("RemoveChild() of a detached node returned true")
	}
	if len(g.Children()) != 2 {
		t.Errorf("len(Children()) = %d, want 2", len(g.Children()))
	}
}

func TestParseBooleanOperator(t *testing.T) {
	for _, op := range []BooleanOperator{And, Or, AndNot, OrNot} {
		got, err := ParseBooleanOperator(op.String())
		if err != nil || got != op {
			t.Errorf("ParseBooleanOperator(%q) = %v, %v", op.String(), got, err)
		}
	}
	if _, err := ParseBooleanOperator("xor"); !errors.Is(err, types.ErrInvalidEntity) {
		t.Errorf("ParseBooleanOperator(xor) error = %v, want ErrInvalidEntity", err)
	}
}

// Property-based test: group semantics match the boolean definition
func TestGroup_PropertySemantics(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("group result matches reference semantics", prop.ForAll(
		func(opIdx int, results []bool) bool {
			op := BooleanOperator(opIdx)
			g, _ := groupOf(op, results...)
			got, err := g.Evaluate()
			if err != nil {
				return false
			}
			return got == referenceGroup(op, results)
		},
		gen.IntRange(0, 3),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

func referenceGroup(op BooleanOperator, results []bool) bool {
	switch len(results) {
	case 0:
		return true
	case 1:
		return results[0]
	}
	all, anyTrue := true, false
	allFalse, anyFalse := true, false
	for _, r := range results {
		all = all && r
		anyTrue = anyTrue || r
		allFalse = allFalse && !r
		anyFalse = anyFalse || !r
	}
	switch op {
	case And:
		return all
	case Or:
		return anyTrue
	case AndNot:
		return allFalse
	default:
		return anyFalse
	}
}
