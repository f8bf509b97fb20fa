package conditions

import (
	"testing"
	"time"

	"github.com/solatis/lumen/internal/datamodel"
	"github.com/solatis/lumen/internal/operators"
	"github.com/solatis/lumen/internal/types"
)

var gameID = types.DataModelID{ExtensionID: "racing", Key: "game"}

// fakeClock is a manually advanced clock.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEnv(t *testing.T) (*Env, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	env := NewEnv(nil)
	env.Clock = clock.Now
	if err := operators.RegisterBuiltins(env.Operators); err != nil {
		t.Fatalf("RegisterBuiltins() error = %v", err)
	}
	env.Dispatch()
	return env, clock
}

func addGame(t *testing.T, env *Env, values map[string]any) *datamodel.Dynamic {
	t.Helper()
	return addModel(t, env, gameID, values)
}

func addModel(t *testing.T, env *Env, id types.DataModelID, values map[string]any) *datamodel.Dynamic {
	t.Helper()
	m := datamodel.NewDynamic(id, values)
	if err := env.DataModels.Add(m); err != nil {
		t.Fatalf("Add(%s) error = %v", id, err)
	}
	env.Dispatch()
	return m
}

// setValue publishes one value the way the engine does: a layout change is
// reported to the registry and dispatched before the next evaluation.
func setValue(t *testing.T, env *Env, m *datamodel.Dynamic, key string, value any) {
	t.Helper()
	if m.Set(key, value) {
		if err := env.DataModels.Changed(m.ID()); err != nil {
			t.Fatalf("Changed(%s) error = %v", m.ID(), err)
		}
	}
	env.Dispatch()
}

func builtin(t *testing.T, env *Env, typ string) *operators.Operator {
	t.Helper()
	op, ok := env.Operators.Find(types.BuiltinExtensionID, typ)
	if !ok {
		t.Fatalf("builtin operator %s not registered", typ)
	}
	return op
}

// staticPredicate adds "<path> <op> <value>" to g.
func staticPredicate(t *testing.T, env *Env, g *Group, root types.DataModelID, path, op string, v types.Value) *Predicate {
	t.Helper()
	p := g.AddPredicate(Static)
	if err := p.UpdateLeftSide(root, path); err != nil {
		t.Fatalf("UpdateLeftSide(%q) error = %v", path, err)
	}
	if err := p.UpdateOperator(builtin(t, env, op)); err != nil {
		t.Fatalf("UpdateOperator(%s) error = %v", op, err)
	}
	if err := p.UpdateRightSideStatic(v); err != nil {
		t.Fatalf("UpdateRightSideStatic() error = %v", err)
	}
	return p
}

func mustEvaluate(t *testing.T, n Node) bool {
	t.Helper()
	got, err := n.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	return got
}

// constNode is a leaf with a fixed result, used to exercise combinators.
type constNode struct {
	nodeBase
	result bool
	calls  int
}

func (c *constNode) Evaluate() (bool, error) {
	c.calls++
	return c.result, nil
}
func (c *constNode) EvaluateObject(types.Value) (bool, error) { return c.Evaluate() }
func (c *constNode) Children() []Node                         { return nil }
func (c *constNode) Save() NodeEntity                         { return NodeEntity{Kind: KindGroup} }
func (c *constNode) Dispose()                                 { c.disposed = true }
func (c *constNode) rescope()                                 {}

func groupOf(op BooleanOperator, results ...bool) (*Group, []*constNode) {
	g := NewGroup(nil, op)
	leaves := make([]*constNode, len(results))
	for i, r := range results {
		leaves[i] = &constNode{result: r}
		g.children = append(g.children, leaves[i])
	}
	return g, leaves
}
