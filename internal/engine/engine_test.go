package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/solatis/lumen/internal/builtin"
	"github.com/solatis/lumen/internal/display"
	"github.com/solatis/lumen/internal/profile"
	"github.com/solatis/lumen/internal/types"
)

const frame = 100 * time.Millisecond

var carID = types.DataModelID{ExtensionID: "racing", Key: "car"}

const dashboard = `{
  "name": "dashboard",
  "elements": [
    {"id": "hud", "name": "hud", "timeline": {"main_ms": 1000}, "condition": {"kind": "always-on"}},
    {
      "id": "fuel", "name": "low fuel", "parent_id": "hud",
      "timeline": {"start_ms": 200, "main_ms": 400, "end_ms": 200, "stop_mode": "skip-to-end"},
      "condition": {
        "kind": "static",
        "condition": {
          "kind": "group", "boolean_operator": "and",
          "children": [{
            "kind": "predicate", "predicate_type": "static",
            "operator": {"extension_id": "builtin", "type": "less-than"},
            "left_path": {"data_model": {"extension_id": "racing", "key": "car"}, "path": "fuel"},
            "right_value": {"kind": "float", "value": 5.5}
          }]
        }
      }
    },
    {
      "id": "lap", "name": "lap flash", "parent_id": "hud",
      "timeline": {"start_ms": 100, "main_ms": 300, "end_ms": 100},
      "condition": {
        "kind": "events", "overlap_mode": "copy",
        "events": [{"kind": "event", "path": {"data_model": {"extension_id": "racing", "key": "car"}, "path": "lap_completed"}}]
      }
    },
    {
      "id": "lights", "name": "headlights", "parent_id": "hud",
      "timeline": {"main_ms": 500},
      "condition": {
        "kind": "events", "trigger_mode": "toggle",
        "events": [{"kind": "event", "path": {"data_model": {"extension_id": "racing", "key": "car"}, "path": "lights"}}]
      }
    }
  ]
}`

const evenLaps = `{
  "name": "even laps",
  "elements": [{
    "id": "even", "name": "all laps even",
    "timeline": {"main_ms": 500},
    "condition": {
      "kind": "static",
      "condition": {
        "kind": "group", "boolean_operator": "and",
        "children": [{
          "kind": "list", "list_operator": "all",
          "path": {"data_model": {"extension_id": "racing", "key": "car"}, "path": "laps"},
          "children": [{
            "kind": "group", "boolean_operator": "and",
            "children": [{
              "kind": "list-predicate", "predicate_type": "static",
              "operator": {"extension_id": "builtin", "type": "divisible-by"},
              "left_path": {"path": ""},
              "right_value": {"kind": "int", "value": 2}
            }]
          }]
        }]
      }
    }
  }]
}`

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestEngine(t *testing.T, journalDir string) (*Engine, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 6, 21, 0, 0, 0, time.UTC)}
	e, err := New(Options{Clock: clock.Now, JournalDir: journalDir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e, clock
}

func loadDashboard(t *testing.T, e *Engine) {
	t.Helper()
	doc, err := profile.Decode([]byte(dashboard), profile.FormatJSON)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := e.LoadProfile(context.Background(), doc); err != nil {
		t.Fatalf("LoadProfile() error = %v", err)
	}
}

// step advances the clock by one frame and ticks.
func step(e *Engine, clock *fakeClock) {
	clock.now = clock.now.Add(frame)
	e.Tick(context.Background(), frame)
}

func stateOf(t *testing.T, e *Engine, id types.ElementID) ElementState {
	t.Helper()
	for _, s := range e.States() {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("no state for element %s", id)
	return ElementState{}
}

func TestEngine_Dashboard(t *testing.T) {
	e, clock := newTestEngine(t, "")
	loadDashboard(t, e)

	states := e.States()
	if len(states) != 4 || states[0].ID != "hud" {
		t.Fatalf("States() = %+v, want hud first of 4", states)
	}

	// car model not published yet
	step(e, clock)
	if !stateOf(t, e, "hud").Met {
		t.Error("hud not met")
	}
	if stateOf(t, e, "fuel").Met {
		t.Error("low fuel met without a car model")
	}

	if err := e.PublishDataModel(carID, map[string]any{"fuel": 40.5}, []string{"lap_completed", "lights"}); err != nil {
		t.Fatalf("PublishDataModel() error = %v", err)
	}
	step(e, clock)
	if stateOf(t, e, "fuel").Met {
		t.Error("low fuel met with 40.5 litres")
	}

	if err := e.PublishDataModel(carID, map[string]any{"fuel": 3.5}, nil); err != nil {
		t.Fatal(err)
	}
	step(e, clock)
	fuel := stateOf(t, e, "fuel")
	if !fuel.Met || fuel.Position != frame {
		t.Errorf("low fuel = %+v, want met and restarted", fuel)
	}

	if err := e.PublishDataModel(carID, map[string]any{"fuel": 60.5}, nil); err != nil {
		t.Fatal(err)
	}
	step(e, clock)
	if fuel := stateOf(t, e, "fuel"); fuel.Met || fuel.Position != 700*time.Millisecond {
		t.Errorf("refuelled = %+v, want end segment", fuel)
	}

	if _, err := e.TriggerEvent(carID, "lap_completed", nil); err != nil {
		t.Fatal(err)
	}
	step(e, clock)
	if !stateOf(t, e, "lap").Met {
		t.Error("lap flash not met after lap_completed")
	}
	step(e, clock)
	if stateOf(t, e, "lap").Met {
		t.Error("lap flash still met without a new lap")
	}
}

func TestEngine_ToggleStatePersists(t *testing.T) {
	e, clock := newTestEngine(t, "")
	loadDashboard(t, e)
	if err := e.PublishDataModel(carID, map[string]any{"fuel": 40.5}, []string{"lights"}); err != nil {
		t.Fatal(err)
	}
	step(e, clock)
	if _, err := e.TriggerEvent(carID, "lights", nil); err != nil {
		t.Fatal(err)
	}
	step(e, clock)
	step(e, clock)
	if !stateOf(t, e, "lights").Met {
		t.Fatal("headlights not toggled on")
	}

	saved := e.Profile()
	lights, ok := saved.Element("lights")
	if !ok || !lights.Condition.Toggled {
		t.Fatalf("saved lights = %+v, want toggled", lights)
	}

	data, err := profile.Encode(saved, profile.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := profile.Decode(data, profile.FormatJSON)
	if err != nil {
		t.Fatalf("Decode(saved) error = %v", err)
	}
	if err := e.LoadProfile(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	step(e, clock)
	if !stateOf(t, e, "lights").Met {
		t.Error("toggle state lost across reload")
	}
}

func TestEngine_LoadFailureKeepsProfile(t *testing.T) {
	e, clock := newTestEngine(t, "")
	loadDashboard(t, e)

	bad := &profile.Document{Name: "broken", Elements: []profile.ElementEntity{
		{ID: "a"},
		{ID: "b", Condition: display.ConditionEntity{Kind: display.KindEvents, OverlapMode: "merge"}},
	}}
	if err := e.LoadProfile(context.Background(), bad); !errors.Is(err, types.ErrInvalidEntity) {
		t.Fatalf("LoadProfile() error = %v, want ErrInvalidEntity", err)
	}
	cyclic := &profile.Document{Name: "cyclic", Elements: []profile.ElementEntity{{ID: "a", ParentID: "a"}}}
	if err := e.LoadProfile(context.Background(), cyclic); !errors.Is(err, types.ErrInvalidProfile) {
		t.Fatalf("LoadProfile() error = %v, want ErrInvalidProfile", err)
	}

	step(e, clock)
	if got := e.Profile(); got == nil || got.Name != "dashboard" {
		t.Errorf("Profile() = %+v, want dashboard still loaded", got)
	}

	e.UnloadProfile()
	if e.Profile() != nil || len(e.States()) != 0 {
		t.Error("UnloadProfile() left elements behind")
	}
}

func TestEngine_Journal(t *testing.T) {
	dir := t.TempDir()
	e, clock := newTestEngine(t, dir)
	loadDashboard(t, e)
	if err := e.PublishDataModel(carID, map[string]any{"fuel": 2.5}, nil); err != nil {
		t.Fatal(err)
	}
	step(e, clock)
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(e.journal.Path(clock.now))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer f.Close()

	met := map[types.ElementID]bool{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var tr Transition
		if err := json.Unmarshal(sc.Bytes(), &tr); err != nil {
			t.Fatalf("journal line %q: %v", sc.Text(), err)
		}
		if tr.Profile != "dashboard" {
			t.Errorf("transition profile = %q", tr.Profile)
		}
		met[tr.ElementID] = tr.Met
	}
	if !met["fuel"] {
		t.Errorf("journal = %v, want fuel transition to met", met)
	}
	if _, ok := met["hud"]; ok {
		t.Error("hud journaled although it never changed")
	}
}

func TestEngine_SeekAndCondition(t *testing.T) {
	e, clock := newTestEngine(t, "")
	loadDashboard(t, e)

	if err := e.Seek("hud", 5*time.Second); err != nil {
		t.Fatal(err)
	}
	step(e, clock)
	if pos := stateOf(t, e, "hud").Position; pos >= time.Second {
		t.Errorf("hud position = %v, want looped main", pos)
	}

	if err := e.Seek("ghost", 0); !errors.Is(err, types.ErrElementNotFound) {
		t.Errorf("Seek(ghost) error = %v", err)
	}
	err := e.Condition("fuel", func(c display.Condition) error {
		if _, ok := c.(*display.Static); !ok {
			t.Errorf("fuel condition = %T", c)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestEngine_DataModels(t *testing.T) {
	e, _ := newTestEngine(t, "")

	if err := e.PublishDataModel(builtin.ClockID, map[string]any{"hour": 3}, nil); err == nil {
		t.Error("extension replaced a built-in model")
	}
	if err := e.PublishDataModel(types.DataModelID{ExtensionID: "racing"}, nil, nil); err == nil {
		t.Error("published a model without key")
	}
	if _, err := e.TriggerEvent(carID, "lap_completed", nil); !errors.Is(err, types.ErrDataModelNotFound) {
		t.Errorf("TriggerEvent() unknown model error = %v", err)
	}
	if err := e.PublishDataModel(carID, map[string]any{"fuel": 1}, []string{"lap_completed"}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.TriggerEvent(carID, "pit_stop", nil); !errors.Is(err, types.ErrEventNotFound) {
		t.Errorf("TriggerEvent() unknown event error = %v", err)
	}

	catalog := e.Describe()
	var ids []string
	for _, m := range catalog.DataModels {
		ids = append(ids, m.ID.String())
	}
	want := []string{"builtin/schedule", "builtin/time", "racing/car"}
	if len(ids) != len(want) {
		t.Fatalf("Describe() models = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("model %d = %s, want %s", i, ids[i], want[i])
		}
	}
	if len(catalog.Operators) == 0 || len(catalog.Languages) != 3 {
		t.Errorf("Describe() operators = %d languages = %v", len(catalog.Operators), catalog.Languages)
	}

	if n := e.RemoveExtension("racing"); n != 1 {
		t.Errorf("RemoveExtension() = %d, want 1", n)
	}
	if err := e.RemoveDataModel(carID); !errors.Is(err, types.ErrDataModelNotFound) {
		t.Errorf("RemoveDataModel() after RemoveExtension error = %v", err)
	}
}

func TestEngine_Run(t *testing.T) {
	e, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if err := e.Run(context.Background(), 0); err == nil {
		t.Error("Run() accepted rate 0")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := e.Run(ctx, 200); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if e.Ticks() == 0 {
		t.Error("Run() never ticked")
	}
}

func TestEngine_UntypedPublicationsKeepOperators(t *testing.T) {
	e, clock := newTestEngine(t, "")
	doc, err := profile.Decode([]byte(evenLaps), profile.FormatJSON)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := e.LoadProfile(context.Background(), doc); err != nil {
		t.Fatalf("LoadProfile() error = %v", err)
	}

	steps := []struct {
		laps any
		want bool
	}{
		{[]any{}, true},
		{[]any{2, 4}, true},
		{[]any{1, 2}, false},
		{nil, false},
		{[]any{}, true},
		{[]any{6}, true},
	}
	for i, s := range steps {
		if err := e.PublishDataModel(carID, map[string]any{"laps": s.laps}, nil); err != nil {
			t.Fatalf("step %d: PublishDataModel() error = %v", i, err)
		}
		step(e, clock)
		if got := stateOf(t, e, "even").Met; got != s.want {
			t.Errorf("step %d: laps %v met = %v, want %v", i, s.laps, got, s.want)
		}
	}

	saved, _ := e.Profile().Element("even")
	list := saved.Condition.Condition.Children[0]
	pred := list.Children[0].Children[0]
	if pred.Operator == nil || pred.Operator.Type != "divisible-by" {
		t.Errorf("saved operator = %v, want divisible-by", pred.Operator)
	}
	if pred.RightValue == nil || string(pred.RightValue.Value) != "2" {
		t.Errorf("saved right value = %+v, want 2", pred.RightValue)
	}
}
