package builtin

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/solatis/lumen/internal/conditions"
	"github.com/solatis/lumen/internal/types"
)

var friday = time.Date(2026, 3, 6, 21, 45, 30, 0, time.UTC)

func TestClock_Properties(t *testing.T) {
	c := NewClock(friday)
	obj, _ := types.ObjectValue(c.Schema(), c.Data()).AsObject()

	tests := []struct {
		prop string
		want types.Value
	}{
		{"hour", types.Int(21)},
		{"minute", types.Int(45)},
		{"second", types.Int(30)},
		{"weekday", types.Enum("Friday")},
		{"day", types.Int(6)},
		{"month", types.Int(3)},
		{"year", types.Int(2026)},
		{"unix", types.Int(friday.Unix())},
	}
	for _, tt := range tests {
		t.Run(tt.prop, func(t *testing.T) {
			got, ok := obj.Get(tt.prop)
			if !ok {
				t.Fatalf("property %q missing", tt.prop)
			}
			if got.Kind() != tt.want.Kind() || !got.Equal(tt.want) {
				t.Errorf("%s = %v, want %v", tt.prop, got, tt.want)
			}
		})
	}

	c.Set(friday.Add(time.Hour))
	if got, _ := obj.Get("hour"); !got.Equal(types.Int(21)) {
		t.Errorf("captured object changed to %v", got)
	}
	obj, _ = types.ObjectValue(c.Schema(), c.Data()).AsObject()
	if got, _ := obj.Get("hour"); !got.Equal(types.Int(22)) {
		t.Errorf("hour after Set = %v, want 22", got)
	}
}

func TestSchedule_Poll(t *testing.T) {
	s := NewSchedule()
	if _, err := s.Add("quarter", "*/15 * * * *", friday); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := s.Add("tick", "*/10 * * * * *", friday); err != nil {
		t.Fatalf("Add(seconds) error = %v", err)
	}

	next, _ := s.Next("quarter")
	if want := time.Date(2026, 3, 6, 22, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("Next(quarter) = %v, want %v", next, want)
	}

	if got := s.Poll(friday.Add(5 * time.Second)); len(got) != 0 {
		t.Errorf("Poll() before any activation = %v", got)
	}
	if got := s.Poll(friday.Add(10 * time.Second)); !reflect.DeepEqual(got, []string{"tick"}) {
		t.Errorf("Poll(+10s) = %v, want [tick]", got)
	}
	// missed activations collapse into one firing
	if got := s.Poll(friday.Add(20 * time.Minute)); !reflect.DeepEqual(got, []string{"quarter", "tick"}) {
		t.Errorf("Poll(+20m) = %v, want [quarter tick]", got)
	}

	obj, _ := types.ObjectValue(s.Schema(), s.Data()).AsObject()
	v, _ := obj.Get("tick")
	ev, ok := v.AsEvent()
	if !ok {
		t.Fatalf("tick = %v, want event", v)
	}
	if ev.TriggerCount() != 2 || !ev.LastTrigger().Equal(friday.Add(20*time.Minute)) {
		t.Errorf("tick count = %d last = %v", ev.TriggerCount(), ev.LastTrigger())
	}
}

func TestSchedule_AddRemove(t *testing.T) {
	s := NewSchedule()
	changed, err := s.Add("nightly", "@daily", friday)
	if err != nil || !changed {
		t.Fatalf("Add() = %v, %v", changed, err)
	}
	if changed, _ := s.Add("nightly", "@hourly", friday); changed {
		t.Error("replacing an entry changed the schema")
	}
	if got := s.Entries()["nightly"]; got != "@hourly" {
		t.Errorf("Entries()[nightly] = %q", got)
	}
	if _, err := s.Add("broken", "every tuesday", friday); err == nil {
		t.Error("Add() accepted an invalid expression")
	}
	if _, err := s.Add("", "@daily", friday); err == nil {
		t.Error("Add() accepted an empty name")
	}
	if !s.Remove("nightly") || s.Remove("nightly") {
		t.Error("Remove() did not report the change exactly once")
	}
	if s.Schema().Len() != 0 {
		t.Errorf("schema has %d properties after removal", s.Schema().Len())
	}
}

func TestParseCron(t *testing.T) {
	for _, spec := range []string{"0 9 * * MON-FRI", "*/5 * * * * *", "@every 90s"} {
		if err := ParseCron(spec); err != nil {
			t.Errorf("ParseCron(%q) error = %v", spec, err)
		}
	}
	if err := ParseCron("61 * * * *"); err == nil {
		t.Error("ParseCron() accepted minute 61")
	}
}

// Conditions see the clock and schedules through the registries.
func TestExtension_DrivesConditions(t *testing.T) {
	now := friday
	env := conditions.NewEnv(nil)
	env.Clock = func() time.Time { return now }

	ext, err := Register(env.Operators, env.DataModels, map[string]string{"top_of_hour": "0 * * * *"}, now, nil)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	env.Dispatch()

	g := conditions.NewGroup(env, conditions.And)
	p := g.AddPredicate(conditions.Static)
	if err := p.UpdateLeftSide(ClockID, "weekday"); err != nil {
		t.Fatal(err)
	}
	eq, _ := env.Operators.Find(types.BuiltinExtensionID, "equals")
	if err := p.UpdateOperator(eq); err != nil {
		t.Fatal(err)
	}
	if err := p.UpdateRightSideStatic(types.String("Friday")); err != nil {
		t.Fatal(err)
	}
	ev := g.AddEvent()
	if err := ev.UpdatePath(ScheduleID, "top_of_hour"); err != nil {
		t.Fatal(err)
	}

	if got, _ := g.Evaluate(); got {
		t.Error("Evaluate() = true before the hour")
	}

	now = friday.Add(15 * time.Minute)
	ext.Tick(now)
	if got, _ := g.Evaluate(); !got {
		t.Error("Evaluate() = false after the schedule fired on a Friday")
	}

	now = now.Add(24 * time.Hour)
	ext.Tick(now)
	if got, _ := g.Evaluate(); got {
		t.Error("Evaluate() = true on a Saturday")
	}

	if err := ext.AddSchedule("lunch", "0 12 * * *", now); err != nil {
		t.Fatal(err)
	}
	if err := ext.RemoveSchedule("top_of_hour"); err != nil {
		t.Fatal(err)
	}
	if err := ext.RemoveSchedule("top_of_hour"); !errors.Is(err, types.ErrEventNotFound) {
		t.Errorf("RemoveSchedule() twice error = %v", err)
	}
	env.Dispatch()
	if ev.Path().Valid() {
		t.Error("event path still valid after its schedule was removed")
	}

	ext.Unregister()
	env.Dispatch()
	if p.LeftPath().Valid() {
		t.Error("clock path still valid after Unregister")
	}
}

func TestRegister_RejectsBadSchedules(t *testing.T) {
	env := conditions.NewEnv(nil)
	if _, err := Register(env.Operators, env.DataModels, map[string]string{"x": "not cron"}, friday, nil); err == nil {
		t.Fatal("Register() accepted an invalid schedule")
	}
	if _, ok := env.DataModels.Get(ClockID); ok {
		t.Error("clock registered despite the error")
	}
}
