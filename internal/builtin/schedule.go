// internal/builtin/schedule.go
package builtin

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/solatis/lumen/internal/datamodel"
	"github.com/solatis/lumen/internal/types"
)

/*
 * Cron driven events.
 *
 * Each named entry is an event property of the schedule model. Poll fires
 * an entry at most once per call, however many activations were missed, and
 * then moves it to the next activation after now. Expressions accept an
 * optional leading seconds field and descriptors such as @hourly.
 */

// ScheduleID identifies the schedule data model.
var ScheduleID = types.DataModelID{ExtensionID: types.BuiltinExtensionID, Key: "schedule"}

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type scheduleEntry struct {
	spec     string
	schedule cron.Schedule
	next     time.Time
	event    *datamodel.DynamicEvent
}

// Schedule is a data model whose events fire on cron expressions.
type Schedule struct {
	mu      sync.Mutex
	entries map[string]*scheduleEntry
	schema  atomic.Pointer[types.Schema]
}

// NewSchedule creates a schedule without entries.
func NewSchedule() *Schedule {
	s := &Schedule{entries: map[string]*scheduleEntry{}}
	s.rebuild()
	return s
}

// ParseCron validates a cron expression.
func ParseCron(spec string) error {
	_, err := cronParser.Parse(spec)
	return err
}

// Add declares or replaces the entry name, first firing after now.
// Returns true if the schema changed.
func (s *Schedule) Add(name, spec string, now time.Time) (bool, error) {
	if name == "" {
		return false, fmt.Errorf("schedule entry without a name")
	}
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return false, fmt.Errorf("schedule %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[name]; ok {
		cur.spec, cur.schedule, cur.next = spec, sched, sched.Next(now)
		return false, nil
	}
	s.entries[name] = &scheduleEntry{
		spec:     spec,
		schedule: sched,
		next:     sched.Next(now),
		event:    datamodel.NewDynamicEvent(nil),
	}
	s.rebuild()
	return true, nil
}

// Remove deletes the entry name. Returns true if the schema changed.
func (s *Schedule) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; !ok {
		return false
	}
	delete(s.entries, name)
	s.rebuild()
	return true
}

// Entries returns entry names mapped to their cron expressions.
func (s *Schedule) Entries() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.entries))
	for name, e := range s.entries {
		out[name] = e.spec
	}
	return out
}

// Next returns the next activation of name.
func (s *Schedule) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return time.Time{}, false
	}
	return e.next, true
}

// Poll fires every entry due at now and returns the fired names.
func (s *Schedule) Poll(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var fired []string
	for name, e := range s.entries {
		if e.next.IsZero() || now.Before(e.next) {
			continue
		}
		e.event.Trigger(now, nil)
		e.next = e.schedule.Next(now)
		fired = append(fired, name)
	}
	sort.Strings(fired)
	return fired
}

// rebuild publishes a schema with one event property per entry.
// Caller holds mu.
func (s *Schedule) rebuild() {
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	props := make([]types.Property, 0, len(names))
	for _, name := range names {
		ev := s.entries[name].event
		props = append(props, types.Property{
			Name:        name,
			Type:        types.EventOf(nil),
			Description: "Fires on " + s.entries[name].spec,
			Get:         func(any) types.Value { return types.EventValue(ev) },
		})
	}
	s.schema.Store(types.NewSchema("Schedule", props...))
}

// ID implements datamodel.DataModel.
func (s *Schedule) ID() types.DataModelID { return ScheduleID }

// Schema implements datamodel.DataModel.
func (s *Schedule) Schema() *types.Schema { return s.schema.Load() }

// Data implements datamodel.DataModel.
func (s *Schedule) Data() any { return nil }
