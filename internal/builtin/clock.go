// internal/builtin/clock.go
package builtin

import (
	"sync/atomic"
	"time"

	"github.com/solatis/lumen/internal/types"
)

// ClockID identifies the wall clock data model.
var ClockID = types.DataModelID{ExtensionID: types.BuiltinExtensionID, Key: "time"}

// WeekdayType is the enum of days, Sunday first as in time.Weekday.
var WeekdayType = types.EnumOf("Weekday",
	"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday")

// Clock exposes the local wall clock as of the last Set.
type Clock struct {
	now    atomic.Pointer[time.Time]
	schema *types.Schema
}

// NewClock creates a clock showing now.
func NewClock(now time.Time) *Clock {
	c := &Clock{schema: clockSchema()}
	c.Set(now)
	return c
}

func clockSchema() *types.Schema {
	field := func(name string, t types.Type, desc string, get func(time.Time) types.Value) types.Property {
		return types.Property{Name: name, Type: t, Description: desc, Get: func(data any) types.Value {
			now, ok := data.(time.Time)
			if !ok {
				return types.None()
			}
			return get(now)
		}}
	}
	return types.NewSchema("Time",
		field("hour", types.IntType, "Hour of day, 0-23", func(t time.Time) types.Value { return types.Int(int64(t.Hour())) }),
		field("minute", types.IntType, "Minute, 0-59", func(t time.Time) types.Value { return types.Int(int64(t.Minute())) }),
		field("second", types.IntType, "Second, 0-59", func(t time.Time) types.Value { return types.Int(int64(t.Second())) }),
		field("weekday", WeekdayType, "Day of the week", func(t time.Time) types.Value { return types.Enum(t.Weekday().String()) }),
		field("day", types.IntType, "Day of the month", func(t time.Time) types.Value { return types.Int(int64(t.Day())) }),
		field("month", types.IntType, "Month, 1-12", func(t time.Time) types.Value { return types.Int(int64(t.Month())) }),
		field("year", types.IntType, "Year", func(t time.Time) types.Value { return types.Int(int64(t.Year())) }),
		field("unix", types.IntType, "Seconds since the Unix epoch", func(t time.Time) types.Value { return types.Int(t.Unix()) }),
	)
}

// Set moves the clock to now.
func (c *Clock) Set(now time.Time) { c.now.Store(&now) }

// ID implements datamodel.DataModel.
func (c *Clock) ID() types.DataModelID { return ClockID }

// Schema implements datamodel.DataModel.
func (c *Clock) Schema() *types.Schema { return c.schema }

// Data implements datamodel.DataModel.
func (c *Clock) Data() any { return *c.now.Load() }
