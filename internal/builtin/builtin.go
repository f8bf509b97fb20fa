// Package builtin provides the extension shipped with lumen: the built-in
// operators, a wall clock data model and cron scheduled events.
package builtin

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/solatis/lumen/internal/datamodel"
	"github.com/solatis/lumen/internal/operators"
	"github.com/solatis/lumen/internal/types"
)

// Extension is the registered built-in extension.
type Extension struct {
	Clock    *Clock
	Schedule *Schedule

	models *datamodel.Registry
	logger *slog.Logger
}

// Register adds the built-in operators and data models. schedules maps
// event names to cron expressions. Changes reach subscribers on the next
// Dispatch.
func Register(ops *operators.Registry, models *datamodel.Registry, schedules map[string]string, now time.Time, logger *slog.Logger) (*Extension, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := operators.RegisterBuiltins(ops); err != nil {
		return nil, fmt.Errorf("register builtin operators: %w", err)
	}

	ext := &Extension{
		Clock:    NewClock(now),
		Schedule: NewSchedule(),
		models:   models,
		logger:   logger,
	}
	var errs []error
	for name, spec := range schedules {
		if _, err := ext.Schedule.Add(name, spec, now); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if err := models.Add(ext.Clock); err != nil {
		return nil, err
	}
	if err := models.Add(ext.Schedule); err != nil {
		_ = models.Remove(ClockID)
		return nil, err
	}
	return ext, nil
}

// AddSchedule declares a scheduled event at runtime.
func (e *Extension) AddSchedule(name, spec string, now time.Time) error {
	changed, err := e.Schedule.Add(name, spec, now)
	if err != nil {
		return err
	}
	if changed {
		return e.models.Changed(ScheduleID)
	}
	return nil
}

// RemoveSchedule drops a scheduled event.
func (e *Extension) RemoveSchedule(name string) error {
	if !e.Schedule.Remove(name) {
		return fmt.Errorf("schedule %q: %w", name, types.ErrEventNotFound)
	}
	return e.models.Changed(ScheduleID)
}

// Tick advances the clock and fires due schedules. Call before evaluating
// conditions.
func (e *Extension) Tick(now time.Time) {
	e.Clock.Set(now)
	for _, name := range e.Schedule.Poll(now) {
		e.logger.Debug("schedule fired", "event", name)
	}
}

// Unregister removes the built-in data models. Operators stay registered.
func (e *Extension) Unregister() {
	_ = e.models.Remove(ClockID)
	_ = e.models.Remove(ScheduleID)
}
