// internal/display/events.go
package display

import (
	"context"
	"fmt"
	"time"

	"github.com/solatis/lumen/internal/conditions"
	"github.com/solatis/lumen/internal/timeline"
	"github.com/solatis/lumen/internal/types"
)

/*
 * Events condition root.
 *
 * Owns independent event nodes. Every node is evaluated on each update so
 * that each consumes its own trigger; the root is met when any of them
 * fired (Play) or flips a persisted toggle when any fired (Toggle).
 *
 * Timeline policy in Play mode, when an event fired:
 *   - finished timeline: restart
 *   - Restart: restart the running timeline
 *   - Copy: start an extra concurrent run
 *   - Ignore: keep playing
 * In Toggle mode the timeline restarts on the off -> on edge, loops its
 * main segment while on and honours skip-to-end on the on -> off edge.
 */

// OverlapMode selects what a trigger does while the timeline still plays.
type OverlapMode int

const (
	Restart OverlapMode = iota
	Copy
	Ignore
)

var overlapModeNames = [...]string{Restart: "restart", Copy: "copy", Ignore: "ignore"}

// String implements fmt.Stringer.
func (m OverlapMode) String() string {
	if m < 0 || int(m) >= len(overlapModeNames) {
		return "unknown"
	}
	return overlapModeNames[m]
}

// ParseOverlapMode parses a persisted overlap mode. Empty means Restart.
func ParseOverlapMode(s string) (OverlapMode, error) {
	if s == "" {
		return Restart, nil
	}
	for i, name := range overlapModeNames {
		if name == s {
			return OverlapMode(i), nil
		}
	}
	return Restart, fmt.Errorf("overlap mode %q: %w", s, types.ErrInvalidEntity)
}

// TriggerMode selects whether a trigger plays the timeline or toggles it.
type TriggerMode int

const (
	Play TriggerMode = iota
	Toggle
)

// String implements fmt.Stringer.
func (m TriggerMode) String() string {
	if m == Toggle {
		return "toggle"
	}
	return "play"
}

// ParseTriggerMode parses a persisted trigger mode. Empty means Play.
func ParseTriggerMode(s string) (TriggerMode, error) {
	switch s {
	case "", "play":
		return Play, nil
	case "toggle":
		return Toggle, nil
	default:
		return Play, fmt.Errorf("trigger mode %q: %w", s, types.ErrInvalidEntity)
	}
}

// Events is met when one of its event nodes fired.
type Events struct {
	env     *Env
	tl      timeline.Timeline
	events  []*conditions.Event
	overlap OverlapMode
	trigger TriggerMode
	toggled bool

	isMet    bool
	disposed bool
}

// NewEvents creates an Events root without event nodes.
func NewEvents(env *Env, tl timeline.Timeline) *Events {
	return &Events{env: env, tl: tl}
}

func loadEvents(env *Env, e ConditionEntity, tl timeline.Timeline) (Condition, error) {
	overlap, err := ParseOverlapMode(e.OverlapMode)
	if err != nil {
		return nil, err
	}
	trigger, err := ParseTriggerMode(e.TriggerMode)
	if err != nil {
		return nil, err
	}
	c := NewEvents(env, tl)
	c.overlap = overlap
	c.trigger = trigger
	c.toggled = e.Toggled && trigger == Toggle
	c.isMet = c.toggled

	for i, ne := range e.Events {
		ev, err := conditions.LoadEvent(env.Env, ne)
		if err != nil {
			c.Dispose()
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		c.events = append(c.events, ev)
	}
	return c, nil
}

// OverlapMode returns the overlap mode.
func (c *Events) OverlapMode() OverlapMode { return c.overlap }

// SetOverlapMode changes the overlap mode.
func (c *Events) SetOverlapMode(m OverlapMode) { c.overlap = m }

// TriggerMode returns the trigger mode.
func (c *Events) TriggerMode() TriggerMode { return c.trigger }

// SetTriggerMode changes the trigger mode and resets the toggle.
func (c *Events) SetTriggerMode(m TriggerMode) {
	c.trigger = m
	c.toggled = false
}

// Toggled returns the toggle state.
func (c *Events) Toggled() bool { return c.toggled }

// Events returns the event nodes.
func (c *Events) Events() []*conditions.Event {
	out := make([]*conditions.Event, len(c.events))
	copy(out, c.events)
	return out
}

// AddEvent appends a new event node.
func (c *Events) AddEvent() *conditions.Event {
	ev := conditions.NewEvent(c.env.Env)
	c.events = append(c.events, ev)
	return ev
}

// RemoveEvent disposes and removes ev. Returns false if ev is not owned.
func (c *Events) RemoveEvent(ev *conditions.Event) bool {
	for i, cur := range c.events {
		if cur == ev {
			c.events = append(c.events[:i], c.events[i+1:]...)
			ev.Dispose()
			return true
		}
	}
	return false
}

// IsMet implements Condition.
func (c *Events) IsMet() bool { return c.isMet }

// Update implements Condition.
func (c *Events) Update(context.Context) error {
	if c.disposed {
		return types.ErrDisposed
	}
	fired := false
	for _, ev := range c.events {
		r, err := ev.Evaluate()
		if err != nil {
			return err
		}
		fired = fired || r
	}

	if c.trigger == Toggle {
		if fired {
			c.toggled = !c.toggled
		}
		c.isMet = c.toggled
		return nil
	}
	c.isMet = fired
	return nil
}

func (c *Events) stickToMain() bool {
	return c.trigger == Toggle && c.isMet
}

// UpdateTimeline implements Condition.
func (c *Events) UpdateTimeline(delta time.Duration) {
	if c.tl != nil {
		c.tl.Update(delta, c.stickToMain())
	}
}

// OverrideTimeline implements Condition.
func (c *Events) OverrideTimeline(position time.Duration) {
	if c.tl != nil {
		c.tl.Override(position, c.stickToMain())
	}
}

// ApplyToTimeline implements Condition.
func (c *Events) ApplyToTimeline(isMet, wasMet bool, tl timeline.Timeline) {
	if c.trigger == Toggle {
		switch {
		case isMet && !wasMet:
			tl.JumpToStart()
		case !isMet && wasMet && tl.StopMode() == timeline.SkipToEnd:
			tl.JumpToEndSegment()
		}
		return
	}

	if !isMet {
		return
	}
	if tl.IsFinished() {
		tl.JumpToStart()
		return
	}
	switch c.overlap {
	case Restart:
		tl.JumpToStart()
	case Copy:
		tl.AddExtraTimeline()
	case Ignore:
	}
}

// Save implements Condition.
func (c *Events) Save() ConditionEntity {
	e := ConditionEntity{
		Kind:        KindEvents,
		OverlapMode: c.overlap.String(),
		TriggerMode: c.trigger.String(),
		Toggled:     c.toggled,
	}
	for _, ev := range c.events {
		e.Events = append(e.Events, ev.Save())
	}
	return e
}

// Dispose implements Condition.
func (c *Events) Dispose() {
	if c.disposed {
		return
	}
	for _, ev := range c.events {
		ev.Dispose()
	}
	c.disposed = true
}
