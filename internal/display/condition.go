// Package display implements the condition roots of render elements: the
// strategies that decide whether an element is shown and how its timeline
// plays.
//
// Every root is updated once per tick from the update goroutine: Update
// computes IsMet, the owning element calls ApplyToTimeline with the
// previous and current result, then UpdateTimeline advances playback.
package display

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/solatis/lumen/internal/conditions"
	"github.com/solatis/lumen/internal/scripting"
	"github.com/solatis/lumen/internal/timeline"
	"github.com/solatis/lumen/internal/types"
)

// Condition is the contract shared by all condition roots.
type Condition interface {
	// IsMet returns the result of the last Update.
	IsMet() bool
	// Update re-evaluates the condition. Returns types.ErrDisposed after
	// Dispose; evaluation problems make the condition not met instead.
	Update(ctx context.Context) error
	// UpdateTimeline advances the element's timeline by delta.
	UpdateTimeline(delta time.Duration)
	// OverrideTimeline seeks the element's timeline, as an editor preview does.
	OverrideTimeline(position time.Duration)
	// ApplyToTimeline reacts to the transition from wasMet to isMet.
	ApplyToTimeline(isMet, wasMet bool, tl timeline.Timeline)
	// Save converts the condition into its persistent form.
	Save() ConditionEntity
	// Dispose releases the condition's node trees.
	Dispose()
}

// Parent is the condition state of an enclosing element.
type Parent interface {
	IsMet() bool
}

// Env bundles what condition roots need beyond the node environment.
type Env struct {
	*conditions.Env
	Scripts *scripting.Set
}

func (e *Env) log() *slog.Logger {
	if e == nil || e.Env == nil || e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

// Kind discriminates ConditionEntity.
type Kind string

const (
	KindAlwaysOn Kind = "always-on"
	KindPlayOnce Kind = "play-once"
	KindStatic   Kind = "static"
	KindEvents   Kind = "events"
)

// ConditionEntity is the persistent form of a condition root. Kind selects
// which fields apply.
type ConditionEntity struct {
	Kind Kind `json:"kind"`

	// static
	PlayMode  string                 `json:"play_mode,omitempty"`
	Script    *scripting.Script      `json:"script,omitempty"`
	Condition *conditions.NodeEntity `json:"condition,omitempty"`

	// events
	OverlapMode string                  `json:"overlap_mode,omitempty"`
	TriggerMode string                  `json:"trigger_mode,omitempty"`
	Toggled     bool                    `json:"toggled,omitempty"`
	Events      []conditions.NodeEntity `json:"events,omitempty"`
}

// Load rebuilds a condition root for an element whose timeline is tl.
// parent is the enclosing element's condition, nil at the root. An empty
// kind loads as AlwaysOn.
func Load(env *Env, e ConditionEntity, parent Parent, tl timeline.Timeline) (Condition, error) {
	switch e.Kind {
	case "", KindAlwaysOn:
		return NewAlwaysOn(parent, tl), nil
	case KindPlayOnce:
		return NewPlayOnce(parent, tl), nil
	case KindStatic:
		return loadStatic(env, e, tl)
	case KindEvents:
		return loadEvents(env, e, tl)
	default:
		return nil, fmt.Errorf("condition kind %q: %w", e.Kind, types.ErrInvalidEntity)
	}
}
