// Package engine hosts the render elements of the active profile and runs
// the update loop that evaluates their conditions and advances their
// timelines.
//
// One goroutine calls Tick. Profile changes and Tick serialize on the
// engine mutex; data model publications from extensions go through the
// thread-safe registries and reach the condition trees at the start of the
// next tick.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/solatis/lumen/internal/builtin"
	"github.com/solatis/lumen/internal/conditions"
	"github.com/solatis/lumen/internal/datamodel"
	"github.com/solatis/lumen/internal/display"
	"github.com/solatis/lumen/internal/logging"
	"github.com/solatis/lumen/internal/profile"
	"github.com/solatis/lumen/internal/scripting"
	"github.com/solatis/lumen/internal/timeline"
	"github.com/solatis/lumen/internal/types"
)

// Options configures an Engine.
type Options struct {
	Logger *slog.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
	// Schedules maps built-in schedule event names to cron expressions.
	Schedules map[string]string
	// JournalDir receives the transition journal. Empty disables it.
	JournalDir string
}

// ElementState is the observable state of one element after a tick.
type ElementState struct {
	ID        types.ElementID `json:"id"`
	Name      string          `json:"name,omitempty"`
	ParentID  types.ElementID `json:"parent_id,omitempty"`
	Met       bool            `json:"met"`
	Position  time.Duration   `json:"position"`
	Finished  bool            `json:"finished"`
	ExtraRuns int             `json:"extra_runs,omitempty"`
}

type element struct {
	entity profile.ElementEntity
	parent *element
	tl     *timeline.Segmented
	cond   display.Condition
	ctx    context.Context
}

// IsMet implements display.Parent.
func (e *element) IsMet() bool { return e.cond.IsMet() }

func (e *element) state() ElementState {
	return ElementState{
		ID:        e.entity.ID,
		Name:      e.entity.Name,
		ParentID:  e.entity.ParentID,
		Met:       e.cond.IsMet(),
		Position:  e.tl.Position(),
		Finished:  e.tl.IsFinished(),
		ExtraRuns: len(e.tl.ExtraRuns()),
	}
}

// Engine owns the registries, the built-in extension and the elements of
// the loaded profile.
type Engine struct {
	env     *display.Env
	builtin *builtin.Extension
	clock   func() time.Time
	logger  *slog.Logger
	journal *Journal

	mu       sync.Mutex
	profile  *profile.Document
	elements []*element // parents first
	byID     map[types.ElementID]*element
	ticks    uint64

	statesMu sync.RWMutex
	states   []ElementState

	pluginsMu sync.Mutex
	plugins   map[types.DataModelID]*datamodel.Dynamic
}

// New creates an engine with the built-in extension registered.
func New(opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	scripts, err := scripting.NewSet()
	if err != nil {
		return nil, fmt.Errorf("script engines: %w", err)
	}
	cenv := conditions.NewEnv(logger)
	cenv.Clock = clock

	ext, err := builtin.Register(cenv.Operators, cenv.DataModels, opts.Schedules, clock(), logger)
	if err != nil {
		return nil, err
	}
	cenv.Dispatch()

	e := &Engine{
		env:     &display.Env{Env: cenv, Scripts: scripts},
		builtin: ext,
		clock:   clock,
		logger:  logger,
		byID:    map[types.ElementID]*element{},
		plugins: map[types.DataModelID]*datamodel.Dynamic{},
	}
	if opts.JournalDir != "" {
		e.journal = NewJournal(opts.JournalDir, logger)
	}
	return e, nil
}

// Env returns the condition environment, for editors building trees.
func (e *Engine) Env() *display.Env { return e.env }

// Builtin returns the built-in extension.
func (e *Engine) Builtin() *builtin.Extension { return e.builtin }

// LoadProfile replaces the loaded elements with those of doc. On error the
// previous profile stays loaded.
func (e *Engine) LoadProfile(ctx context.Context, doc *profile.Document) error {
	ordered, err := doc.Ordered()
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ctx = logging.WithProfile(ctx, doc.Name)
	elements := make([]*element, 0, len(ordered))
	byID := make(map[types.ElementID]*element, len(ordered))
	fail := func(err error) error {
		for _, el := range elements {
			el.cond.Dispose()
		}
		return err
	}

	for _, ent := range ordered {
		tl, err := ent.Timeline.Build()
		if err != nil {
			return fail(fmt.Errorf("element %s timeline: %w", ent.ID, err))
		}
		el := &element{entity: ent, tl: tl, ctx: logging.WithElement(ctx, string(ent.ID))}

		var parent display.Parent
		if ent.ParentID != "" {
			el.parent = byID[ent.ParentID]
			parent = el.parent
		}
		el.cond, err = display.Load(e.env, ent.Condition, parent, tl)
		if err != nil {
			return fail(fmt.Errorf("element %s condition: %w", ent.ID, err))
		}
		elements = append(elements, el)
		byID[ent.ID] = el
	}

	e.unloadLocked()
	e.profile = doc
	e.elements = elements
	e.byID = byID
	e.publishStates()
	e.logger.InfoContext(ctx, "profile loaded", "elements", len(elements))
	return nil
}

// UnloadProfile disposes every element.
func (e *Engine) UnloadProfile() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unloadLocked()
	e.publishStates()
}

func (e *Engine) unloadLocked() {
	for _, el := range e.elements {
		el.cond.Dispose()
	}
	if e.profile != nil {
		e.logger.Info("profile unloaded", "profile", e.profile.Name)
	}
	e.profile = nil
	e.elements = nil
	e.byID = map[types.ElementID]*element{}
}

// Profile returns the loaded profile with the current persistent state of
// every element (toggles, edited trees). Nil when nothing is loaded.
func (e *Engine) Profile() *profile.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.profile == nil {
		return nil
	}
	doc := &profile.Document{Version: e.profile.Version, Name: e.profile.Name}
	for _, el := range e.elements {
		ent := el.entity
		ent.Timeline = el.tl.Save()
		ent.Condition = el.cond.Save()
		doc.Elements = append(doc.Elements, ent)
	}
	return doc
}

// Condition runs fn with the condition of element id while holding the
// engine lock, so edits do not race with Tick.
func (e *Engine) Condition(id types.ElementID, fn func(display.Condition) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	el, ok := e.byID[id]
	if !ok {
		return fmt.Errorf("element %s: %w", id, types.ErrElementNotFound)
	}
	return fn(el.cond)
}

// Seek moves the timeline of element id, as an editor preview does.
func (e *Engine) Seek(id types.ElementID, position time.Duration) error {
	return e.Condition(id, func(c display.Condition) error {
		c.OverrideTimeline(position)
		return nil
	})
}

// Tick runs one update: fires built-in schedules, delivers registry
// changes, then per element (parents first) re-evaluates the condition,
// applies the timeline policy and advances the timeline by delta.
func (e *Engine) Tick(ctx context.Context, delta time.Duration) {
	now := e.clock()
	e.builtin.Tick(now)

	e.mu.Lock()
	defer e.mu.Unlock()

	if n := e.env.Dispatch(); n > 0 {
		e.logger.DebugContext(ctx, "registry changes delivered", "notifications", n)
	}
	for _, el := range e.elements {
		wasMet := el.cond.IsMet()
		if err := el.cond.Update(el.ctx); err != nil {
			e.logger.ErrorContext(el.ctx, "condition update failed", "error", err)
			continue
		}
		isMet := el.cond.IsMet()
		el.cond.ApplyToTimeline(isMet, wasMet, el.tl)
		el.cond.UpdateTimeline(delta)

		if isMet != wasMet {
			e.logger.InfoContext(el.ctx, "element transition", "met", isMet)
			if e.journal != nil {
				e.journal.Record(Transition{
					Time:      now,
					Profile:   e.profile.Name,
					ElementID: el.entity.ID,
					Name:      el.entity.Name,
					Met:       isMet,
				})
			}
		}
	}
	e.ticks++
	e.publishStates()
}

// Ticks returns the number of completed ticks.
func (e *Engine) Ticks() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ticks
}

// Run ticks rate times per second until ctx is done.
func (e *Engine) Run(ctx context.Context, rate int) error {
	if rate <= 0 {
		return fmt.Errorf("tick rate must be positive, got %d", rate)
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	last := e.clock()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now := e.clock()
			e.Tick(ctx, now.Sub(last))
			last = now
		}
	}
}

// States returns the element states after the last tick, parents first.
func (e *Engine) States() []ElementState {
	e.statesMu.RLock()
	defer e.statesMu.RUnlock()
	out := make([]ElementState, len(e.states))
	copy(out, e.states)
	return out
}

// publishStates snapshots element states. Caller holds mu.
func (e *Engine) publishStates() {
	states := make([]ElementState, len(e.elements))
	for i, el := range e.elements {
		states[i] = el.state()
	}
	e.statesMu.Lock()
	e.states = states
	e.statesMu.Unlock()
}

// Close unloads the profile, removes the built-in models and closes the
// journal.
func (e *Engine) Close() error {
	e.UnloadProfile()
	e.builtin.Unregister()
	if e.journal != nil {
		return e.journal.Close()
	}
	return nil
}
