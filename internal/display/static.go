// internal/display/static.go
package display

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/lumen/internal/conditions"
	"github.com/solatis/lumen/internal/scripting"
	"github.com/solatis/lumen/internal/timeline"
	"github.com/solatis/lumen/internal/types"
)

/*
 * Static condition root.
 *
 * Met while its boolean script or node tree holds; an empty script is
 * always met. Script failures are logged and count as not met.
 *
 * Timeline policy:
 *   - false -> true with a finished timeline: restart from the beginning
 *   - true -> false with stop mode skip-to-end: jump to the end segment
 *   - Repeat loops the main segment while met, Once plays through
 */

// PlayMode selects how a Static root plays while met.
type PlayMode int

const (
	// Repeat loops the main segment while the condition is met.
	Repeat PlayMode = iota
	// Once plays the timeline through once per transition to met.
	Once
)

// String implements fmt.Stringer.
func (m PlayMode) String() string {
	if m == Once {
		return "once"
	}
	return "repeat"
}

// ParsePlayMode parses a persisted play mode. Empty means Repeat.
func ParsePlayMode(s string) (PlayMode, error) {
	switch s {
	case "", "repeat":
		return Repeat, nil
	case "once":
		return Once, nil
	default:
		return Repeat, fmt.Errorf("play mode %q: %w", s, types.ErrInvalidEntity)
	}
}

// Static is met while a script or node tree evaluates true.
type Static struct {
	env      *Env
	tl       timeline.Timeline
	playMode PlayMode
	script   scripting.Script
	tree     *conditions.Group

	isMet    bool
	disposed bool
}

// NewStatic creates a Static root with an empty script. It reports not met
// until the first Update.
func NewStatic(env *Env, tl timeline.Timeline) *Static {
	return &Static{env: env, tl: tl}
}

func loadStatic(env *Env, e ConditionEntity, tl timeline.Timeline) (Condition, error) {
	if e.Script != nil && e.Condition != nil {
		return nil, fmt.Errorf("static condition with script and tree: %w", types.ErrInvalidEntity)
	}
	mode, err := ParsePlayMode(e.PlayMode)
	if err != nil {
		return nil, err
	}
	s := NewStatic(env, tl)
	s.playMode = mode

	switch {
	case e.Condition != nil:
		tree, err := conditions.LoadGroup(env.Env, *e.Condition)
		if err != nil {
			return nil, err
		}
		s.tree = tree
	case e.Script != nil:
		if errors.Is(s.SetScript(*e.Script), types.ErrScriptTooLong) {
			return nil, fmt.Errorf("static script: %w", types.ErrScriptTooLong)
		}
	}
	return s, nil
}

// PlayMode returns the play mode.
func (s *Static) PlayMode() PlayMode { return s.playMode }

// SetPlayMode changes the play mode.
func (s *Static) SetPlayMode(m PlayMode) { s.playMode = m }

// Script returns the script, empty when a node tree is used.
func (s *Static) Script() scripting.Script { return s.script }

// SetScript replaces the condition with script and disposes any node
// tree. A script that does not compile is kept and logged; it evaluates
// as not met.
func (s *Static) SetScript(script scripting.Script) error {
	if s.disposed {
		return types.ErrDisposed
	}
	if len(script.Source) > types.MaxScriptLength {
		return types.ErrScriptTooLong
	}
	if s.tree != nil {
		s.tree.Dispose()
		s.tree = nil
	}
	s.script = script
	if s.env != nil && s.env.Scripts != nil {
		if err := s.env.Scripts.Check(script); err != nil {
			s.env.log().Warn("static script does not compile",
				"language", script.Language, "error", err)
			return err
		}
	}
	return nil
}

// Tree returns the node tree, creating an empty And group (and clearing
// the script) if the root is script driven.
func (s *Static) Tree() *conditions.Group {
	if s.tree == nil {
		s.script = scripting.Script{}
		s.tree = conditions.NewGroup(s.env.Env, conditions.And)
	}
	return s.tree
}

// IsMet implements Condition.
func (s *Static) IsMet() bool { return s.isMet }

// Update implements Condition.
func (s *Static) Update(ctx context.Context) error {
	if s.disposed {
		return types.ErrDisposed
	}
	if s.tree != nil {
		met, err := s.tree.Evaluate()
		if err != nil {
			return err
		}
		s.isMet = met
		return nil
	}
	if s.script.IsEmpty() {
		s.isMet = true
		return nil
	}

	if s.env == nil || s.env.Env == nil || s.env.Scripts == nil {
		s.env.log().WarnContext(ctx, "static script has no script engines",
			"language", s.script.Language)
		s.isMet = false
		return nil
	}
	met, err := s.env.Scripts.EvaluateBool(ctx, s.script, scripting.Document(s.env.DataModels.List()))
	if err != nil {
		s.env.log().WarnContext(ctx, "static script failed",
			"language", s.script.Language, "error", err)
		met = false
	}
	s.isMet = met
	return nil
}

func (s *Static) stickToMain() bool {
	return s.isMet && s.playMode == Repeat
}

// UpdateTimeline implements Condition.
func (s *Static) UpdateTimeline(delta time.Duration) {
	if s.tl != nil {
		s.tl.Update(delta, s.stickToMain())
	}
}

// OverrideTimeline implements Condition.
func (s *Static) OverrideTimeline(position time.Duration) {
	if s.tl != nil {
		s.tl.Override(position, s.stickToMain())
	}
}

// ApplyToTimeline implements Condition.
func (s *Static) ApplyToTimeline(isMet, wasMet bool, tl timeline.Timeline) {
	switch {
	case isMet && !wasMet && tl.IsFinished():
		tl.JumpToStart()
	case !isMet && wasMet && tl.StopMode() == timeline.SkipToEnd:
		tl.JumpToEndSegment()
	}
}

// Save implements Condition.
func (s *Static) Save() ConditionEntity {
	e := ConditionEntity{Kind: KindStatic, PlayMode: s.playMode.String()}
	switch {
	case s.tree != nil:
		tree := s.tree.Save()
		e.Condition = &tree
	case !s.script.IsEmpty():
		script := s.script
		e.Script = &script
	}
	return e
}

// Dispose implements Condition.
func (s *Static) Dispose() {
	if s.disposed {
		return
	}
	if s.tree != nil {
		s.tree.Dispose()
	}
	s.disposed = true
}
