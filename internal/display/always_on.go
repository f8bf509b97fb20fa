package display

import (
	"context"
	"time"

	"github.com/solatis/lumen/internal/timeline"
	"github.com/solatis/lumen/internal/types"
)

// AlwaysOn mirrors the parent element and loops its timeline's main
// segment for as long as the element exists.
type AlwaysOn struct {
	mirror
}

// NewAlwaysOn creates an AlwaysOn root and starts tl.
func NewAlwaysOn(parent Parent, tl timeline.Timeline) *AlwaysOn {
	return &AlwaysOn{newMirror(parent, tl, true)}
}

// Save implements Condition.
func (c *AlwaysOn) Save() ConditionEntity { return ConditionEntity{Kind: KindAlwaysOn} }

// PlayOnce mirrors the parent element and plays its timeline through once.
type PlayOnce struct {
	mirror
}

// NewPlayOnce creates a PlayOnce root and starts tl.
func NewPlayOnce(parent Parent, tl timeline.Timeline) *PlayOnce {
	return &PlayOnce{newMirror(parent, tl, false)}
}

// Save implements Condition.
func (c *PlayOnce) Save() ConditionEntity { return ConditionEntity{Kind: KindPlayOnce} }

// mirror is the shared implementation of AlwaysOn and PlayOnce.
type mirror struct {
	parent   Parent
	tl       timeline.Timeline
	loop     bool
	isMet    bool
	disposed bool
}

func newMirror(parent Parent, tl timeline.Timeline, loop bool) mirror {
	if tl != nil && tl.IsFinished() {
		tl.JumpToStart()
	}
	return mirror{parent: parent, tl: tl, loop: loop, isMet: parent == nil || parent.IsMet()}
}

// IsMet implements Condition.
func (m *mirror) IsMet() bool { return m.isMet }

// Update implements Condition. The root element is always met.
func (m *mirror) Update(context.Context) error {
	if m.disposed {
		return types.ErrDisposed
	}
	m.isMet = m.parent == nil || m.parent.IsMet()
	return nil
}

// UpdateTimeline implements Condition.
func (m *mirror) UpdateTimeline(delta time.Duration) {
	if m.tl != nil {
		m.tl.Update(delta, m.loop)
	}
}

// OverrideTimeline implements Condition.
func (m *mirror) OverrideTimeline(position time.Duration) {
	if m.tl != nil {
		m.tl.Override(position, m.loop)
	}
}

// ApplyToTimeline implements Condition. Playback does not depend on
// transitions.
func (m *mirror) ApplyToTimeline(bool, bool, timeline.Timeline) {}

// Dispose implements Condition.
func (m *mirror) Dispose() { m.disposed = true }
