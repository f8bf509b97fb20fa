// Package timeline defines the playback contract condition roots drive and
// a segmented reference implementation.
package timeline

import (
	"fmt"
	"time"
)

// StopMode selects what happens when a condition stops being met.
type StopMode int

const (
	// Finish lets the current run play out.
	Finish StopMode = iota
	// SkipToEnd jumps straight to the end segment.
	SkipToEnd
)

// String implements fmt.Stringer.
func (m StopMode) String() string {
	if m == SkipToEnd {
		return "skip-to-end"
	}
	return "finish"
}

// ParseStopMode parses a persisted stop mode. Empty means Finish.
func ParseStopMode(s string) (StopMode, error) {
	switch s {
	case "", "finish":
		return Finish, nil
	case "skip-to-end":
		return SkipToEnd, nil
	default:
		return Finish, fmt.Errorf("unknown stop mode %q", s)
	}
}

// Timeline is the playback state machine of one render element.
type Timeline interface {
	// Update advances every run by delta. With stickToMain the main run
	// loops its main segment instead of entering the end segment.
	Update(delta time.Duration, stickToMain bool)
	// Override seeks the main run to position and drops extra runs.
	Override(position time.Duration, stickToMain bool)
	// JumpToStart restarts the main run.
	JumpToStart()
	// AddExtraTimeline starts an additional run from the beginning that
	// plays alongside the main run.
	AddExtraTimeline()
	// JumpToEndSegment moves the main run to the start of the end segment.
	JumpToEndSegment()
	// IsFinished reports whether the main run reached the end and no extra
	// runs remain.
	IsFinished() bool
	// Length returns the combined segment length.
	Length() time.Duration
	// StopMode returns the configured stop mode.
	StopMode() StopMode
}
