// internal/timeline/segmented.go
package timeline

import (
	"fmt"
	"time"
)

/*
 * Three-segment timeline.
 *
 * A run plays start, main and end segments in order:
 *
 *   0 ---- start ---- | ---- main ---- | ---- end ---- Length()
 *
 * While stickToMain is set the main run wraps from the end of the main
 * segment back to its beginning. Extra runs never stick; they play through
 * once and are dropped when finished.
 *
 * A zero-length main segment cannot loop; sticking then parks the run at
 * the main/end boundary.
 */

// Segments are the segment lengths of a Segmented timeline.
type Segments struct {
	Start time.Duration
	Main  time.Duration
	End   time.Duration
}

// Length returns the combined length.
func (s Segments) Length() time.Duration { return s.Start + s.Main + s.End }

// Segmented is the reference Timeline. Not safe for concurrent use.
type Segmented struct {
	segments Segments
	stop     StopMode
	position time.Duration
	extras   []time.Duration
}

// NewSegmented creates a timeline positioned at its end, so the first
// transition of a condition starts it.
func NewSegmented(segments Segments, stop StopMode) *Segmented {
	return &Segmented{segments: segments, stop: stop, position: segments.Length()}
}

// Segments returns the segment lengths.
func (t *Segmented) Segments() Segments { return t.segments }

// Position returns the main run position.
func (t *Segmented) Position() time.Duration { return t.position }

// ExtraRuns returns the positions of the extra runs.
func (t *Segmented) ExtraRuns() []time.Duration {
	out := make([]time.Duration, len(t.extras))
	copy(out, t.extras)
	return out
}

// Update implements Timeline.
func (t *Segmented) Update(delta time.Duration, stickToMain bool) {
	if delta < 0 {
		delta = 0
	}
	t.position = t.advance(t.position, delta, stickToMain)

	kept := t.extras[:0]
	for _, pos := range t.extras {
		pos = t.advance(pos, delta, false)
		if pos < t.segments.Length() {
			kept = append(kept, pos)
		}
	}
	t.extras = kept
}

func (t *Segmented) advance(pos, delta time.Duration, stickToMain bool) time.Duration {
	length := t.segments.Length()
	if pos >= length {
		return length
	}
	next := pos + delta
	mainStart := t.segments.Start
	mainEnd := mainStart + t.segments.Main

	if stickToMain && pos < mainEnd && next >= mainEnd {
		if t.segments.Main <= 0 {
			return mainEnd
		}
		return mainStart + (next-mainStart)%t.segments.Main
	}
	if next > length {
		return length
	}
	return next
}

// Override implements Timeline.
func (t *Segmented) Override(position time.Duration, stickToMain bool) {
	t.extras = nil
	if position < 0 {
		position = 0
	}
	mainEnd := t.segments.Start + t.segments.Main
	if stickToMain && position >= mainEnd && t.segments.Main > 0 {
		position = t.segments.Start + (position-t.segments.Start)%t.segments.Main
	}
	if position > t.segments.Length() {
		position = t.segments.Length()
	}
	t.position = position
}

// JumpToStart implements Timeline.
func (t *Segmented) JumpToStart() { t.position = 0 }

// AddExtraTimeline implements Timeline.
func (t *Segmented) AddExtraTimeline() {
	if t.segments.Length() > 0 {
		t.extras = append(t.extras, 0)
	}
}

// JumpToEndSegment implements Timeline. A timeline already in its end
// segment keeps its position.
func (t *Segmented) JumpToEndSegment() {
	if end := t.segments.Start + t.segments.Main; t.position < end {
		t.position = end
	}
}

// IsFinished implements Timeline.
func (t *Segmented) IsFinished() bool {
	return t.position >= t.segments.Length() && len(t.extras) == 0
}

// Length implements Timeline.
func (t *Segmented) Length() time.Duration { return t.segments.Length() }

// StopMode implements Timeline.
func (t *Segmented) StopMode() StopMode { return t.stop }

var _ Timeline = (*Segmented)(nil)

// Entity is the persisted form of a Segmented timeline.
type Entity struct {
	StartMS  int64  `json:"start_ms"`
	MainMS   int64  `json:"main_ms"`
	EndMS    int64  `json:"end_ms"`
	StopMode string `json:"stop_mode,omitempty"`
}

// Build creates the timeline described by e.
func (e Entity) Build() (*Segmented, error) {
	stop, err := ParseStopMode(e.StopMode)
	if err != nil {
		return nil, err
	}
	if e.StartMS < 0 || e.MainMS < 0 || e.EndMS < 0 {
		return nil, fmt.Errorf("negative segment length in %+v", e)
	}
	return NewSegmented(Segments{
		Start: time.Duration(e.StartMS) * time.Millisecond,
		Main:  time.Duration(e.MainMS) * time.Millisecond,
		End:   time.Duration(e.EndMS) * time.Millisecond,
	}, stop), nil
}

// Save converts t into its persisted form.
func (t *Segmented) Save() Entity {
	return Entity{
		StartMS:  t.segments.Start.Milliseconds(),
		MainMS:   t.segments.Main.Milliseconds(),
		EndMS:    t.segments.End.Milliseconds(),
		StopMode: t.stop.String(),
	}
}
