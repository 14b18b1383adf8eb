// Package review is the step-through wizard for silent ranges. The wizard is
// a value: Start and Advance take the current State and return the next one,
// and the caller owns where it is kept.
package review

import (
	"context"
	"fmt"
	"math"
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseReviewing Phase = "reviewing"
	PhaseDone      Phase = "done"
)

type Decision string

const (
	Confirm Decision = "confirm"
	Skip    Decision = "skip"
)

// SilentRange is a span in seconds with Start < End.
type SilentRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (r SilentRange) String() string {
	return fmt.Sprintf("%.1fs - %.1fs", r.Start, r.End)
}

// Highlighter marks a range on the timeline for the user to look at.
type Highlighter interface {
	Highlight(ctx context.Context, r SilentRange) error
}

// State is one review session.
type State struct {
	Ranges    []SilentRange `json:"ranges"`
	Current   int           `json:"current"`
	Phase     Phase         `json:"phase"`
	Decisions []Decision    `json:"decisions"`
}

// Idle returns the empty state.
func Idle() State {
	return State{Phase: PhaseIdle}
}

// CurrentRange returns the range under review.
func (s State) CurrentRange() (SilentRange, bool) {
	if s.Phase != PhaseReviewing || s.Current < 0 || s.Current >= len(s.Ranges) {
		return SilentRange{}, false
	}
	return s.Ranges[s.Current], true
}

// Progress renders "Silence i of n" for the current range.
func (s State) Progress() string {
	switch s.Phase {
	case PhaseReviewing:
		return fmt.Sprintf("Silence %d of %d", s.Current+1, len(s.Ranges))
	case PhaseDone:
		return "Review complete"
	default:
		return "No review in progress"
	}
}

// Start begins reviewing ranges in the given order and highlights the first
// one. An empty list leaves the wizard idle. A highlight error is returned
// together with the new state; the review can still advance.
func Start(ctx context.Context, hl Highlighter, ranges []SilentRange) (State, error) {
	if len(ranges) == 0 {
		return Idle(), nil
	}
	st := State{
		Ranges:    append([]SilentRange(nil), ranges...),
		Phase:     PhaseReviewing,
		Decisions: make([]Decision, 0, len(ranges)),
	}
	return st, hl.Highlight(ctx, st.Ranges[0])
}

// Advance records d for the current range and moves to the next one, or to
// Done after the last. Advancing an idle or finished review is a no-op.
func Advance(ctx context.Context, hl Highlighter, st State, d Decision) (State, error) {
	if st.Phase != PhaseReviewing {
		return st, nil
	}
	if d != Confirm && d != Skip {
		return st, fmt.Errorf("unknown review decision %q", d)
	}

	next := State{
		Ranges:    st.Ranges,
		Current:   st.Current + 1,
		Phase:     PhaseReviewing,
		Decisions: append(append([]Decision(nil), st.Decisions...), d),
	}
	if next.Current >= len(next.Ranges) {
		next.Current = len(next.Ranges)
		next.Phase = PhaseDone
		return next, nil
	}
	return next, hl.Highlight(ctx, next.Ranges[next.Current])
}

// Normalize converts [start, end] pairs to ranges. Negative starts clamp to
// zero; pairs that are not finite or have start >= end are dropped and
// reported by index.
func Normalize(pairs [][2]float64) ([]SilentRange, []int) {
	ranges := make([]SilentRange, 0, len(pairs))
	var dropped []int
	for i, p := range pairs {
		start, end := p[0], p[1]
		if math.IsNaN(start) || math.IsNaN(end) || math.IsInf(start, 0) || math.IsInf(end, 0) {
			dropped = append(dropped, i)
			continue
		}
		if start < 0 {
			start = 0
		}
		if start >= end {
			dropped = append(dropped, i)
			continue
		}
		ranges = append(ranges, SilentRange{Start: start, End: end})
	}
	return ranges, dropped
}

// Reverse returns ranges in reverse order, latest first, so that removing one
// range never shifts the ones still to be processed.
func Reverse(ranges []SilentRange) []SilentRange {
	out := make([]SilentRange, len(ranges))
	for i, r := range ranges {
		out[len(ranges)-1-i] = r
	}
	return out
}
