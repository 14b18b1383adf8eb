package agent

import (
	"context"
	"errors"

	"github.com/cutpilot/cutpilot-agent/internal/journal"
	"github.com/cutpilot/cutpilot-agent/internal/review"
)

// ReviewView is the wizard state as shown to the panel and the tray.
type ReviewView struct {
	review.State
	RunID    string              `json:"run_id,omitempty"`
	Progress string              `json:"progress"`
	Range    *review.SilentRange `json:"range,omitempty"`
	Warning  string              `json:"warning,omitempty"`
}

// reviewOwner lets the silence trimmer hand ranges to the agent. It is only
// called from dispatch, with a.mu already held.
type reviewOwner struct {
	a *Agent
}

func (o reviewOwner) StartReview(ctx context.Context, ranges []review.SilentRange) error {
	a := o.a
	st, err := review.Start(ctx, a.highlight, ranges)
	warning := ""
	if err != nil {
		a.logger.WarnContext(ctx, "failed to highlight silent range", "error", err)
		warning = err.Error()
	}
	a.setState(st, a.runID, warning)
	a.logger.InfoContext(ctx, "review started", "ranges", len(st.Ranges))
	return nil
}

// OnReviewChange registers fn to be called after every wizard transition.
func (a *Agent) OnReviewChange(fn func(ReviewView)) {
	a.stateMu.Lock()
	a.listeners = append(a.listeners, fn)
	a.stateMu.Unlock()
}

func (a *Agent) setState(st review.State, runID, warning string) {
	a.stateMu.Lock()
	a.state = st
	a.reviewRunID = runID
	a.warning = warning
	view := a.viewLocked()
	listeners := append(([]func(ReviewView))(nil), a.listeners...)
	a.stateMu.Unlock()

	for _, fn := range listeners {
		fn(view)
	}
}

// ReviewState returns the current wizard state without waiting for a run.
func (a *Agent) ReviewState() ReviewView {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.viewLocked()
}

func (a *Agent) viewLocked() ReviewView {
	v := ReviewView{
		State:    a.state,
		RunID:    a.reviewRunID,
		Progress: a.state.Progress(),
		Warning:  a.warning,
	}
	if r, ok := a.state.CurrentRange(); ok {
		v.Range = &r
	}
	return v
}

// Review records d for the range under review and highlights the next one.
// A failed highlight is reported in the view's Warning; the review still
// advances.
func (a *Agent) Review(ctx context.Context, d review.Decision) (ReviewView, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stateMu.RLock()
	st, runID := a.state, a.reviewRunID
	a.stateMu.RUnlock()

	r, ok := st.CurrentRange()
	if !ok {
		return a.ReviewState(), ErrNoReview
	}
	idx := st.Current

	next, err := review.Advance(ctx, a.highlight, st, d)
	if next.Current == st.Current && next.Phase == st.Phase {
		// decision rejected, nothing moved
		return a.ReviewState(), err
	}
	warning := ""
	if err != nil {
		a.logger.WarnContext(ctx, "failed to highlight silent range", "error", err)
		warning = err.Error()
	}
	a.setState(next, runID, warning)

	if runID != "" {
		rec := journal.DecisionRecord{RunID: runID, Index: idx, Start: r.Start, End: r.End, Decision: string(d)}
		if err := a.repo.RecordDecision(ctx, rec); err != nil {
			a.logger.WarnContext(ctx, "failed to journal review decision", "error", err)
		}
	}
	if next.Phase == review.PhaseDone {
		a.logger.InfoContext(ctx, "review complete", "ranges", len(next.Ranges))
	}
	return a.ReviewState(), nil
}

// IsNoReview reports whether err means there was nothing to review.
func IsNoReview(err error) bool {
	return errors.Is(err, ErrNoReview)
}
