package review

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingHighlighter struct {
	seen []SilentRange
	err  error
}

func (h *countingHighlighter) Highlight(ctx context.Context, r SilentRange) error {
	h.seen = append(h.seen, r)
	return h.err
}

func TestStart_ReversedRanges(t *testing.T) {
	ranges, dropped := Normalize([][2]float64{{0.0, 1.4}, {2.1, 3.1}})
	require.Empty(t, dropped)

	hl := &countingHighlighter{}
	st, err := Start(context.Background(), hl, Reverse(ranges))
	require.NoError(t, err)

	assert.Equal(t, []SilentRange{{2.1, 3.1}, {0.0, 1.4}}, st.Ranges)
	assert.Equal(t, 0, st.Current)
	assert.Equal(t, PhaseReviewing, st.Phase)
	assert.Equal(t, []SilentRange{{2.1, 3.1}}, hl.seen)
	assert.Equal(t, "Silence 1 of 2", st.Progress())
}

func TestStart_EmptyIsNoop(t *testing.T) {
	hl := &countingHighlighter{}
	st, err := Start(context.Background(), hl, nil)
	require.NoError(t, err)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Empty(t, hl.seen)
}

func TestAdvance_TerminatesAndStaysDone(t *testing.T) {
	ranges := []SilentRange{{5, 6}, {3, 4}, {1, 2}}
	hl := &countingHighlighter{}
	ctx := context.Background()

	st, err := Start(ctx, hl, ranges)
	require.NoError(t, err)

	decisions := []Decision{Confirm, Skip, Confirm}
	for i, d := range decisions {
		st, err = Advance(ctx, hl, st, d)
		require.NoError(t, err)
		if i < len(ranges)-1 {
			assert.Equal(t, PhaseReviewing, st.Phase)
			assert.Equal(t, i+1, st.Current)
		}
	}
	assert.Equal(t, PhaseDone, st.Phase)
	assert.Equal(t, decisions, st.Decisions)
	assert.Len(t, hl.seen, len(ranges), "each range is highlighted exactly once")

	again, err := Advance(ctx, hl, st, Confirm)
	require.NoError(t, err)
	assert.Equal(t, st, again)
	assert.Len(t, hl.seen, len(ranges), "advancing a finished review must not touch the host")

	_, ok := again.CurrentRange()
	assert.False(t, ok)
}

func TestAdvance_DoesNotMutateInput(t *testing.T) {
	hl := &countingHighlighter{}
	ctx := context.Background()
	st, err := Start(ctx, hl, []SilentRange{{1, 2}, {0, 0.5}})
	require.NoError(t, err)

	next, err := Advance(ctx, hl, st, Skip)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Current)
	assert.Empty(t, st.Decisions)
	assert.Equal(t, 1, next.Current)
}

func TestAdvance_IdleIsNoop(t *testing.T) {
	hl := &countingHighlighter{}
	st, err := Advance(context.Background(), hl, Idle(), Confirm)
	require.NoError(t, err)
	assert.Equal(t, Idle(), st)
	assert.Empty(t, hl.seen)
}

func TestAdvance_RejectsUnknownDecision(t *testing.T) {
	hl := &countingHighlighter{}
	st, err := Start(context.Background(), hl, []SilentRange{{1, 2}})
	require.NoError(t, err)

	_, err = Advance(context.Background(), hl, st, Decision("maybe"))
	assert.Error(t, err)
}

func TestStart_HighlightErrorKeepsState(t *testing.T) {
	hl := &countingHighlighter{err: errors.New("no in point action")}
	st, err := Start(context.Background(), hl, []SilentRange{{1, 2}})
	assert.Error(t, err)
	assert.Equal(t, PhaseReviewing, st.Phase)
}

func TestNormalize(t *testing.T) {
	ranges, dropped := Normalize([][2]float64{{-0.5, 1}, {2, 2}, {3, 2.5}, {4, 5}})
	assert.Equal(t, []SilentRange{{0, 1}, {4, 5}}, ranges)
	assert.Equal(t, []int{1, 2}, dropped)
}
