package commands

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorder struct {
	calls []Command
	res   Result
}

func (r *recorder) Apply(ctx context.Context, cmd Command) Result {
	r.calls = append(r.calls, cmd)
	return r.res
}

func newDispatcher() (*Dispatcher, *recorder, *recorder) {
	d := NewDispatcher(testLogger())
	trim := &recorder{res: Result{Applied: 1}}
	trans := &recorder{res: Result{Applied: 1}}
	d.Register(ActionTrimSilence, trim)
	d.Register(ActionAddTransition, trans)
	return d, trim, trans
}

func TestDispatch_UnknownActionIsSkipped(t *testing.T) {
	d, trim, trans := newDispatcher()

	report := d.Dispatch(context.Background(), json.RawMessage(`[{"action":"unknown_x","payload":{}}]`), "hi")

	assert.Empty(t, trim.calls)
	assert.Empty(t, trans.calls)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, StatusSkipped, report.Outcomes[0].Status)
	assert.ErrorIs(t, report.Outcomes[0].Err, ErrUnknownAction)
	assert.NoError(t, report.Err())
	assert.Equal(t, "hi", report.Message)
}

func TestDispatch_EmptyOrInvalidInputIsNoop(t *testing.T) {
	d, trim, trans := newDispatcher()
	inputs := []string{``, `null`, `[]`, `{"action":"trim_silence"}`, `"trim_silence"`}
	for _, in := range inputs {
		report := d.Dispatch(context.Background(), json.RawMessage(in), "")
		assert.Emptyf(t, report.Outcomes, "input %q", in)
		assert.NoError(t, report.Err())
	}
	assert.Empty(t, trim.calls)
	assert.Empty(t, trans.calls)
}

func TestDispatch_RunsInArrayOrder(t *testing.T) {
	d := NewDispatcher(testLogger())
	var order []string
	d.Register(ActionTrimSilence, ApplierFunc(func(ctx context.Context, cmd Command) Result {
		order = append(order, cmd.Action())
		return Result{Applied: 1}
	}))
	d.Register(ActionAddTransition, ApplierFunc(func(ctx context.Context, cmd Command) Result {
		order = append(order, cmd.Action())
		return Result{Applied: 1}
	}))

	raw := `[
		{"action":"add_transition","payload":{"transitions":[]}},
		{"action":"trim_silence","payload":{"segments":[[0,1]]}},
		{"action":"add_transition","payload":{"transitions":[]}}
	]`
	report := d.Dispatch(context.Background(), json.RawMessage(raw), "")

	assert.Equal(t, []string{"add_transition", "trim_silence", "add_transition"}, order)
	assert.Equal(t, 3, report.Count(StatusApplied))
}

func TestDispatch_MalformedPayloadDoesNotStopBatch(t *testing.T) {
	d, trim, _ := newDispatcher()

	raw := `[
		{"action":"trim_silence","payload":{"segments":"all of it"}},
		{"action":"trim_silence","payload":{"segments":[[0.0,1.4],[2.1,3.1]]}},
		"future_thing",
		{"action":"trim_silence","payload":{"segments":[[4.0,4.5]]}}
	]`
	report := d.Dispatch(context.Background(), json.RawMessage(raw), "")

	require.Len(t, report.Outcomes, 4)
	assert.Equal(t, StatusFailed, report.Outcomes[0].Status)
	assert.ErrorIs(t, report.Outcomes[0].Err, ErrMalformedPayload)
	assert.Equal(t, StatusApplied, report.Outcomes[1].Status)
	assert.Equal(t, StatusFailed, report.Outcomes[2].Status)
	assert.Equal(t, 2, report.Outcomes[2].Index)
	assert.ErrorIs(t, report.Outcomes[2].Err, ErrMalformedPayload)
	assert.Equal(t, StatusApplied, report.Outcomes[3].Status)

	require.Len(t, trim.calls, 2)
	assert.Equal(t, TrimSilence{Segments: []Segment{{0.0, 1.4}, {2.1, 3.1}}}, trim.calls[0])
	assert.Equal(t, TrimSilence{Segments: []Segment{{4.0, 4.5}}}, trim.calls[1])
	assert.ErrorIs(t, report.Err(), ErrMalformedPayload)
}

func TestDispatch_ResultStatuses(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want Status
	}{
		{"applied", Result{Applied: 2}, StatusApplied},
		{"partial", Result{Applied: 1, Failed: 1, Err: errors.New("one range failed")}, StatusPartial},
		{"failed", Result{Failed: 1, Err: errors.New("boom")}, StatusFailed},
		{"review", Result{Review: true}, StatusReview},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher(testLogger())
			d.Register(ActionTrimSilence, &recorder{res: tt.res})
			report := d.Dispatch(context.Background(), json.RawMessage(`[{"action":"trim_silence","payload":{"segments":[]}}]`), "")
			require.Len(t, report.Outcomes, 1)
			assert.Equal(t, tt.want, report.Outcomes[0].Status)
		})
	}
}

func TestDecode_AddTransition(t *testing.T) {
	cmd, err := Decode(Raw{
		Action:  ActionAddTransition,
		Payload: json.RawMessage(`{"transitions":[{"cut_index":1,"transition_name":"Cross Dissolve","duration":0,"vibe_used":"calm"}]}`),
	})
	require.NoError(t, err)

	at, ok := cmd.(AddTransition)
	require.True(t, ok)
	require.Len(t, at.Transitions, 1)
	tr := at.Transitions[0]
	assert.Equal(t, 1, tr.CutIndex)
	assert.Equal(t, "Cross Dissolve", tr.TransitionName)
	assert.Equal(t, "calm", tr.VibeUsed)
	assert.Equal(t, DefaultTransitionDuration, tr.Duration())
}

func TestDecode_TrimSilenceKeepsWellFormedSegments(t *testing.T) {
	cmd, err := Decode(Raw{Action: ActionTrimSilence, Payload: json.RawMessage(`{"segments":[[0,1.4],[2.1],"x",[5,6]]}`)})
	require.NoError(t, err)
	assert.Equal(t, TrimSilence{Segments: []Segment{{0, 1.4}, {5, 6}}, Dropped: []int{1, 2}}, cmd)
}

func TestDecode_AddTransitionKeepsNegativeCutIndex(t *testing.T) {
	cmd, err := Decode(Raw{Action: ActionAddTransition, Payload: json.RawMessage(`{"transitions":[{"cut_index":0},{"cut_index":-1}]}`)})
	require.NoError(t, err)
	at, ok := cmd.(AddTransition)
	require.True(t, ok)
	require.Len(t, at.Transitions, 2)
	assert.Equal(t, -1, at.Transitions[1].CutIndex)
}

func TestTransitionInstruction_Duration(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, DefaultTransitionDuration},
		{-3, DefaultTransitionDuration},
		{0.05, MinTransitionDuration},
		{0.75, 0.75},
		{2.0, 2.0},
		{5, MaxTransitionDuration},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, TransitionInstruction{DurationSeconds: tt.in}.Duration(), "duration %v", tt.in)
	}
}

func TestDecode_MarkProfanity(t *testing.T) {
	cmd, err := Decode(Raw{
		Action:  ActionMarkProfanity,
		Payload: json.RawMessage(`{"markers":[{"start_seconds":3.2,"duration_seconds":0.4,"name":"bleep","comment":"word","color_index":1}]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, MarkProfanity{Markers: []MarkerSpec{{StartSeconds: 3.2, DurationSeconds: 0.4, Name: "bleep", Comment: "word", ColorIndex: 1}}}, cmd)
}

func TestDecode_UnknownIsUnrecognized(t *testing.T) {
	cmd, err := Decode(Raw{Action: "lips_sync", Payload: json.RawMessage(`{"x":1}`)})
	require.NoError(t, err)
	u, ok := cmd.(Unrecognized)
	require.True(t, ok)
	assert.Equal(t, "lips_sync", u.Action())
}

func TestReport_Summary(t *testing.T) {
	r := Report{Outcomes: []Outcome{
		{Status: StatusApplied},
		{Status: StatusSkipped},
		{Status: StatusApplied},
	}}
	assert.Equal(t, "3 commands: 2 applied, 1 skipped", r.Summary())
	assert.Equal(t, "no edits", Report{}.Summary())
}
