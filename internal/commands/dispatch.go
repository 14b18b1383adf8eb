package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Status is the outcome class of one dispatched command.
type Status string

const (
	StatusApplied Status = "applied"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	// StatusReview means the command was handed to the review wizard
	// without editing the timeline.
	StatusReview Status = "review"
)

// Result is what an applier reports for one command.
type Result struct {
	Applied int
	Failed  int
	Review  bool
	Err     error
}

func (r Result) status() Status {
	switch {
	case r.Review && r.Err == nil:
		return StatusReview
	case r.Err == nil:
		return StatusApplied
	case r.Applied > 0:
		return StatusPartial
	default:
		return StatusFailed
	}
}

// Applier applies one decoded command to the timeline.
type Applier interface {
	Apply(ctx context.Context, cmd Command) Result
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(ctx context.Context, cmd Command) Result

func (f ApplierFunc) Apply(ctx context.Context, cmd Command) Result {
	return f(ctx, cmd)
}

// Outcome records how one command in a batch ended.
type Outcome struct {
	Index   int
	Action  string
	Status  Status
	Applied int
	Failed  int
	Err     error
}

// Report folds the outcomes of one dispatched batch.
type Report struct {
	Message  string
	Outcomes []Outcome
}

// Err joins the errors of failed and partial outcomes. Skipped commands are
// not failures.
func (r Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil && o.Status != StatusSkipped {
			errs = append(errs, fmt.Errorf("command %d (%s): %w", o.Index, o.Action, o.Err))
		}
	}
	return errors.Join(errs...)
}

// Count returns how many outcomes have status s.
func (r Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// InReview reports whether any command started a review.
func (r Report) InReview() bool {
	return r.Count(StatusReview) > 0
}

// Summary renders the report for the chat panel.
func (r Report) Summary() string {
	if len(r.Outcomes) == 0 {
		return "no edits"
	}
	var parts []string
	for _, s := range []Status{StatusApplied, StatusReview, StatusPartial, StatusFailed, StatusSkipped} {
		if n := r.Count(s); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	noun := "commands"
	if len(r.Outcomes) == 1 {
		noun = "command"
	}
	return fmt.Sprintf("%d %s: %s", len(r.Outcomes), noun, strings.Join(parts, ", "))
}

// Dispatcher routes decoded commands to appliers registered by action.
type Dispatcher struct {
	appliers map[string]Applier
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher with no appliers.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{appliers: make(map[string]Applier), logger: logger}
}

// Register binds action to a.
func (d *Dispatcher) Register(action string, a Applier) {
	d.appliers[action] = a
}

// Dispatch decodes raw, which should be a JSON array of commands, and applies
// each in array order. Absent or non-array input is logged and ignored.
// Failures, including elements that are not command objects, are recorded
// per command and never stop the batch.
func (d *Dispatcher) Dispatch(ctx context.Context, raw json.RawMessage, aiMessage string) Report {
	report := Report{Message: aiMessage}
	if isNull(raw) {
		d.logger.DebugContext(ctx, "response carried no commands")
		return report
	}
	var batch []json.RawMessage
	if err := json.Unmarshal(raw, &batch); err != nil {
		d.logger.WarnContext(ctx, "commands field is not a list, ignoring", "error", err)
		return report
	}

	for i, elem := range batch {
		var rc Raw
		if err := json.Unmarshal(elem, &rc); err != nil {
			d.logger.WarnContext(ctx, "command is not an object", "index", i, "error", err)
			report.Outcomes = append(report.Outcomes, Outcome{
				Index:  i,
				Status: StatusFailed,
				Err:    fmt.Errorf("%w: %v", ErrMalformedPayload, err),
			})
			continue
		}
		if err := ctx.Err(); err != nil {
			report.Outcomes = append(report.Outcomes, Outcome{Index: i, Action: rc.Action, Status: StatusSkipped, Err: err})
			continue
		}
		report.Outcomes = append(report.Outcomes, d.dispatchOne(ctx, i, rc))
	}

	d.logger.InfoContext(ctx, "dispatched commands", "count", len(batch), "summary", report.Summary())
	return report
}

func (d *Dispatcher) dispatchOne(ctx context.Context, i int, rc Raw) Outcome {
	out := Outcome{Index: i, Action: rc.Action}

	cmd, err := Decode(rc)
	if err != nil {
		d.logger.WarnContext(ctx, "failed to decode command", "index", i, "action", rc.Action, "error", err)
		out.Status = StatusFailed
		out.Err = err
		return out
	}
	if u, ok := cmd.(Unrecognized); ok {
		d.logger.WarnContext(ctx, "skipping unknown action", "index", i, "action", u.Name)
		out.Status = StatusSkipped
		out.Err = fmt.Errorf("%w: %q", ErrUnknownAction, u.Name)
		return out
	}
	a, ok := d.appliers[cmd.Action()]
	if !ok {
		d.logger.WarnContext(ctx, "no applier registered", "index", i, "action", cmd.Action())
		out.Status = StatusSkipped
		out.Err = fmt.Errorf("%w: no applier for %q", ErrUnknownAction, cmd.Action())
		return out
	}

	res := a.Apply(ctx, cmd)
	out.Status = res.status()
	out.Applied = res.Applied
	out.Failed = res.Failed
	out.Err = res.Err
	if res.Err != nil {
		d.logger.WarnContext(ctx, "command finished with errors", "index", i, "action", cmd.Action(), "status", out.Status, "error", res.Err)
	}
	return out
}
