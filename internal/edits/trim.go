package edits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cutpilot/cutpilot-agent/internal/commands"
	"github.com/cutpilot/cutpilot-agent/internal/host"
	"github.com/cutpilot/cutpilot-agent/internal/review"
	"github.com/cutpilot/cutpilot-agent/internal/timecode"
)

// TrimMode selects between reviewing silent ranges and cutting them.
type TrimMode string

const (
	ModeReview TrimMode = "review"
	ModeApply  TrimMode = "apply"
)

// ParseTrimMode validates a configured mode.
func ParseTrimMode(s string) (TrimMode, error) {
	switch TrimMode(s) {
	case ModeReview, ModeApply:
		return TrimMode(s), nil
	case "":
		return ModeReview, nil
	}
	return "", fmt.Errorf("unknown trim mode %q", s)
}

// ReviewStarter owns the review wizard state.
type ReviewStarter interface {
	StartReview(ctx context.Context, ranges []review.SilentRange) error
}

// SilenceTrimmer applies trim_silence commands.
type SilenceTrimmer struct {
	host     host.Host
	probe    *host.CachedProbe
	codec    timecode.Codec
	mode     TrimMode
	reviewer ReviewStarter
	logger   *slog.Logger
}

// NewSilenceTrimmer creates a trimmer. reviewer is required in review mode.
func NewSilenceTrimmer(h host.Host, probe *host.CachedProbe, codec timecode.Codec, mode TrimMode, reviewer ReviewStarter, logger *slog.Logger) *SilenceTrimmer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SilenceTrimmer{host: h, probe: probe, codec: codec, mode: mode, reviewer: reviewer, logger: logger}
}

// Ranges normalizes segments and orders them latest first.
func (t *SilenceTrimmer) Ranges(ctx context.Context, segments []commands.Segment) []review.SilentRange {
	pairs := make([][2]float64, len(segments))
	for i, s := range segments {
		pairs[i] = s
	}
	ranges, dropped := review.Normalize(pairs)
	for _, i := range dropped {
		t.logger.WarnContext(ctx, "dropping invalid silent range", "index", i, "start", segments[i][0], "end", segments[i][1])
	}
	return review.Reverse(ranges)
}

func (t *SilenceTrimmer) Apply(ctx context.Context, cmd commands.Command) commands.Result {
	ts, ok := cmd.(commands.TrimSilence)
	if !ok {
		return unexpected(cmd)
	}
	for _, i := range ts.Dropped {
		t.logger.WarnContext(ctx, "dropping segment that is not a [start, end] pair", "index", i)
	}
	ranges := t.Ranges(ctx, ts.Segments)
	if len(ranges) == 0 {
		t.logger.InfoContext(ctx, "no silent ranges to trim")
		return commands.Result{}
	}

	if t.mode != ModeApply {
		if t.reviewer == nil {
			return failAll(len(ranges), errors.New("review mode without a review owner"))
		}
		if err := t.reviewer.StartReview(ctx, ranges); err != nil {
			return commands.Result{Review: true, Err: err}
		}
		t.logger.InfoContext(ctx, "silent ranges handed to review", "ranges", len(ranges))
		return commands.Result{Review: true}
	}

	e, err := resolve(ctx, t.host, t.probe, t.logger)
	if err != nil {
		return failAll(len(ranges), err)
	}

	var b batch
	for i, r := range ranges {
		if err := t.cut(ctx, e, r); err != nil {
			t.logger.WarnContext(ctx, "silent range not removed", "index", i, "range", r.String(), "error", err)
			b.fail(fmt.Errorf("range %s: %w", r, err))
			continue
		}
		b.ok()
	}
	t.logger.InfoContext(ctx, "silence trim finished", "removed", b.applied, "failed", len(b.errs))
	return b.result()
}

// cut marks r and ripple-deletes it in one transaction, then parks the
// playhead at the cut.
func (t *SilenceTrimmer) cut(ctx context.Context, e env, r review.SilentRange) error {
	if err := e.caps.Require(host.CapSetInPoint, host.CapSetOutPoint, host.CapRippleDelete); err != nil {
		return err
	}
	in := t.codec.SecondsToFrame(r.Start, e.fps)
	out := t.codec.SecondsToFrame(r.End, e.fps)
	if out <= in {
		return fmt.Errorf("range shorter than one frame at %.3f fps", e.fps)
	}

	setIn, err := e.sess.NewSetInPointAction(in)
	if err != nil {
		return err
	}
	setOut, err := e.sess.NewSetOutPointAction(out)
	if err != nil {
		return err
	}
	del, err := e.sess.NewRippleDeleteAction(in, out)
	if err != nil {
		return err
	}
	if err := e.doc.ExecuteTransaction(ctx, setIn, setOut, del); err != nil {
		return err
	}

	if e.caps.Has(host.CapPlayhead) {
		if err := e.sess.SetPlayhead(ctx, in); err != nil {
			t.logger.WarnContext(ctx, "failed to move playhead", "error", err)
		}
	}
	return nil
}

// Highlighter marks a silent range with in and out points and moves the
// playhead to its start. It never removes anything.
type Highlighter struct {
	host   host.Host
	probe  *host.CachedProbe
	codec  timecode.Codec
	logger *slog.Logger
}

// NewHighlighter creates the review wizard's host side.
func NewHighlighter(h host.Host, probe *host.CachedProbe, codec timecode.Codec, logger *slog.Logger) *Highlighter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Highlighter{host: h, probe: probe, codec: codec, logger: logger}
}

func (h *Highlighter) Highlight(ctx context.Context, r review.SilentRange) error {
	e, err := resolve(ctx, h.host, h.probe, h.logger)
	if err != nil {
		return err
	}
	in := h.codec.SecondsToFrame(r.Start, e.fps)
	out := h.codec.SecondsToFrame(r.End, e.fps)

	var actions []host.Action
	if e.caps.Has(host.CapSetInPoint) {
		a, err := e.sess.NewSetInPointAction(in)
		if err != nil {
			return err
		}
		actions = append(actions, a)
	}
	if e.caps.Has(host.CapSetOutPoint) {
		a, err := e.sess.NewSetOutPointAction(out)
		if err != nil {
			return err
		}
		actions = append(actions, a)
	}
	if len(actions) == 0 {
		return host.Unavailable(host.CapSetInPoint)
	}
	if err := e.doc.ExecuteTransaction(ctx, actions...); err != nil {
		return err
	}

	if !e.caps.Has(host.CapPlayhead) {
		h.logger.WarnContext(ctx, "cannot move playhead", "error", host.Unavailable(host.CapPlayhead))
		return nil
	}
	return e.sess.SetPlayhead(ctx, in)
}
