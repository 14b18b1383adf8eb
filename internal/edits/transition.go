package edits

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cutpilot/cutpilot-agent/internal/commands"
	"github.com/cutpilot/cutpilot-agent/internal/host"
	"github.com/cutpilot/cutpilot-agent/internal/timecode"
	"github.com/cutpilot/cutpilot-agent/internal/timeline"
)

// TransitionInserter applies add_transition commands.
type TransitionInserter struct {
	host      host.Host
	probe     *host.CachedProbe
	codec     timecode.Codec
	track     int
	threshold float64
	logger    *slog.Logger
}

// NewTransitionInserter creates an inserter working on track, with cuts
// detected below threshold seconds.
func NewTransitionInserter(h host.Host, probe *host.CachedProbe, codec timecode.Codec, track int, threshold float64, logger *slog.Logger) *TransitionInserter {
	if threshold <= 0 {
		threshold = timeline.DefaultGapThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TransitionInserter{host: h, probe: probe, codec: codec, track: track, threshold: threshold, logger: logger}
}

// Apply re-reads the track and detects cuts before applying, since earlier
// commands in the batch may have moved clips.
func (t *TransitionInserter) Apply(ctx context.Context, cmd commands.Command) commands.Result {
	at, ok := cmd.(commands.AddTransition)
	if !ok {
		return unexpected(cmd)
	}
	if len(at.Transitions) == 0 {
		return commands.Result{}
	}

	e, err := resolve(ctx, t.host, t.probe, t.logger)
	if err != nil {
		return failAll(len(at.Transitions), err)
	}
	clips, err := timeline.Load(ctx, e.sess, t.track)
	if err != nil {
		return failAll(len(at.Transitions), err)
	}
	cuts := timeline.DetectCutPoints(clips, t.codec, t.threshold)
	t.logger.InfoContext(ctx, "detected cut points", "clips", len(clips), "cuts", len(cuts))
	if len(cuts) != len(clips)-1 {
		t.logger.WarnContext(ctx, "cut indices skip clip pairs separated by a gap",
			"clips", len(clips),
			"cuts", len(cuts),
			"gap_threshold", t.threshold,
		)
	}

	return t.ApplyInstructions(ctx, e.doc, e.sess, at.Transitions, cuts)
}

// ApplyInstructions inserts one transition per instruction on the incoming
// clip of the named cut, one transaction each.
func (t *TransitionInserter) ApplyInstructions(ctx context.Context, doc host.Document, s host.Session, instructions []commands.TransitionInstruction, cuts []timeline.CutPoint) commands.Result {
	var caps *host.Capabilities
	if t.probe != nil {
		caps = t.probe.Get(ctx, s)
	} else {
		caps = host.Probe(s)
	}
	fps, err := s.FrameRate(ctx)
	if err != nil || fps <= 0 {
		fps = timecode.DefaultFrameRate
	}

	var b batch
	for i, instr := range instructions {
		if err := t.insert(ctx, doc, s, caps, fps, instr, cuts); err != nil {
			t.logger.WarnContext(ctx, "transition not applied",
				"index", i,
				"cut_index", instr.CutIndex,
				"transition", instr.TransitionName,
				"error", err,
			)
			b.fail(fmt.Errorf("transition %d: %w", i, err))
			continue
		}
		t.logger.InfoContext(ctx, "transition applied",
			"cut_index", instr.CutIndex,
			"transition", instr.TransitionName,
			"duration", instr.Duration(),
			"vibe", instr.VibeUsed,
		)
		b.ok()
	}
	return b.result()
}

func (t *TransitionInserter) insert(ctx context.Context, doc host.Document, s host.Session, caps *host.Capabilities, fps float64, instr commands.TransitionInstruction, cuts []timeline.CutPoint) error {
	if instr.CutIndex < 0 || instr.CutIndex >= len(cuts) {
		return fmt.Errorf("%w: %d of %d cuts", ErrOutOfBoundsCutIndex, instr.CutIndex, len(cuts))
	}
	if err := caps.Require(host.CapTransition); err != nil {
		return err
	}
	target := cuts[instr.CutIndex].Incoming

	tr, err := s.NewTransition(ctx, instr.TransitionName)
	if err != nil {
		return fmt.Errorf("failed to create transition %q: %w", instr.TransitionName, err)
	}

	opts := host.TransitionOptions{ApplyToStart: true, ForceSingleSided: false}
	if caps.Has(host.CapTransitionDur) {
		opts.Duration = t.codec.SecondsToFrame(instr.Duration(), fps)
	} else {
		t.logger.WarnContext(ctx, "transition duration unsupported, using default length", "transition", instr.TransitionName)
	}

	action, err := target.Item.NewAddTransitionAction(tr, opts)
	if err != nil && opts.Duration > 0 {
		t.logger.WarnContext(ctx, "failed to set transition duration, using default length", "error", err)
		opts.Duration = 0
		action, err = target.Item.NewAddTransitionAction(tr, opts)
	}
	if err != nil {
		return err
	}
	return doc.ExecuteTransaction(ctx, action)
}
