// Package edits turns decoded commands into host mutations. Every logical
// edit is one transaction; a failure on one range, instruction or marker is
// logged and collected while the rest of the batch continues.
package edits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cutpilot/cutpilot-agent/internal/commands"
	"github.com/cutpilot/cutpilot-agent/internal/host"
	"github.com/cutpilot/cutpilot-agent/internal/timecode"
)

// ErrOutOfBoundsCutIndex is returned for an instruction whose cut index does
// not name a detected cut point.
var ErrOutOfBoundsCutIndex = errors.New("cut index out of bounds")

// batch folds per-item outcomes into a commands.Result.
type batch struct {
	applied int
	errs    []error
}

func (b *batch) ok() {
	b.applied++
}

func (b *batch) fail(err error) {
	b.errs = append(b.errs, err)
}

func (b *batch) result() commands.Result {
	return commands.Result{
		Applied: b.applied,
		Failed:  len(b.errs),
		Err:     errors.Join(b.errs...),
	}
}

// failAll reports err for a command that could not start.
func failAll(n int, err error) commands.Result {
	if n < 1 {
		n = 1
	}
	return commands.Result{Failed: n, Err: err}
}

func unexpected(cmd commands.Command) commands.Result {
	return failAll(1, fmt.Errorf("unexpected command %T", cmd))
}

// env is the resolved host state one command works against.
type env struct {
	doc  host.Document
	sess host.Session
	caps *host.Capabilities
	fps  float64
}

func resolve(ctx context.Context, h host.Host, probe *host.CachedProbe, logger *slog.Logger) (env, error) {
	doc, sess, err := host.Resolve(ctx, h)
	if err != nil {
		return env{}, err
	}
	var caps *host.Capabilities
	if probe != nil {
		caps = probe.Get(ctx, sess)
	} else {
		caps = host.Probe(sess)
	}
	fps, err := sess.FrameRate(ctx)
	if err != nil || fps <= 0 {
		logger.DebugContext(ctx, "frame rate unavailable, using default", "error", err)
		fps = timecode.DefaultFrameRate
	}
	return env{doc: doc, sess: sess, caps: caps, fps: fps}, nil
}
