package gather

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/cutpilot/cutpilot-agent/internal/frames"
	"github.com/cutpilot/cutpilot-agent/internal/host"
	"github.com/cutpilot/cutpilot-agent/internal/timecode"
	"github.com/cutpilot/cutpilot-agent/internal/timeline"
)

// FrameGatherer exports the first and last frame of every clip on a track.
// For clip i it emits [first?, last?]: the first clip has no first frame and
// the last clip has no last frame. Frames the host declines are left out of
// their group.
type FrameGatherer struct {
	host        host.Host
	probe       *host.CachedProbe
	exporter    *frames.Exporter
	codec       timecode.Codec
	track       int
	concurrency int
	logger      *slog.Logger
}

// NewFrameGatherer creates a frame gatherer. concurrency bounds in-flight
// exports; values below one serialize them.
func NewFrameGatherer(h host.Host, probe *host.CachedProbe, exporter *frames.Exporter, codec timecode.Codec, track, concurrency int, logger *slog.Logger) *FrameGatherer {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FrameGatherer{
		host:        h,
		probe:       probe,
		exporter:    exporter,
		codec:       codec,
		track:       track,
		concurrency: concurrency,
		logger:      logger,
	}
}

type frameJob struct {
	clip  int
	slot  int
	at    timecode.Ticks
	label string
}

func (g *FrameGatherer) Gather(ctx context.Context) (Evidence, error) {
	doc, s, err := host.Resolve(ctx, g.host)
	if err != nil {
		return Evidence{}, err
	}
	if g.probe != nil {
		if err := g.probe.Get(ctx, s).Require(host.CapFrameExport); err != nil {
			return Evidence{}, err
		}
	}

	clips, err := timeline.Load(ctx, s, g.track)
	if err != nil {
		return Evidence{}, err
	}
	fps, err := s.FrameRate(ctx)
	if err != nil || fps <= 0 {
		fps = timecode.DefaultFrameRate
	}

	var jobs []frameJob
	for i, c := range clips {
		if i > 0 {
			jobs = append(jobs, frameJob{clip: i, slot: 0, at: c.Start, label: fmt.Sprintf("Clip%d_First", i)})
		}
		if i < len(clips)-1 {
			jobs = append(jobs, frameJob{clip: i, slot: 1, at: g.codec.FrameBefore(c.End, fps), label: fmt.Sprintf("Clip%d_Last", i)})
		}
	}

	results := make([][2]string, len(clips))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for _, job := range jobs {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			path, err := g.exporter.ExportFrame(egCtx, doc, s, job.at, job.label)
			if err != nil {
				// Already logged by the exporter; the frame is skipped.
				return nil
			}
			results[job.clip][job.slot] = path
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Evidence{}, err
	}

	groups := make([][]string, len(clips))
	exported := 0
	for i, r := range results {
		group := make([]string, 0, 2)
		for _, p := range r {
			if p != "" {
				group = append(group, p)
				exported++
			}
		}
		groups[i] = group
	}
	g.logger.InfoContext(ctx, "exported transition frames", "clips", len(clips), "frames", exported, "requested", len(jobs))
	return Evidence{FramePaths: groups}, nil
}
