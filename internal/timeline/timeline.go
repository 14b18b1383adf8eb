// Package timeline reads the clips of one track from the host, orders them
// and detects cut points between adjacent clips.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cutpilot/cutpilot-agent/internal/host"
	"github.com/cutpilot/cutpilot-agent/internal/timecode"
)

// DefaultGapThreshold is the largest gap, in seconds, that still counts as a cut.
const DefaultGapThreshold = 0.5

// ErrInsufficientClips is returned when a track holds fewer than two clips.
var ErrInsufficientClips = errors.New("track needs at least two clips")

// Clip is a host track item with its resolved position.
type Clip struct {
	Index int
	Track int
	Start timecode.Ticks
	End   timecode.Ticks
	Item  host.TrackItem
}

// Duration returns the clip length in ticks.
func (c Clip) Duration() timecode.Ticks {
	return c.End - c.Start
}

// CutPoint is a boundary between two adjacent clips whose gap is below the
// threshold. Index counts detected cuts only.
type CutPoint struct {
	Index    int
	Outgoing Clip
	Incoming Clip
	Gap      timecode.Ticks
}

// Load reads the clips on track, sorted by start. Ties keep host order.
// Fewer than two clips is ErrInsufficientClips.
func Load(ctx context.Context, s host.Session, track int) ([]Clip, error) {
	clips, err := Read(ctx, s, track)
	if err != nil {
		return nil, err
	}
	if len(clips) < 2 {
		return nil, fmt.Errorf("track %d has %d clips: %w", track, len(clips), ErrInsufficientClips)
	}
	return clips, nil
}

// Read is Load without the two-clip minimum.
func Read(ctx context.Context, s host.Session, track int) ([]Clip, error) {
	items, err := s.TrackItems(ctx, track)
	if err != nil {
		return nil, fmt.Errorf("failed to read track %d: %w", track, err)
	}

	clips := make([]Clip, 0, len(items))
	for _, item := range items {
		start, err := item.Start(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read start of clip %s: %w", item.ID(), err)
		}
		end, err := item.End(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read end of clip %s: %w", item.ID(), err)
		}
		clips = append(clips, Clip{Track: track, Start: start, End: end, Item: item})
	}

	sort.SliceStable(clips, func(i, j int) bool {
		return clips[i].Start < clips[j].Start
	})
	for i := range clips {
		clips[i].Index = i
	}
	return clips, nil
}

// DetectCutPoints returns the adjacent pairs whose gap |end(A) - start(B)| is
// below threshold seconds, in timeline order.
func DetectCutPoints(clips []Clip, codec timecode.Codec, threshold float64) []CutPoint {
	limit := codec.ToTicks(threshold)
	var cuts []CutPoint
	for i := 0; i+1 < len(clips); i++ {
		gap := timecode.Abs(clips[i].End, clips[i+1].Start)
		if gap >= limit {
			continue
		}
		cuts = append(cuts, CutPoint{
			Index:    len(cuts),
			Outgoing: clips[i],
			Incoming: clips[i+1],
			Gap:      gap,
		})
	}
	return cuts
}

// Graph indexes ordered clips for adjacency queries.
type Graph struct {
	clips []Clip
}

// NewGraph wraps clips, which must already be ordered.
func NewGraph(clips []Clip) *Graph {
	return &Graph{clips: clips}
}

func (g *Graph) Len() int      { return len(g.clips) }
func (g *Graph) Clips() []Clip { return g.clips }

// At returns clip i.
func (g *Graph) At(i int) (Clip, bool) {
	if i < 0 || i >= len(g.clips) {
		return Clip{}, false
	}
	return g.clips[i], true
}

// Prev returns the clip before i.
func (g *Graph) Prev(i int) (Clip, bool) {
	return g.At(i - 1)
}

// Next returns the clip after i.
func (g *Graph) Next(i int) (Clip, bool) {
	if i < 0 {
		return Clip{}, false
	}
	return g.At(i + 1)
}

// Gap returns the gap between clip i and clip i+1.
func (g *Graph) Gap(i int) (timecode.Ticks, bool) {
	a, ok := g.At(i)
	if !ok {
		return 0, false
	}
	b, ok := g.Next(i)
	if !ok {
		return 0, false
	}
	return timecode.Abs(a.End, b.Start), true
}
