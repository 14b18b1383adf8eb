package agent

import (
	"context"

	"github.com/cutpilot/cutpilot-agent/internal/export"
	"github.com/cutpilot/cutpilot-agent/internal/host"
	"github.com/cutpilot/cutpilot-agent/internal/timecode"
	"github.com/cutpilot/cutpilot-agent/internal/timeline"
)

// Status describes the host document and what the agent can do with it.
type Status struct {
	Busy      bool       `json:"busy"`
	Document  string     `json:"document,omitempty"`
	Sequence  string     `json:"sequence,omitempty"`
	FrameRate float64    `json:"frame_rate,omitempty"`
	Clips     int        `json:"clips"`
	Missing   []string   `json:"missing_capabilities,omitempty"`
	HostError string     `json:"host_error,omitempty"`
	Review    ReviewView `json:"review"`
}

// Status reads the host without waiting for a running message.
func (a *Agent) Status(ctx context.Context) Status {
	st := Status{Busy: a.Busy(), Review: a.ReviewState()}

	doc, s, err := host.Resolve(ctx, a.host)
	if err != nil {
		st.HostError = err.Error()
		return st
	}
	st.Document = doc.Path()
	st.Sequence = s.Name()
	if fps, err := s.FrameRate(ctx); err == nil {
		st.FrameRate = fps
	}
	st.Missing = a.probe.Get(ctx, s).Missing()
	if items, err := s.TrackItems(ctx, a.settings.Track); err == nil {
		st.Clips = len(items)
	}
	return st
}

// ExportEDL writes the configured track of the active sequence as an edit
// decision list into dir.
func (a *Agent) ExportEDL(ctx context.Context, dir, title string) (*export.Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, s, err := host.Resolve(ctx, a.host)
	if err != nil {
		return nil, err
	}
	clips, err := timeline.Read(ctx, s, a.settings.Track)
	if err != nil {
		return nil, err
	}
	fps, err := s.FrameRate(ctx)
	if err != nil || fps <= 0 {
		fps = timecode.DefaultFrameRate
	}
	if title == "" {
		title = s.Name()
	}
	resp, err := export.WriteEDL(dir, title, export.EventsFromClips(clips), fps, a.codec)
	if err != nil {
		return nil, err
	}
	a.logger.InfoContext(ctx, "exported edit decision list", "events", resp.EventCount, "path", resp.OutputPath)
	return resp, nil
}
