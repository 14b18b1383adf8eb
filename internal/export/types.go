package export

import "github.com/cutpilot/cutpilot-agent/internal/timecode"

// Request is the body of POST /export/edl.
type Request struct {
	Title     string `json:"title"`
	OutputDir string `json:"output_dir"`
}

// Event is one clip of the cut list. Source is the clip's span on the
// timeline; the record side is laid end to end in event order.
type Event struct {
	Name      string
	SourceIn  timecode.Ticks
	SourceOut timecode.Ticks
}

// Response describes a written cut list.
type Response struct {
	Status     string  `json:"status"`
	Format     string  `json:"format"`
	OutputPath string  `json:"output_path"`
	EventCount int     `json:"event_count"`
	FrameRate  float64 `json:"frame_rate"`
}
