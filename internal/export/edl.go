// Package export writes the current timeline track as a CMX3600 edit
// decision list and sanitizes the names used for exported files.
package export

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/cutpilot/cutpilot-agent/internal/timecode"
	"github.com/cutpilot/cutpilot-agent/internal/timeline"
)

const (
	// DefaultTitle names cut lists exported without a title.
	DefaultTitle = "cutpilot_export"

	maxTitleLen = 120
	maxNameLen  = 160
)

var ErrNoEvents = errors.New("timeline has no clips to export")

// EventsFromClips turns ordered timeline clips into cut list events.
// Zero-length clips are left out.
func EventsFromClips(clips []timeline.Clip) []Event {
	events := make([]Event, 0, len(clips))
	for _, c := range clips {
		if c.End <= c.Start {
			continue
		}
		name := ""
		if c.Item != nil {
			name = SanitizeName(c.Item.ID(), maxNameLen)
		}
		if name == "" {
			name = fmt.Sprintf("Clip %d", c.Index+1)
		}
		events = append(events, Event{Name: name, SourceIn: c.Start, SourceOut: c.End})
	}
	return events
}

// GenerateEDL renders events as a CMX3600 list at fps.
func GenerateEDL(events []Event, title string, fps float64, codec timecode.Codec) string {
	if fps <= 0 {
		fps = timecode.DefaultFrameRate
	}
	isDropFrame := math.Abs(fps-29.97) < 0.01 || math.Abs(fps-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	var record timecode.Ticks
	for i, ev := range events {
		duration := ev.SourceOut - ev.SourceIn
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V",
				codec.Timecode(ev.SourceIn, fps), codec.Timecode(ev.SourceOut, fps),
				codec.Timecode(record, fps), codec.Timecode(record+duration, fps)),
			fmt.Sprintf("* FROM CLIP NAME:  %s", ev.Name),
		)
		record += duration
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// WriteEDL validates dir, renders events and writes <title>.edl into it.
func WriteEDL(dir, title string, events []Event, fps float64, codec timecode.Codec) (*Response, error) {
	if err := ValidateOutputDir(dir); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	name := SanitizeName(title, maxTitleLen)
	if name == "" {
		name = DefaultTitle
	}

	out := filepath.Join(dir, name+".edl")
	if err := os.WriteFile(out, []byte(GenerateEDL(events, name, fps, codec)), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write export file: %w", err)
	}
	return &Response{
		Status:     "ok",
		Format:     "edl",
		OutputPath: out,
		EventCount: len(events),
		FrameRate:  fps,
	}, nil
}
