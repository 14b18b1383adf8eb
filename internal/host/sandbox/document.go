// Package sandbox implements the host capability surface over a timeline
// document stored as YAML. It lets the pipeline run end to end without an
// editing application, and backs the tests of every package that edits a
// timeline.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cutpilot/cutpilot-agent/internal/host"
	"github.com/cutpilot/cutpilot-agent/internal/timecode"
)

// Document is the on-disk form of a sandbox timeline. Times are in seconds.
type Document struct {
	Name     string  `yaml:"name"`
	Path     string  `yaml:"path,omitempty"`
	FPS      float64 `yaml:"fps,omitempty"`
	Width    int     `yaml:"width,omitempty"`
	Height   int     `yaml:"height,omitempty"`
	Audio    string  `yaml:"audio,omitempty"`
	Playhead float64 `yaml:"playhead"`
	In       float64 `yaml:"in"`
	Out      float64 `yaml:"out"`

	// Disabled lists capabilities this document pretends the host lacks.
	Disabled []string `yaml:"disabled,omitempty"`

	Tracks      [][]Clip     `yaml:"tracks"`
	Transitions []Transition `yaml:"transitions,omitempty"`
	Markers     []Marker     `yaml:"markers,omitempty"`
}

// Clip is one item on a track.
type Clip struct {
	ID    string  `yaml:"id"`
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

// Transition records a transition attached to a clip.
type Transition struct {
	Clip             string  `yaml:"clip"`
	Name             string  `yaml:"name"`
	Duration         float64 `yaml:"duration,omitempty"`
	ApplyToStart     bool    `yaml:"apply_to_start"`
	ForceSingleSided bool    `yaml:"force_single_sided"`
}

// Marker records a timeline marker.
type Marker struct {
	Start      float64 `yaml:"start"`
	Duration   float64 `yaml:"duration,omitempty"`
	Name       string  `yaml:"name"`
	Comment    string  `yaml:"comment,omitempty"`
	ColorIndex int     `yaml:"color_index"`
}

// ReadDocument parses a YAML timeline file.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timeline: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse timeline %s: %w", filepath.Base(path), err)
	}
	return &doc, nil
}

// WriteDocument writes doc to path through a temp file and rename.
func WriteDocument(path string, doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode timeline: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".timeline-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to write timeline: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write timeline: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write timeline: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace timeline: %w", err)
	}
	return nil
}

type clip struct {
	id         string
	start, end timecode.Ticks
}

type transition struct {
	clip             string
	name             string
	duration         timecode.Ticks
	applyToStart     bool
	forceSingleSided bool
}

// state is the tick-domain working copy of a Document.
type state struct {
	name     string
	path     string
	fps      float64
	width    int
	height   int
	audio    string
	playhead timecode.Ticks
	in, out  timecode.Ticks
	disabled map[host.Capability]bool

	tracks      [][]clip
	transitions []transition
	markers     []host.Marker
}

func fromDocument(doc *Document, c timecode.Codec) *state {
	s := &state{
		name:     doc.Name,
		path:     doc.Path,
		fps:      doc.FPS,
		width:    doc.Width,
		height:   doc.Height,
		audio:    doc.Audio,
		playhead: c.ToTicks(doc.Playhead),
		in:       c.ToTicks(doc.In),
		out:      c.ToTicks(doc.Out),
		disabled: make(map[host.Capability]bool, len(doc.Disabled)),
	}
	for _, d := range doc.Disabled {
		s.disabled[host.Capability(d)] = true
	}
	for _, track := range doc.Tracks {
		clips := make([]clip, 0, len(track))
		for _, cl := range track {
			clips = append(clips, clip{id: cl.ID, start: c.ToTicks(cl.Start), end: c.ToTicks(cl.End)})
		}
		s.tracks = append(s.tracks, clips)
	}
	for _, t := range doc.Transitions {
		s.transitions = append(s.transitions, transition{
			clip:             t.Clip,
			name:             t.Name,
			duration:         c.ToTicks(t.Duration),
			applyToStart:     t.ApplyToStart,
			forceSingleSided: t.ForceSingleSided,
		})
	}
	for _, m := range doc.Markers {
		s.markers = append(s.markers, host.Marker{
			Start:      c.ToTicks(m.Start),
			Duration:   c.ToTicks(m.Duration),
			Name:       m.Name,
			Comment:    m.Comment,
			ColorIndex: m.ColorIndex,
		})
	}
	return s
}

func (s *state) toDocument(c timecode.Codec) *Document {
	doc := &Document{
		Name:     s.name,
		Path:     s.path,
		FPS:      s.fps,
		Width:    s.width,
		Height:   s.height,
		Audio:    s.audio,
		Playhead: c.ToSeconds(s.playhead),
		In:       c.ToSeconds(s.in),
		Out:      c.ToSeconds(s.out),
	}
	for _, capName := range host.AllCapabilities {
		if s.disabled[capName] {
			doc.Disabled = append(doc.Disabled, string(capName))
		}
	}
	for _, track := range s.tracks {
		clips := make([]Clip, 0, len(track))
		for _, cl := range track {
			clips = append(clips, Clip{ID: cl.id, Start: c.ToSeconds(cl.start), End: c.ToSeconds(cl.end)})
		}
		doc.Tracks = append(doc.Tracks, clips)
	}
	for _, t := range s.transitions {
		doc.Transitions = append(doc.Transitions, Transition{
			Clip:             t.clip,
			Name:             t.name,
			Duration:         c.ToSeconds(t.duration),
			ApplyToStart:     t.applyToStart,
			ForceSingleSided: t.forceSingleSided,
		})
	}
	for _, m := range s.markers {
		doc.Markers = append(doc.Markers, Marker{
			Start:      c.ToSeconds(m.Start),
			Duration:   c.ToSeconds(m.Duration),
			Name:       m.Name,
			Comment:    m.Comment,
			ColorIndex: m.ColorIndex,
		})
	}
	return doc
}

func (s *state) clone() *state {
	cp := *s
	cp.disabled = make(map[host.Capability]bool, len(s.disabled))
	for k, v := range s.disabled {
		cp.disabled[k] = v
	}
	cp.tracks = make([][]clip, len(s.tracks))
	for i, track := range s.tracks {
		cp.tracks[i] = append([]clip(nil), track...)
	}
	cp.transitions = append([]transition(nil), s.transitions...)
	cp.markers = append([]host.Marker(nil), s.markers...)
	return &cp
}

func (s *state) findClip(id string) (clip, bool) {
	for _, track := range s.tracks {
		for _, cl := range track {
			if cl.id == id {
				return cl, true
			}
		}
	}
	return clip{}, false
}

// end is the position after the last clip on any track.
func (s *state) end() timecode.Ticks {
	var end timecode.Ticks
	for _, track := range s.tracks {
		for _, cl := range track {
			if cl.end > end {
				end = cl.end
			}
		}
	}
	return end
}

// rippleDelete removes [in, out) from every track and shifts later content.
// A clip spanning the range is split in two.
func (s *state) rippleDelete(in, out timecode.Ticks) {
	d := out - in
	for i, track := range s.tracks {
		next := make([]clip, 0, len(track))
		for _, cl := range track {
			switch {
			case cl.end <= in:
				next = append(next, cl)
			case cl.start >= out:
				next = append(next, clip{id: cl.id, start: cl.start - d, end: cl.end - d})
			default:
				if cl.start < in {
					next = append(next, clip{id: cl.id, start: cl.start, end: in})
				}
				if cl.end > out {
					id := cl.id
					if cl.start < in {
						id = cl.id + ".2"
					}
					next = append(next, clip{id: id, start: in, end: cl.end - d})
				}
			}
		}
		s.tracks[i] = next
	}

	markers := s.markers[:0]
	for _, m := range s.markers {
		switch {
		case m.Start >= out:
			m.Start -= d
		case m.Start >= in:
			continue
		}
		markers = append(markers, m)
	}
	s.markers = markers

	switch {
	case s.playhead >= out:
		s.playhead -= d
	case s.playhead > in:
		s.playhead = in
	}
	s.in, s.out = 0, 0
}
