package sandbox

import (
	"fmt"

	"github.com/cutpilot/cutpilot-agent/internal/host"
	"github.com/cutpilot/cutpilot-agent/internal/timecode"
)

// action is implemented by every action this host builds.
type action interface {
	host.Action
	apply(s *state) error
}

type setInAction struct{ at timecode.Ticks }

func (setInAction) Kind() string { return "set_in_point" }

func (a setInAction) apply(s *state) error {
	if a.at < 0 {
		return fmt.Errorf("in point %d is negative", a.at)
	}
	s.in = a.at
	return nil
}

type setOutAction struct{ at timecode.Ticks }

func (setOutAction) Kind() string { return "set_out_point" }

func (a setOutAction) apply(s *state) error {
	if a.at < 0 {
		return fmt.Errorf("out point %d is negative", a.at)
	}
	s.out = a.at
	return nil
}

type rippleDeleteAction struct{ in, out timecode.Ticks }

func (rippleDeleteAction) Kind() string { return "ripple_delete" }

func (a rippleDeleteAction) apply(s *state) error {
	if a.in < 0 || a.out <= a.in {
		return fmt.Errorf("invalid delete range [%d, %d)", a.in, a.out)
	}
	s.rippleDelete(a.in, a.out)

	kept := s.transitions[:0]
	for _, t := range s.transitions {
		if _, ok := s.findClip(t.clip); ok {
			kept = append(kept, t)
		}
	}
	s.transitions = kept
	return nil
}

type addMarkerAction struct{ marker host.Marker }

func (addMarkerAction) Kind() string { return "add_marker" }

// apply replaces a marker with the same start and name.
func (a addMarkerAction) apply(s *state) error {
	if a.marker.Start < 0 {
		return fmt.Errorf("marker %q starts before zero", a.marker.Name)
	}
	for i, m := range s.markers {
		if m.Start == a.marker.Start && m.Name == a.marker.Name {
			s.markers[i] = a.marker
			return nil
		}
	}
	s.markers = append(s.markers, a.marker)
	return nil
}

type addTransitionAction struct {
	clip string
	name string
	opts host.TransitionOptions
}

func (addTransitionAction) Kind() string { return "add_transition" }

// apply replaces an existing transition on the same clip edge.
func (a addTransitionAction) apply(s *state) error {
	if _, ok := s.findClip(a.clip); !ok {
		return fmt.Errorf("clip %q not found", a.clip)
	}
	t := transition{
		clip:             a.clip,
		name:             a.name,
		duration:         a.opts.Duration,
		applyToStart:     a.opts.ApplyToStart,
		forceSingleSided: a.opts.ForceSingleSided,
	}
	for i, existing := range s.transitions {
		if existing.clip == t.clip && existing.applyToStart == t.applyToStart {
			s.transitions[i] = t
			return nil
		}
	}
	s.transitions = append(s.transitions, t)
	return nil
}
