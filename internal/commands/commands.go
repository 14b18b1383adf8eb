// Package commands decodes the commands returned by the inference service into
// a closed set of typed variants and dispatches them to their appliers.
package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Actions understood by this client.
const (
	ActionTrimSilence   = "trim_silence"
	ActionAddTransition = "add_transition"
	ActionMarkProfanity = "curseword_detect"
)

// DefaultTransitionDuration is used when an instruction carries no positive
// duration. Positive durations are clamped to [MinTransitionDuration,
// MaxTransitionDuration].
const (
	DefaultTransitionDuration = 1.0
	MinTransitionDuration     = 0.1
	MaxTransitionDuration     = 2.0
)

var (
	ErrUnknownAction    = errors.New("unknown action")
	ErrMalformedPayload = errors.New("malformed command payload")
)

// Raw is a command as it appears on the wire.
type Raw struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// Command is one of TrimSilence, AddTransition, MarkProfanity or Unrecognized.
type Command interface {
	Action() string
	command()
}

// Segment is a [start, end] pair in seconds.
type Segment [2]float64

// TrimSilence removes or reviews silent ranges. Dropped holds the payload
// indices of segments that were not [start, end] pairs.
type TrimSilence struct {
	Segments []Segment
	Dropped  []int
}

// TransitionInstruction places one transition at a detected cut.
type TransitionInstruction struct {
	CutIndex        int     `json:"cut_index"`
	TransitionName  string  `json:"transition_name"`
	DurationSeconds float64 `json:"duration"`
	VibeUsed        string  `json:"vibe_used,omitempty"`
}

// Duration returns the instruction duration in seconds, falling back to
// DefaultTransitionDuration.
func (t TransitionInstruction) Duration() float64 {
	if t.DurationSeconds <= 0 {
		return DefaultTransitionDuration
	}
	return max(MinTransitionDuration, min(t.DurationSeconds, MaxTransitionDuration))
}

// AddTransition inserts transitions at cut points.
type AddTransition struct {
	Transitions []TransitionInstruction
}

// MarkerSpec is one flagged span in seconds.
type MarkerSpec struct {
	StartSeconds    float64 `json:"start_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
	Name            string  `json:"name"`
	Comment         string  `json:"comment"`
	ColorIndex      int     `json:"color_index"`
}

// MarkProfanity drops a marker on every flagged span.
type MarkProfanity struct {
	Markers []MarkerSpec
}

// Unrecognized carries an action this client does not know.
type Unrecognized struct {
	Name    string
	Payload json.RawMessage
}

func (TrimSilence) Action() string   { return ActionTrimSilence }
func (AddTransition) Action() string { return ActionAddTransition }
func (MarkProfanity) Action() string { return ActionMarkProfanity }
func (u Unrecognized) Action() string {
	return u.Name
}

func (TrimSilence) command()   {}
func (AddTransition) command() {}
func (MarkProfanity) command() {}
func (Unrecognized) command()  {}

// Decode converts a raw command into its typed variant. Unknown actions
// decode to Unrecognized without error. Item-level problems such as a
// malformed segment or an out-of-range cut index are left to the appliers so
// one bad item never discards the rest of the command.
func Decode(raw Raw) (Command, error) {
	switch raw.Action {
	case ActionTrimSilence:
		var p struct {
			Segments []json.RawMessage `json:"segments"`
		}
		if err := unmarshalPayload(raw.Payload, &p); err != nil {
			return nil, err
		}
		cmd := TrimSilence{Segments: make([]Segment, 0, len(p.Segments))}
		for i, s := range p.Segments {
			var pair []float64
			if err := json.Unmarshal(s, &pair); err != nil || len(pair) != 2 {
				cmd.Dropped = append(cmd.Dropped, i)
				continue
			}
			cmd.Segments = append(cmd.Segments, Segment{pair[0], pair[1]})
		}
		return cmd, nil

	case ActionAddTransition:
		var p struct {
			Transitions []TransitionInstruction `json:"transitions"`
		}
		if err := unmarshalPayload(raw.Payload, &p); err != nil {
			return nil, err
		}
		return AddTransition{Transitions: p.Transitions}, nil

	case ActionMarkProfanity:
		var p struct {
			Markers []MarkerSpec `json:"markers"`
		}
		if err := unmarshalPayload(raw.Payload, &p); err != nil {
			return nil, err
		}
		return MarkProfanity{Markers: p.Markers}, nil

	default:
		return Unrecognized{Name: raw.Action, Payload: raw.Payload}, nil
	}
}

func unmarshalPayload(payload json.RawMessage, v any) error {
	if isNull(payload) {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
