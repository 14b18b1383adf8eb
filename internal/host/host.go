// Package host describes the capability surface of the editing application
// that owns the timeline document. The pipeline only ever talks to the host
// through these interfaces; every call may suspend, so each takes a context.
package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/cutpilot/cutpilot-agent/internal/timecode"
)

var (
	ErrNoActiveDocument = errors.New("no active document")
	ErrNoActiveSession  = errors.New("no active edit session")

	ErrCapabilityUnavailable = errors.New("host capability unavailable")
)

// CapabilityError reports an action builder the host does not provide.
type CapabilityError struct {
	Capability Capability
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("host capability unavailable: %s", e.Capability)
}

func (e *CapabilityError) Is(target error) bool {
	return target == ErrCapabilityUnavailable
}

// Unavailable returns a CapabilityError for c.
func Unavailable(c Capability) error {
	return &CapabilityError{Capability: c}
}

// Host is the entry point into the editing application.
type Host interface {
	// ActiveDocument returns ErrNoActiveDocument when nothing is open.
	ActiveDocument(ctx context.Context) (Document, error)

	// TempDir returns a writable process temp directory.
	TempDir(ctx context.Context) (string, error)

	// ResourceDir returns the plugin resource directory holding export presets.
	ResourceDir(ctx context.Context) (string, error)
}

// Document is an open project.
type Document interface {
	// Path is the persisted location of the document, empty when unsaved.
	Path() string

	// ActiveSession returns ErrNoActiveSession when no timeline is active.
	ActiveSession(ctx context.Context) (Session, error)

	// ExecuteTransaction applies all actions atomically: either every action
	// applies or none does.
	ExecuteTransaction(ctx context.Context, actions ...Action) error
}

// Session is the active editable timeline.
type Session interface {
	// ID identifies the session for capability caching.
	ID() string
	Name() string

	// Supports reports whether the host exposes capability c for this session.
	Supports(c Capability) bool

	TrackItems(ctx context.Context, track int) ([]TrackItem, error)
	FrameGeometry(ctx context.Context) (Geometry, error)
	FrameRate(ctx context.Context) (float64, error)

	// ExportFrame renders the frame at position into dir/filename. A false
	// result without an error means the host declined.
	ExportFrame(ctx context.Context, at timecode.Ticks, filename, dir string, width, height int) (bool, error)

	// ExportAudio encodes the whole session audio to path with the given preset.
	ExportAudio(ctx context.Context, path, presetPath string) error

	Playhead(ctx context.Context) (timecode.Ticks, error)
	SetPlayhead(ctx context.Context, at timecode.Ticks) error

	NewSetInPointAction(at timecode.Ticks) (Action, error)
	NewSetOutPointAction(at timecode.Ticks) (Action, error)
	// NewRippleDeleteAction removes [in, out) and closes the gap.
	NewRippleDeleteAction(in, out timecode.Ticks) (Action, error)
	NewAddMarkerAction(m Marker) (Action, error)

	NewTransition(ctx context.Context, name string) (Transition, error)
}

// TrackItem is an opaque handle to a clip on a track.
type TrackItem interface {
	ID() string
	Start(ctx context.Context) (timecode.Ticks, error)
	End(ctx context.Context) (timecode.Ticks, error)
	NewAddTransitionAction(t Transition, opts TransitionOptions) (Action, error)
}

// Transition is a host transition effect resolved by name.
type Transition interface {
	Name() string
}

// TransitionOptions configures how a transition is attached to a clip.
// Duration of zero keeps the transition's default length.
type TransitionOptions struct {
	ApplyToStart     bool
	ForceSingleSided bool
	Duration         timecode.Ticks
}

// Action is a mutation built by the host, executed through a transaction.
type Action interface {
	Kind() string
}

// Marker is a named point or span on the timeline.
type Marker struct {
	Start      timecode.Ticks
	Duration   timecode.Ticks
	Name       string
	Comment    string
	ColorIndex int
}

// Geometry is the frame size reported by the session. Hosts report either a
// width/height pair or a bounding rect.
type Geometry struct {
	Width  float64
	Height float64
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// Size resolves the geometry to whole pixels, falling back to 1920x1080.
func (g Geometry) Size() (int, int) {
	w := g.Width
	if w <= 0 {
		w = g.Right - g.Left
	}
	h := g.Height
	if h <= 0 {
		h = g.Bottom - g.Top
	}
	if w <= 0 {
		w = 1920
	}
	if h <= 0 {
		h = 1080
	}
	return int(w + 0.5), int(h + 0.5)
}

// Resolve fetches the active document and session in one step.
func Resolve(ctx context.Context, h Host) (Document, Session, error) {
	doc, err := h.ActiveDocument(ctx)
	if err != nil {
		return nil, nil, err
	}
	if doc == nil {
		return nil, nil, ErrNoActiveDocument
	}
	sess, err := doc.ActiveSession(ctx)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil {
		return nil, nil, ErrNoActiveSession
	}
	return doc, sess, nil
}
