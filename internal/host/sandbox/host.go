package sandbox

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/cutpilot/cutpilot-agent/internal/host"
	"github.com/cutpilot/cutpilot-agent/internal/timecode"
)

// ErrForeignAction is returned when a transaction contains an action built by
// another host.
var ErrForeignAction = errors.New("action does not belong to this host")

// Host is a YAML-backed editing host. The zero document (nil) means no
// document is open; a document without a name has no active session.
type Host struct {
	codec  timecode.Codec
	logger *slog.Logger

	mu          sync.Mutex
	file        string
	st          *state
	tempDir     string
	resourceDir string
	sessionGen  int
}

// Option configures a Host.
type Option func(*Host)

// WithTempDir overrides the directory returned by TempDir.
func WithTempDir(dir string) Option {
	return func(h *Host) { h.tempDir = dir }
}

// WithResourceDir overrides the directory returned by ResourceDir.
func WithResourceDir(dir string) Option {
	return func(h *Host) { h.resourceDir = dir }
}

// WithLogger sets the host logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) { h.logger = logger }
}

// New creates an in-memory host for doc. A nil doc means no open document.
func New(doc *Document, codec timecode.Codec, opts ...Option) *Host {
	h := &Host{codec: codec}
	if doc != nil {
		h.st = fromDocument(doc, codec)
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Open loads the YAML timeline at path. Mutations are saved back to it.
func Open(path string, codec timecode.Codec, opts ...Option) (*Host, error) {
	doc, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}
	h := New(doc, codec, append([]Option{WithResourceDir(filepath.Dir(path))}, opts...)...)
	h.file = path
	return h, nil
}

// File returns the backing YAML path, empty for in-memory hosts.
func (h *Host) File() string {
	return h.file
}

// Reload re-reads the backing file, discarding in-memory state.
func (h *Host) Reload() error {
	if h.file == "" {
		return nil
	}
	doc, err := ReadDocument(h.file)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.st = fromDocument(doc, h.codec)
	h.sessionGen++
	h.mu.Unlock()
	return nil
}

// Snapshot returns the current document.
func (h *Host) Snapshot() *Document {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.st == nil {
		return nil
	}
	return h.st.toDocument(h.codec)
}

func (h *Host) ActiveDocument(ctx context.Context) (host.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.st == nil {
		return nil, host.ErrNoActiveDocument
	}
	return &document{h: h, path: h.st.path}, nil
}

func (h *Host) TempDir(ctx context.Context) (string, error) {
	if h.tempDir != "" {
		return h.tempDir, nil
	}
	return os.TempDir(), nil
}

func (h *Host) ResourceDir(ctx context.Context) (string, error) {
	if h.resourceDir == "" {
		return "", errors.New("no resource directory configured")
	}
	return h.resourceDir, nil
}

// save writes the committed state to the backing file. Callers hold mu.
func (h *Host) save() error {
	if h.file == "" || h.st == nil {
		return nil
	}
	return WriteDocument(h.file, h.st.toDocument(h.codec))
}

type document struct {
	h    *Host
	path string
}

func (d *document) Path() string { return d.path }

func (d *document) ActiveSession(ctx context.Context) (host.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.h.mu.Lock()
	defer d.h.mu.Unlock()
	if d.h.st == nil || d.h.st.name == "" {
		return nil, host.ErrNoActiveSession
	}
	return &session{h: d.h, id: fmt.Sprintf("%s#%d", d.h.st.name, d.h.sessionGen), name: d.h.st.name}, nil
}

func (d *document) ExecuteTransaction(ctx context.Context, actions ...host.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h := d.h
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.st == nil {
		return host.ErrNoActiveDocument
	}

	work := h.st.clone()
	for i, a := range actions {
		sa, ok := a.(action)
		if !ok {
			return fmt.Errorf("action %d (%T): %w", i, a, ErrForeignAction)
		}
		if err := sa.apply(work); err != nil {
			return fmt.Errorf("transaction rolled back at action %d (%s): %w", i, a.Kind(), err)
		}
	}
	prev := h.st
	h.st = work
	if err := h.save(); err != nil {
		h.st = prev
		return err
	}
	h.logger.DebugContext(ctx, "transaction committed", "actions", len(actions))
	return nil
}

type session struct {
	h    *Host
	id   string
	name string
}

func (s *session) ID() string   { return s.id }
func (s *session) Name() string { return s.name }

func (s *session) Supports(c host.Capability) bool {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	return s.h.st != nil && !s.h.st.disabled[c]
}

func (s *session) current() (*state, error) {
	if s.h.st == nil {
		return nil, host.ErrNoActiveDocument
	}
	return s.h.st, nil
}

func (s *session) TrackItems(ctx context.Context, track int) ([]host.TrackItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	st, err := s.current()
	if err != nil {
		return nil, err
	}
	if track < 0 || track >= len(st.tracks) {
		return nil, nil
	}
	items := make([]host.TrackItem, 0, len(st.tracks[track]))
	for _, cl := range st.tracks[track] {
		items = append(items, &trackItem{h: s.h, id: cl.id})
	}
	return items, nil
}

func (s *session) FrameGeometry(ctx context.Context) (host.Geometry, error) {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	st, err := s.current()
	if err != nil {
		return host.Geometry{}, err
	}
	return host.Geometry{Width: float64(st.width), Height: float64(st.height)}, nil
}

func (s *session) FrameRate(ctx context.Context) (float64, error) {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	st, err := s.current()
	if err != nil {
		return 0, err
	}
	if st.fps <= 0 {
		return timecode.DefaultFrameRate, nil
	}
	return st.fps, nil
}

// ExportFrame writes a 1x1 placeholder PNG. Positions past the end of the
// sequence are declined.
func (s *session) ExportFrame(ctx context.Context, at timecode.Ticks, filename, dir string, width, height int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.h.mu.Lock()
	st, err := s.current()
	if err != nil {
		s.h.mu.Unlock()
		return false, err
	}
	declined := st.disabled[host.CapFrameExport] || at < 0 || at > st.end()
	s.h.mu.Unlock()
	if declined {
		return false, nil
	}

	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return false, err
	}
	if err := os.WriteFile(filepath.Join(dir, filename), buf.Bytes(), 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// ExportAudio copies the document's audio file to path, or writes an empty
// WAV when the document has none.
func (s *session) ExportAudio(ctx context.Context, path, presetPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.h.mu.Lock()
	st, err := s.current()
	if err != nil {
		s.h.mu.Unlock()
		return err
	}
	audio := st.audio
	disabled := st.disabled[host.CapAudioExport]
	s.h.mu.Unlock()
	if disabled {
		return host.Unavailable(host.CapAudioExport)
	}
	if _, err := os.Stat(presetPath); err != nil {
		return fmt.Errorf("export preset: %w", err)
	}

	if audio == "" {
		return os.WriteFile(path, emptyWAV(), 0o644)
	}
	if !filepath.IsAbs(audio) && s.h.file != "" {
		audio = filepath.Join(filepath.Dir(s.h.file), audio)
	}
	src, err := os.Open(audio)
	if err != nil {
		return fmt.Errorf("failed to open source audio: %w", err)
	}
	defer src.Close()
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (s *session) Playhead(ctx context.Context) (timecode.Ticks, error) {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	st, err := s.current()
	if err != nil {
		return 0, err
	}
	return st.playhead, nil
}

func (s *session) SetPlayhead(ctx context.Context, at timecode.Ticks) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	st, err := s.current()
	if err != nil {
		return err
	}
	if st.disabled[host.CapPlayhead] {
		return host.Unavailable(host.CapPlayhead)
	}
	if at < 0 {
		at = 0
	}
	st.playhead = at
	return s.h.save()
}

func (s *session) builder(c host.Capability) error {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	if s.h.st != nil && s.h.st.disabled[c] {
		return host.Unavailable(c)
	}
	return nil
}

func (s *session) NewSetInPointAction(at timecode.Ticks) (host.Action, error) {
	if err := s.builder(host.CapSetInPoint); err != nil {
		return nil, err
	}
	return setInAction{at: at}, nil
}

func (s *session) NewSetOutPointAction(at timecode.Ticks) (host.Action, error) {
	if err := s.builder(host.CapSetOutPoint); err != nil {
		return nil, err
	}
	return setOutAction{at: at}, nil
}

func (s *session) NewRippleDeleteAction(in, out timecode.Ticks) (host.Action, error) {
	if err := s.builder(host.CapRippleDelete); err != nil {
		return nil, err
	}
	return rippleDeleteAction{in: in, out: out}, nil
}

func (s *session) NewAddMarkerAction(m host.Marker) (host.Action, error) {
	if err := s.builder(host.CapMarkers); err != nil {
		return nil, err
	}
	return addMarkerAction{marker: m}, nil
}

func (s *session) NewTransition(ctx context.Context, name string) (host.Transition, error) {
	if err := s.builder(host.CapTransition); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.New("transition name is empty")
	}
	return namedTransition(name), nil
}

type namedTransition string

func (t namedTransition) Name() string { return string(t) }

type trackItem struct {
	h  *Host
	id string
}

func (t *trackItem) ID() string { return t.id }

func (t *trackItem) lookup() (clip, error) {
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	if t.h.st == nil {
		return clip{}, host.ErrNoActiveDocument
	}
	cl, ok := t.h.st.findClip(t.id)
	if !ok {
		return clip{}, fmt.Errorf("clip %q no longer on the timeline", t.id)
	}
	return cl, nil
}

func (t *trackItem) Start(ctx context.Context) (timecode.Ticks, error) {
	cl, err := t.lookup()
	return cl.start, err
}

func (t *trackItem) End(ctx context.Context) (timecode.Ticks, error) {
	cl, err := t.lookup()
	return cl.end, err
}

func (t *trackItem) NewAddTransitionAction(tr host.Transition, opts host.TransitionOptions) (host.Action, error) {
	if tr == nil {
		return nil, errors.New("transition is nil")
	}
	t.h.mu.Lock()
	disabled := t.h.st != nil && t.h.st.disabled[host.CapTransitionDur]
	t.h.mu.Unlock()
	if disabled && opts.Duration > 0 {
		return nil, host.Unavailable(host.CapTransitionDur)
	}
	return addTransitionAction{clip: t.id, name: tr.Name(), opts: opts}, nil
}

// emptyWAV returns a 44-byte PCM WAV header with no samples.
func emptyWAV() []byte {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36))
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))     // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1))     // mono
	binary.Write(&buf, binary.LittleEndian, uint32(48000)) // sample rate
	binary.Write(&buf, binary.LittleEndian, uint32(96000)) // byte rate
	binary.Write(&buf, binary.LittleEndian, uint16(2))     // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16))    // bits per sample
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	return buf.Bytes()
}
