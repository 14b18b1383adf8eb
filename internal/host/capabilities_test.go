package host

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// probeSession counts Supports calls; everything but the listed
// capabilities is supported.
type probeSession struct {
	Session
	id      string
	missing map[Capability]bool
	calls   atomic.Int32
}

func (s *probeSession) ID() string { return s.id }

func (s *probeSession) Supports(c Capability) bool {
	s.calls.Add(1)
	return !s.missing[c]
}

func TestProbe_ReportsMissing(t *testing.T) {
	s := &probeSession{id: "seq", missing: map[Capability]bool{CapRippleDelete: true, CapMarkers: true}}
	caps := Probe(s)

	if !caps.Has(CapSetInPoint) {
		t.Error("expected set_in_point to be supported")
	}
	if caps.Has(CapRippleDelete) {
		t.Error("expected ripple_delete to be missing")
	}

	missing := caps.Missing()
	if len(missing) != 2 || missing[0] != "markers" || missing[1] != "ripple_delete" {
		t.Errorf("Missing() = %v, want [markers ripple_delete]", missing)
	}

	err := caps.Require(CapSetInPoint, CapSetOutPoint, CapRippleDelete)
	if !errors.Is(err, ErrCapabilityUnavailable) {
		t.Fatalf("Require() error = %v, want ErrCapabilityUnavailable", err)
	}
	var capErr *CapabilityError
	if !errors.As(err, &capErr) || capErr.Capability != CapRippleDelete {
		t.Errorf("Require() error = %v, want ripple_delete capability error", err)
	}
}

func TestCapabilities_NilHasNothing(t *testing.T) {
	var caps *Capabilities
	if caps.Has(CapPlayhead) {
		t.Error("nil capabilities must not report support")
	}
}

func TestCachedProbe_CachesPerSession(t *testing.T) {
	p := NewCachedProbe(testLogger())
	now := time.Now()
	p.now = func() time.Time { return now }

	a := &probeSession{id: "a"}
	p.Get(context.Background(), a)
	p.Get(context.Background(), a)
	if got := int(a.calls.Load()); got != len(AllCapabilities) {
		t.Errorf("probe calls = %d, want %d (second Get should hit cache)", got, len(AllCapabilities))
	}

	b := &probeSession{id: "b"}
	caps := p.Get(context.Background(), b)
	if caps.SessionID != "b" {
		t.Errorf("SessionID = %q, want b", caps.SessionID)
	}
	if b.calls.Load() == 0 {
		t.Error("a different session must be probed")
	}
}

func TestCachedProbe_ExpiresAfterTTL(t *testing.T) {
	p := NewCachedProbe(testLogger())
	now := time.Now()
	p.now = func() time.Time { return now }

	s := &probeSession{id: "a"}
	p.Get(context.Background(), s)

	now = now.Add(defaultCacheTTL + time.Second)
	p.Get(context.Background(), s)
	if got := int(s.calls.Load()); got != 2*len(AllCapabilities) {
		t.Errorf("probe calls = %d, want %d", got, 2*len(AllCapabilities))
	}

	p.Invalidate()
	if p.Peek() != nil {
		t.Error("Peek() after Invalidate should be nil")
	}
}

func TestGeometry_Size(t *testing.T) {
	tests := []struct {
		name  string
		g     Geometry
		wantW int
		wantH int
	}{
		{"width and height", Geometry{Width: 1280, Height: 720}, 1280, 720},
		{"rect", Geometry{Left: 0, Top: 0, Right: 3840, Bottom: 2160}, 3840, 2160},
		{"unavailable", Geometry{}, 1920, 1080},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := tt.g.Size()
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("Size() = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}
