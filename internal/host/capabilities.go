package host

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const defaultCacheTTL = 5 * time.Minute

// Capability names a host action builder or query the pipeline depends on.
type Capability string

const (
	CapSetInPoint    Capability = "set_in_point"
	CapSetOutPoint   Capability = "set_out_point"
	CapRippleDelete  Capability = "ripple_delete"
	CapPlayhead      Capability = "playhead"
	CapTransition    Capability = "transition"
	CapTransitionDur Capability = "transition_duration"
	CapFrameExport   Capability = "frame_export"
	CapAudioExport   Capability = "audio_export"
	CapMarkers       Capability = "markers"
)

// AllCapabilities lists every capability Probe checks.
var AllCapabilities = []Capability{
	CapSetInPoint,
	CapSetOutPoint,
	CapRippleDelete,
	CapPlayhead,
	CapTransition,
	CapTransitionDur,
	CapFrameExport,
	CapAudioExport,
	CapMarkers,
}

// Capabilities is the probed capability set of one session.
type Capabilities struct {
	SessionID string
	Supported map[Capability]bool
	ProbedAt  time.Time
}

// Has reports whether c was present when the session was probed.
func (c *Capabilities) Has(want Capability) bool {
	if c == nil {
		return false
	}
	return c.Supported[want]
}

// Require returns a CapabilityError for the first capability in caps that is
// missing.
func (c *Capabilities) Require(caps ...Capability) error {
	for _, want := range caps {
		if !c.Has(want) {
			return Unavailable(want)
		}
	}
	return nil
}

// Missing returns the unsupported capabilities in sorted order.
func (c *Capabilities) Missing() []string {
	var out []string
	for _, want := range AllCapabilities {
		if !c.Has(want) {
			out = append(out, string(want))
		}
	}
	sort.Strings(out)
	return out
}

// Probe queries every known capability on the session.
func Probe(s Session) *Capabilities {
	caps := &Capabilities{
		SessionID: s.ID(),
		Supported: make(map[Capability]bool, len(AllCapabilities)),
		ProbedAt:  time.Now(),
	}
	for _, c := range AllCapabilities {
		caps.Supported[c] = s.Supports(c)
	}
	return caps
}

// CachedProbe caches the capability set of the active session with a TTL.
// A different session id always triggers a fresh probe.
type CachedProbe struct {
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	cached *Capabilities
}

// NewCachedProbe creates a capability cache with the default TTL.
func NewCachedProbe(logger *slog.Logger) *CachedProbe {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProbe{
		ttl:    defaultCacheTTL,
		logger: logger,
		now:    time.Now,
	}
}

// Get returns the cached set for s if fresh, otherwise re-probes.
func (p *CachedProbe) Get(ctx context.Context, s Session) *Capabilities {
	p.mu.RLock()
	if c := p.cached; c != nil && c.SessionID == s.ID() && p.now().Sub(c.ProbedAt) < p.ttl {
		p.mu.RUnlock()
		return c
	}
	p.mu.RUnlock()

	return p.Refresh(ctx, s)
}

// Peek returns the last probed set without probing.
func (p *CachedProbe) Peek() *Capabilities {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cached
}

// Refresh probes s regardless of cache freshness.
func (p *CachedProbe) Refresh(ctx context.Context, s Session) *Capabilities {
	p.mu.Lock()
	defer p.mu.Unlock()

	caps := Probe(s)
	caps.ProbedAt = p.now()
	if missing := caps.Missing(); len(missing) > 0 {
		p.logger.InfoContext(ctx, "host capabilities missing", "session", s.ID(), "missing", missing)
	}
	p.cached = caps
	return caps
}

// Invalidate clears the cached set.
func (p *CachedProbe) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}
