// Package gather collects the evidence the inference service needs for each
// tool it asks for: an audio render for silence and profanity detection, and
// frame pairs around every clip boundary for transitions.
package gather

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// Tool names as issued by the inference service.
const (
	ToolTrimSilence    = "trim_silence"
	ToolAddTransition  = "add_transition"
	ToolCursewordCheck = "curseword_detect"
)

// Evidence is the output of one gatherer. Err is set when gathering failed.
type Evidence struct {
	AudioPath  string     `json:"audio_path,omitempty"`
	FramePaths [][]string `json:"frame_paths,omitempty"`
	Err        string     `json:"error,omitempty"`
}

// Failed reports whether the gatherer recorded an error.
func (e Evidence) Failed() bool {
	return e.Err != ""
}

// Bag holds evidence keyed by tool name.
type Bag map[string]Evidence

// AudioPath returns the first audio render found, in tool name order.
func (b Bag) AudioPath() string {
	for _, name := range b.names() {
		if p := b[name].AudioPath; p != "" {
			return p
		}
	}
	return ""
}

// FramePaths returns the first frame-pair evidence found, in tool name order.
func (b Bag) FramePaths() [][]string {
	for _, name := range b.names() {
		if p := b[name].FramePaths; p != nil {
			return p
		}
	}
	return nil
}

// Errors returns tool -> error message for failed gatherers.
func (b Bag) Errors() map[string]string {
	out := make(map[string]string)
	for name, ev := range b {
		if ev.Failed() {
			out[name] = ev.Err
		}
	}
	return out
}

func (b Bag) names() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Gatherer inspects current host state and produces evidence.
type Gatherer interface {
	Gather(ctx context.Context) (Evidence, error)
}

// GathererFunc adapts a function to Gatherer.
type GathererFunc func(ctx context.Context) (Evidence, error)

func (f GathererFunc) Gather(ctx context.Context) (Evidence, error) {
	return f(ctx)
}

// Registry maps tool names to gatherers.
type Registry struct {
	logger *slog.Logger

	mu        sync.RWMutex
	gatherers map[string]*binding
}

// binding is one registered gatherer, shared by every name it serves.
type binding struct {
	g Gatherer
}

type outcome struct {
	ev  Evidence
	err error
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger, gatherers: make(map[string]*binding)}
}

// Register binds every name to g, replacing any earlier binding. Names
// registered together share one run per Gather call.
func (r *Registry) Register(g Gatherer, names ...string) {
	b := &binding{g: g}
	r.mu.Lock()
	for _, name := range names {
		r.gatherers[name] = b
	}
	r.mu.Unlock()
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.gatherers))
	for name := range r.gatherers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Gather runs the gatherer of every requested tool in order. Unknown tools
// are skipped. A gatherer shared by several requested tools runs once and
// its evidence is recorded under each of them. A failing gatherer is
// recorded in the bag and does not stop the others.
func (r *Registry) Gather(ctx context.Context, tools []string) Bag {
	bag := make(Bag, len(tools))
	runs := make(map[*binding]outcome)
	for _, name := range tools {
		if _, done := bag[name]; done {
			continue
		}
		r.mu.RLock()
		b, ok := r.gatherers[name]
		r.mu.RUnlock()
		if !ok {
			r.logger.WarnContext(ctx, "no gatherer for tool", "tool", name)
			continue
		}

		res, shared := runs[b]
		if !shared {
			res.ev, res.err = b.g.Gather(ctx)
			runs[b] = res
		}
		if res.err != nil {
			if !shared {
				r.logger.WarnContext(ctx, "gather failed", "tool", name, "error", res.err)
			}
			bag[name] = Evidence{Err: res.err.Error()}
			continue
		}
		r.logger.InfoContext(ctx, "gathered evidence", "tool", name, "audio", res.ev.AudioPath != "", "frame_groups", len(res.ev.FramePaths), "shared", shared)
		bag[name] = res.ev
	}
	return bag
}
