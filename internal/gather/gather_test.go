package gather

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cutpilot/cutpilot-agent/internal/frames"
	"github.com/cutpilot/cutpilot-agent/internal/host"
	"github.com/cutpilot/cutpilot-agent/internal/host/sandbox"
	"github.com/cutpilot/cutpilot-agent/internal/timecode"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var codec = timecode.New(timecode.DefaultTicksPerSecond)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSandbox(t *testing.T, doc *sandbox.Document) (*sandbox.Host, string, string) {
	t.Helper()
	tmp := t.TempDir()
	res := t.TempDir()
	return sandbox.New(doc, codec, sandbox.WithTempDir(tmp), sandbox.WithResourceDir(res)), tmp, res
}

func threeClips() *sandbox.Document {
	return &sandbox.Document{
		Name: "seq",
		FPS:  30,
		Tracks: [][]sandbox.Clip{{
			{ID: "a", Start: 0, End: 2},
			{ID: "b", Start: 2, End: 5},
			{ID: "c", Start: 5, End: 7},
		}},
	}
}

func TestRegistry_FailureDoesNotStopSiblings(t *testing.T) {
	r := NewRegistry(testLogger())
	var ran []string
	r.Register(GathererFunc(func(ctx context.Context) (Evidence, error) {
		ran = append(ran, "broken")
		return Evidence{}, errors.New("render crashed")
	}), "broken")
	r.Register(GathererFunc(func(ctx context.Context) (Evidence, error) {
		ran = append(ran, "audio")
		return Evidence{AudioPath: "/tmp/a.wav"}, nil
	}), "audio")

	bag := r.Gather(context.Background(), []string{"broken", "unknown_tool", "audio", "audio"})

	assert.Equal(t, []string{"broken", "audio"}, ran)
	assert.Equal(t, "render crashed", bag["broken"].Err)
	assert.Equal(t, "/tmp/a.wav", bag.AudioPath())
	assert.NotContains(t, bag, "unknown_tool")
	assert.Equal(t, map[string]string{"broken": "render crashed"}, bag.Errors())
}

func TestRegistry_SharedGathererRunsOnce(t *testing.T) {
	r := NewRegistry(testLogger())
	calls := 0
	r.Register(GathererFunc(func(ctx context.Context) (Evidence, error) {
		calls++
		return Evidence{AudioPath: "/tmp/session.wav"}, nil
	}), ToolTrimSilence, ToolCursewordCheck)

	bag := r.Gather(context.Background(), []string{ToolTrimSilence, ToolCursewordCheck})

	assert.Equal(t, 1, calls)
	assert.Equal(t, "/tmp/session.wav", bag[ToolTrimSilence].AudioPath)
	assert.Equal(t, "/tmp/session.wav", bag[ToolCursewordCheck].AudioPath)

	r.Gather(context.Background(), []string{ToolCursewordCheck})
	assert.Equal(t, 2, calls, "each Gather call renders afresh")
}

func TestRegistry_SharedGathererFailureRecordedForEachTool(t *testing.T) {
	r := NewRegistry(testLogger())
	calls := 0
	r.Register(GathererFunc(func(ctx context.Context) (Evidence, error) {
		calls++
		return Evidence{}, errors.New("render crashed")
	}), ToolTrimSilence, ToolCursewordCheck)

	bag := r.Gather(context.Background(), []string{ToolCursewordCheck, ToolTrimSilence})

	assert.Equal(t, 1, calls)
	assert.Equal(t, map[string]string{
		ToolTrimSilence:    "render crashed",
		ToolCursewordCheck: "render crashed",
	}, bag.Errors())
}

func TestFrameGatherer_EmitsBoundaryFrames(t *testing.T) {
	h, tmp, _ := newSandbox(t, threeClips())
	probe := host.NewCachedProbe(testLogger())
	g := NewFrameGatherer(h, probe, frames.NewExporter(h, testLogger()), codec, 0, 2, testLogger())

	ev, err := g.Gather(context.Background())
	require.NoError(t, err)

	want := [][]string{
		{filepath.Join(tmp, "Preview_Clip0_Last.png")},
		{filepath.Join(tmp, "Preview_Clip1_First.png"), filepath.Join(tmp, "Preview_Clip1_Last.png")},
		{filepath.Join(tmp, "Preview_Clip2_First.png")},
	}
	if diff := cmp.Diff(want, ev.FramePaths); diff != "" {
		t.Errorf("frame groups mismatch (-want +got):\n%s", diff)
	}
	for _, group := range ev.FramePaths {
		for _, p := range group {
			assert.FileExists(t, p)
		}
	}
}

func TestFrameGatherer_InsufficientClips(t *testing.T) {
	doc := threeClips()
	doc.Tracks[0] = doc.Tracks[0][:1]
	h, _, _ := newSandbox(t, doc)
	g := NewFrameGatherer(h, nil, frames.NewExporter(h, testLogger()), codec, 0, 1, testLogger())

	_, err := g.Gather(context.Background())
	assert.Error(t, err)
}

func TestFrameGatherer_MissingCapability(t *testing.T) {
	doc := threeClips()
	doc.Disabled = []string{string(host.CapFrameExport)}
	h, _, _ := newSandbox(t, doc)
	g := NewFrameGatherer(h, host.NewCachedProbe(testLogger()), frames.NewExporter(h, testLogger()), codec, 0, 1, testLogger())

	_, err := g.Gather(context.Background())
	assert.ErrorIs(t, err, host.ErrCapabilityUnavailable)
}

func TestAudioGatherer_MissingPreset(t *testing.T) {
	h, _, _ := newSandbox(t, threeClips())
	g := NewAudioGatherer(h, nil, "", 0, testLogger())

	_, err := g.Gather(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), DefaultAudioPreset)
}

func TestAudioGatherer_RendersToTempDir(t *testing.T) {
	h, tmp, res := newSandbox(t, threeClips())
	require.NoError(t, os.WriteFile(filepath.Join(res, DefaultAudioPreset), []byte("preset"), 0o644))
	g := NewAudioGatherer(h, host.NewCachedProbe(testLogger()), "", 0, testLogger())

	ev, err := g.Gather(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmp, AudioFileName), ev.AudioPath)
	assert.FileExists(t, ev.AudioPath)
}

func TestAudioGatherer_NoDocument(t *testing.T) {
	h, _, _ := newSandbox(t, nil)
	_, err := NewAudioGatherer(h, nil, "", 0, testLogger()).Gather(context.Background())
	assert.ErrorIs(t, err, host.ErrNoActiveDocument)
}
