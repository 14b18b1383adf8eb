package sandbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutpilot/cutpilot-agent/internal/host"
	"github.com/cutpilot/cutpilot-agent/internal/timecode"
)

var codec = timecode.New(timecode.DefaultTicksPerSecond)

func threeClips() *Document {
	return &Document{
		Name: "Sequence 01",
		FPS:  30,
		Tracks: [][]Clip{{
			{ID: "a", Start: 0, End: 2},
			{ID: "b", Start: 2, End: 5},
			{ID: "c", Start: 5, End: 7},
		}},
	}
}

func resolve(t *testing.T, h *Host) (host.Document, host.Session) {
	t.Helper()
	doc, sess, err := host.Resolve(context.Background(), h)
	require.NoError(t, err)
	return doc, sess
}

func TestHost_NoDocument(t *testing.T) {
	h := New(nil, codec)
	_, _, err := host.Resolve(context.Background(), h)
	assert.ErrorIs(t, err, host.ErrNoActiveDocument)
}

func TestHost_NoSession(t *testing.T) {
	h := New(&Document{}, codec)
	_, _, err := host.Resolve(context.Background(), h)
	assert.ErrorIs(t, err, host.ErrNoActiveSession)
}

func TestHost_RippleDeleteShiftsLaterClips(t *testing.T) {
	h := New(threeClips(), codec)
	doc, sess := resolve(t, h)
	ctx := context.Background()

	del, err := sess.NewRippleDeleteAction(codec.ToTicks(1), codec.ToTicks(3))
	require.NoError(t, err)
	require.NoError(t, doc.ExecuteTransaction(ctx, del))

	got := h.Snapshot().Tracks[0]
	require.Len(t, got, 3)
	assert.Equal(t, Clip{ID: "a", Start: 0, End: 1}, got[0])
	assert.Equal(t, Clip{ID: "b", Start: 1, End: 3}, got[1])
	assert.Equal(t, Clip{ID: "c", Start: 3, End: 5}, got[2])
}

func TestHost_RippleDeleteSplitsSpanningClip(t *testing.T) {
	h := New(threeClips(), codec)
	doc, sess := resolve(t, h)

	del, err := sess.NewRippleDeleteAction(codec.ToTicks(3), codec.ToTicks(4))
	require.NoError(t, err)
	require.NoError(t, doc.ExecuteTransaction(context.Background(), del))

	got := h.Snapshot().Tracks[0]
	require.Len(t, got, 4)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, 3.0, got[1].End)
	assert.Equal(t, "b.2", got[2].ID)
	assert.Equal(t, 3.0, got[2].Start)
	assert.Equal(t, 4.0, got[2].End)
}

func TestHost_TransactionIsAtomic(t *testing.T) {
	h := New(threeClips(), codec)
	doc, sess := resolve(t, h)

	in, err := sess.NewSetInPointAction(codec.ToTicks(1))
	require.NoError(t, err)
	bad, err := sess.NewRippleDeleteAction(codec.ToTicks(3), codec.ToTicks(2))
	require.NoError(t, err)

	err = doc.ExecuteTransaction(context.Background(), in, bad)
	require.Error(t, err)

	snap := h.Snapshot()
	assert.Equal(t, 0.0, snap.In, "in point must not apply when the transaction fails")
	assert.Len(t, snap.Tracks[0], 3)
}

func TestHost_DisabledCapability(t *testing.T) {
	d := threeClips()
	d.Disabled = []string{string(host.CapRippleDelete)}
	h := New(d, codec)
	_, sess := resolve(t, h)

	assert.False(t, sess.Supports(host.CapRippleDelete))
	assert.True(t, sess.Supports(host.CapSetInPoint))

	_, err := sess.NewRippleDeleteAction(0, 10)
	assert.ErrorIs(t, err, host.ErrCapabilityUnavailable)
	var capErr *host.CapabilityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, host.CapRippleDelete, capErr.Capability)
}

func TestHost_TrackItemsFollowEdits(t *testing.T) {
	h := New(threeClips(), codec)
	doc, sess := resolve(t, h)
	ctx := context.Background()

	items, err := sess.TrackItems(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 3)

	del, err := sess.NewRippleDeleteAction(0, codec.ToTicks(1))
	require.NoError(t, err)
	require.NoError(t, doc.ExecuteTransaction(ctx, del))

	start, err := items[2].Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, codec.ToTicks(4), start)

	none, err := sess.TrackItems(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHost_TransitionReplacesSameEdge(t *testing.T) {
	h := New(threeClips(), codec)
	doc, sess := resolve(t, h)
	ctx := context.Background()
	items, err := sess.TrackItems(ctx, 0)
	require.NoError(t, err)

	for _, name := range []string{"Cross Dissolve", "Dip to Black"} {
		tr, err := sess.NewTransition(ctx, name)
		require.NoError(t, err)
		act, err := items[1].NewAddTransitionAction(tr, host.TransitionOptions{ApplyToStart: true})
		require.NoError(t, err)
		require.NoError(t, doc.ExecuteTransaction(ctx, act))
	}

	trs := h.Snapshot().Transitions
	require.Len(t, trs, 1)
	assert.Equal(t, "Dip to Black", trs[0].Name)
	assert.Equal(t, "b", trs[0].Clip)
}

func TestHost_ExportFrame(t *testing.T) {
	h := New(threeClips(), codec)
	_, sess := resolve(t, h)
	dir := t.TempDir()
	ctx := context.Background()

	ok, err := sess.ExportFrame(ctx, codec.ToTicks(1), "Preview_x.png", dir, 1920, 1080)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.FileExists(t, filepath.Join(dir, "Preview_x.png"))

	ok, err = sess.ExportFrame(ctx, codec.ToTicks(60), "Preview_y.png", dir, 1920, 1080)
	require.NoError(t, err)
	assert.False(t, ok, "positions past the sequence end are declined")
}

func TestHost_ExportAudioNeedsPreset(t *testing.T) {
	h := New(threeClips(), codec)
	_, sess := resolve(t, h)
	dir := t.TempDir()
	out := filepath.Join(dir, "out.wav")

	err := sess.ExportAudio(context.Background(), out, filepath.Join(dir, "missing.epr"))
	require.Error(t, err)

	preset := filepath.Join(dir, "WAV.epr")
	require.NoError(t, os.WriteFile(preset, []byte("preset"), 0o644))
	require.NoError(t, sess.ExportAudio(context.Background(), out, preset))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Len(t, data, 44)
	assert.Equal(t, "RIFF", string(data[:4]))
}

func TestOpen_SavesTransactions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeline.yaml")
	require.NoError(t, WriteDocument(path, threeClips()))

	h, err := Open(path, codec)
	require.NoError(t, err)
	doc, sess := resolve(t, h)

	m, err := sess.NewAddMarkerAction(host.Marker{Start: codec.ToTicks(1), Duration: codec.ToTicks(0.5), Name: "bleep", ColorIndex: 1})
	require.NoError(t, err)
	require.NoError(t, doc.ExecuteTransaction(context.Background(), m))

	reread, err := ReadDocument(path)
	require.NoError(t, err)
	require.Len(t, reread.Markers, 1)
	assert.Equal(t, "bleep", reread.Markers[0].Name)
	assert.Equal(t, 1.0, reread.Markers[0].Start)

	resDir, err := h.ResourceDir(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Dir(path), resDir)
}

func TestHost_ReloadChangesSessionID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeline.yaml")
	require.NoError(t, WriteDocument(path, threeClips()))
	h, err := Open(path, codec)
	require.NoError(t, err)

	_, before := resolve(t, h)
	require.NoError(t, h.Reload())
	_, after := resolve(t, h)
	assert.NotEqual(t, before.ID(), after.ID())
}
