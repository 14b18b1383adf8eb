package timecode

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapToFrame_Idempotent(t *testing.T) {
	rates := []float64{23.976, 24, 25, 29.97, 30, 50, 59.94, 60}
	for _, fps := range rates {
		for s := -1.0; s < 120; s += 0.0137 {
			once := SnapToFrame(s, fps)
			twice := SnapToFrame(once, fps)
			require.Equalf(t, once, twice, "SnapToFrame(%v, %v) not idempotent", s, fps)
		}
	}
}

func TestSnapToFrame_RemovesSubFrameDrift(t *testing.T) {
	assert.Equal(t, 1.0, SnapToFrame(1.004, 30))
	assert.InDelta(t, 2.0/30.0, SnapToFrame(0.07, 30), 1e-12)
	assert.Equal(t, 1.5, SnapToFrame(1.5, 0), "non-positive fps leaves the value untouched")
}

func TestCodec_RoundTripWithinOneTick(t *testing.T) {
	c := New(DefaultTicksPerSecond)
	oneTick := 1 / float64(DefaultTicksPerSecond)

	values := []Ticks{0, 1, 2, 127, 254016000000, 254016000001, 8475667200, 3 * 3600 * 254016000000, 987654321987654}
	for _, v := range values {
		s := c.ToSeconds(v)
		back := c.ToSeconds(c.ToTicks(s))
		assert.InDeltaf(t, s, back, oneTick, "round trip for %d ticks", v)
	}
}

func TestCodec_ToTicks_LargeOffsetsStayExact(t *testing.T) {
	c := New(0)
	// Ten hours in, whole seconds must map onto exact tick multiples.
	got := c.ToTicks(36000)
	assert.Equal(t, Ticks(36000*DefaultTicksPerSecond), got)

	got = c.ToTicks(36000.5)
	assert.Equal(t, Ticks(36000*DefaultTicksPerSecond+DefaultTicksPerSecond/2), got)
}

func TestCodec_FrameTicks(t *testing.T) {
	c := New(DefaultTicksPerSecond)
	tests := []struct {
		fps  float64
		want Ticks
	}{
		{30, 8467200000},
		{25, 10160640000},
		{24, 10584000000},
		{29.97, 8475667200},
		{59.94, 4237833600},
		{0, 8467200000},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, c.FrameTicks(tt.fps), "FrameTicks(%v)", tt.fps)
	}
}

func TestSnapTicks(t *testing.T) {
	frame := Ticks(100)
	tests := []struct {
		name string
		in   Ticks
		want Ticks
	}{
		{"zero", 0, 0},
		{"negative clamps", -40, 0},
		{"below half rounds down", 149, 100},
		{"half rounds up", 150, 200},
		{"exact multiple", 300, 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SnapTicks(tt.in, frame)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, SnapTicks(got, frame), "snapping must be idempotent")
		})
	}
}

func TestCodec_SecondsToFrame_OnGrid(t *testing.T) {
	c := New(DefaultTicksPerSecond)
	for _, fps := range []float64{24, 29.97, 30} {
		frame := c.FrameTicks(fps)
		for s := 0.0; s < 10; s += 0.333 {
			got := c.SecondsToFrame(s, fps)
			require.Zero(t, got%frame, "position %d not on the %v fps grid", got, fps)
			require.LessOrEqual(t, math.Abs(c.ToSeconds(got)-s), c.ToSeconds(frame)/2+1e-9)
		}
	}
}

func TestCodec_FrameBefore_ClampsAtZero(t *testing.T) {
	c := New(DefaultTicksPerSecond)
	assert.Equal(t, Ticks(0), c.FrameBefore(c.ToTicks(0.01), 30))
	assert.Equal(t, c.ToTicks(2)-c.FrameTicks(30), c.FrameBefore(c.ToTicks(2), 30))
}

func TestCodec_Timecode(t *testing.T) {
	c := New(DefaultTicksPerSecond)
	tests := []struct {
		name    string
		seconds float64
		want    string
	}{
		{"zero", 0, "00:00:00:00"},
		{"one second", 1, "00:00:01:00"},
		{"half second", 0.5, "00:00:00:15"},
		{"one minute", 60, "00:01:00:00"},
		{"one hour", 3600, "01:00:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Timecode(c.ToTicks(tt.seconds), 30))
		})
	}
}
