// Package timecode converts between seconds and the host's integer tick
// representation and snaps time positions to frame boundaries.
//
// Ticks are always carried as int64. Seconds only appear at the edges of the
// pipeline (inference payloads, log output); all arithmetic that decides where
// an edit lands happens in the tick domain.
package timecode

import (
	"fmt"
	"math"
)

// DefaultTicksPerSecond is the tick rate used by the editing host.
const DefaultTicksPerSecond int64 = 254016000000

// DefaultFrameRate is used when the active session does not report one.
const DefaultFrameRate = 30.0

// Ticks is a time position in host ticks.
type Ticks int64

// Codec converts between seconds and ticks for a fixed tick rate.
type Codec struct {
	TicksPerSecond int64
}

// New returns a Codec for the given tick rate, falling back to
// DefaultTicksPerSecond for non-positive values.
func New(ticksPerSecond int64) Codec {
	if ticksPerSecond <= 0 {
		ticksPerSecond = DefaultTicksPerSecond
	}
	return Codec{TicksPerSecond: ticksPerSecond}
}

func (c Codec) tps() int64 {
	if c.TicksPerSecond <= 0 {
		return DefaultTicksPerSecond
	}
	return c.TicksPerSecond
}

// ToTicks converts seconds to the nearest tick. The whole-second part is
// multiplied in integer space so large offsets keep full precision.
func (c Codec) ToTicks(seconds float64) Ticks {
	tps := c.tps()
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0
	}
	whole := math.Floor(seconds)
	frac := seconds - whole
	return Ticks(int64(whole)*tps + int64(math.Round(frac*float64(tps))))
}

// ToSeconds converts ticks to seconds.
func (c Codec) ToSeconds(t Ticks) float64 {
	tps := c.tps()
	whole := int64(t) / tps
	rem := int64(t) % tps
	return float64(whole) + float64(rem)/float64(tps)
}

// SnapToFrame rounds seconds to the nearest whole frame at fps.
func SnapToFrame(seconds, fps float64) float64 {
	if fps <= 0 {
		return seconds
	}
	return math.Round(seconds*fps) / fps
}

// rational returns fps as num/den, recognising the NTSC 1000/1001 rates.
func rational(fps float64) (int64, int64) {
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	nominal := math.Round(fps)
	if math.Abs(fps-nominal) < 1e-6 {
		return int64(nominal), 1
	}
	if ntsc := nominal * 1000 / 1001; math.Abs(fps-ntsc) < 0.01 {
		return int64(nominal) * 1000, 1001
	}
	return int64(math.Round(fps * 1000)), 1000
}

// FrameTicks returns the duration of one frame at fps, in ticks.
func (c Codec) FrameTicks(fps float64) Ticks {
	num, den := rational(fps)
	return Ticks((c.tps()*den + num/2) / num)
}

// SnapTicks rounds t to the nearest multiple of frame, half up. Negative
// positions clamp to zero.
func SnapTicks(t, frame Ticks) Ticks {
	if t <= 0 {
		return 0
	}
	if frame <= 0 {
		return t
	}
	n := (t + frame/2) / frame
	return n * frame
}

// SecondsToFrame converts seconds to ticks and snaps the result to the frame
// grid at fps.
func (c Codec) SecondsToFrame(seconds, fps float64) Ticks {
	return SnapTicks(c.ToTicks(seconds), c.FrameTicks(fps))
}

// FrameBefore returns the position one frame earlier than t, clamped at zero.
func (c Codec) FrameBefore(t Ticks, fps float64) Ticks {
	prev := t - c.FrameTicks(fps)
	if prev < 0 {
		return 0
	}
	return prev
}

// Abs returns the absolute distance between two positions.
func Abs(a, b Ticks) Ticks {
	if a > b {
		return a - b
	}
	return b - a
}

// Timecode formats t as HH:MM:SS:FF at the nominal frame rate.
func (c Codec) Timecode(t Ticks, fps float64) string {
	rate := int64(math.Round(fps))
	if rate <= 0 {
		rate = int64(DefaultFrameRate)
	}
	if t < 0 {
		t = 0
	}
	frame := int64(c.FrameTicks(fps))
	totalFrames := (int64(t) + frame/2) / frame
	frames := totalFrames % rate
	totalSeconds := totalFrames / rate
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
