// Package clock provides the monotonic time sources used to measure elapsed
// time for timers and histogram stopwatches.
package clock

import (
	"time"

	"go.uber.org/atomic"
)

// Clock provides a monotonically non-decreasing reading in nanoseconds.
// Readings are only meaningful relative to each other; they are not wall-clock time.
type Clock interface {
	NowNanos() int64
}

// SystemClock implements Clock using the process monotonic clock.
type SystemClock struct {
	origin time.Time
}

// System returns a Clock backed by the runtime's monotonic clock reading.
func System() *SystemClock {
	return &SystemClock{origin: time.Now()}
}

// NowNanos returns the nanoseconds elapsed since the clock was created.
func (c *SystemClock) NowNanos() int64 {
	return int64(time.Since(c.origin))
}

// Fake is a Clock under test control. It starts at zero.
type Fake struct {
	now         atomic.Int64
	autoAdvance atomic.Int64
}

// NewFake creates a Fake clock at zero.
func NewFake() *Fake {
	return &Fake{}
}

// AddNanos moves the clock forward by nanos.
func (f *Fake) AddNanos(nanos int64) {
	f.now.Add(nanos)
}

// AddDuration moves the clock forward by d.
func (f *Fake) AddDuration(d time.Duration) {
	f.AddNanos(int64(d))
}

// AutoAdvanceNanos makes every NowNanos call advance the clock by nanos
// before reading it. Zero disables auto-advance.
func (f *Fake) AutoAdvanceNanos(nanos int64) {
	f.autoAdvance.Store(nanos)
}

// AutoAdvanceDuration is AutoAdvanceNanos expressed as a duration.
func (f *Fake) AutoAdvanceDuration(d time.Duration) {
	f.AutoAdvanceNanos(int64(d))
}

// NowNanos returns the current reading, applying auto-advance first.
func (f *Fake) NowNanos() int64 {
	return f.now.Add(f.autoAdvance.Load())
}
