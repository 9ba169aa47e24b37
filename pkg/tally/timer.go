package tally

import (
	"time"

	"github.com/vnykmshr/gotally/pkg/clock"
)

// Timer reports durations to the reporter as they are recorded; it keeps no
// state between report iterations.
type Timer interface {
	Record(value time.Duration)
	Start() Stopwatch
}

// UnreportedTimer is implemented by the timers of scopes created without a
// reporter. Their durations go to a TimerSink private to each timer.
//
//	values := scope.Timer("db").(tally.UnreportedTimer).UnreportedValues()
type UnreportedTimer interface {
	Timer
	// UnreportedValues returns the most recent recorded durations in record
	// order.
	UnreportedValues() []time.Duration
}

type timer struct {
	name     string
	tags     map[string]string
	reporter StatsReporter
	clock    clock.Clock
}

type sinkTimer struct {
	*timer
	sink *TimerSink
}

func (t *sinkTimer) UnreportedValues() []time.Duration {
	return t.sink.Durations()
}

// newTimer creates a timer. A nil reporter is replaced by a TimerSink private
// to the timer.
func newTimer(name string, tags map[string]string, r StatsReporter, clk clock.Clock) *timer {
	if r == nil {
		r = NewTimerSink()
	}
	return &timer{
		name:     name,
		tags:     tags,
		reporter: r,
		clock:    clk,
	}
}

// exported returns t as UnreportedTimer when it writes to a TimerSink.
func (t *timer) exported() Timer {
	if sink, ok := t.reporter.(*TimerSink); ok {
		return &sinkTimer{timer: t, sink: sink}
	}
	return t
}

func (t *timer) Record(value time.Duration) {
	t.reporter.ReportTimer(t.name, t.tags, value)
}

func (t *timer) Start() Stopwatch {
	return NewStopwatch(t.clock.NowNanos(), t)
}

func (t *timer) RecordStopwatch(startNanos int64) {
	t.Record(time.Duration(t.clock.NowNanos() - startNanos))
}
