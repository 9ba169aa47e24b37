package tally

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/vnykmshr/gotally/pkg/clock"
)

// Histogram counts samples into the ranges of a bucket specification.
type Histogram interface {
	RecordValue(value float64)
	RecordDuration(value time.Duration)
	// Start returns a stopwatch whose Stop records the elapsed duration.
	Start() Stopwatch
}

// StopwatchRecorder receives the start time of a stopped Stopwatch.
type StopwatchRecorder interface {
	RecordStopwatch(startNanos int64)
}

// Stopwatch measures one elapsed interval for a timer or histogram.
type Stopwatch struct {
	start    int64
	recorder StopwatchRecorder
}

// NewStopwatch creates a stopwatch started at startNanos, a reading of the
// recorder's clock.
func NewStopwatch(startNanos int64, r StopwatchRecorder) Stopwatch {
	return Stopwatch{start: startNanos, recorder: r}
}

// Stop records the time elapsed since the stopwatch was started. Stopping the
// zero Stopwatch is a no-op.
func (sw Stopwatch) Stop() {
	if sw.recorder == nil {
		return
	}
	sw.recorder.RecordStopwatch(sw.start)
}

// histogramSlot holds the counter of one bucket range, created on first use.
type histogramSlot struct {
	mu      sync.Mutex
	counter atomic.Pointer[counter]
}

func (s *histogramSlot) get() *counter {
	if c := s.counter.Load(); c != nil {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c := s.counter.Load(); c != nil {
		return c
	}
	c := newCounter()
	s.counter.Store(c)
	return c
}

type histogram struct {
	buckets   Buckets
	values    []float64
	durations []time.Duration
	slots     []histogramSlot
	clock     clock.Clock
	reporter  bucketReporter
}

func newHistogram(buckets Buckets, clk clock.Clock) *histogram {
	return &histogram{
		buckets:   buckets,
		values:    buckets.AsValues(),
		durations: buckets.AsDurations(),
		slots:     make([]histogramSlot, buckets.Len()),
		clock:     clk,
		reporter:  bucketReporterFor(buckets.Kind()),
	}
}

func (h *histogram) RecordValue(value float64) {
	h.slots[bucketIndex(h.values, value)].get().Inc(1)
}

func (h *histogram) RecordDuration(value time.Duration) {
	h.slots[bucketIndex(h.durations, value)].get().Inc(1)
}

func (h *histogram) Start() Stopwatch {
	return NewStopwatch(h.clock.NowNanos(), h)
}

func (h *histogram) RecordStopwatch(startNanos int64) {
	h.RecordDuration(time.Duration(h.clock.NowNanos() - startNanos))
}

func (h *histogram) report(name string, tags map[string]string, r StatsReporter, mode CounterMode) {
	for i := range h.slots {
		c := h.slots[i].counter.Load()
		if c == nil {
			continue
		}
		if samples, ok := c.reportValue(mode); ok {
			h.reporter.report(name, tags, r, h.buckets, i, samples)
		}
	}
}

// bucketReporter forwards one bucket count to the reporter method matching
// the bucket kind.
type bucketReporter interface {
	report(name string, tags map[string]string, r StatsReporter, buckets Buckets, index int, samples int64)
}

func bucketReporterFor(kind BucketKind) bucketReporter {
	if kind == DurationBucketKind {
		return durationBucketReporter{}
	}
	return valueBucketReporter{}
}

type valueBucketReporter struct{}

func (valueBucketReporter) report(name string, tags map[string]string, r StatsReporter, buckets Buckets, index int, samples int64) {
	r.ReportHistogramValueSamples(
		name,
		tags,
		buckets,
		buckets.ValueLowerBound(index),
		buckets.ValueUpperBound(index),
		samples,
	)
}

type durationBucketReporter struct{}

func (durationBucketReporter) report(name string, tags map[string]string, r StatsReporter, buckets Buckets, index int, samples int64) {
	r.ReportHistogramDurationSamples(
		name,
		tags,
		buckets,
		buckets.DurationLowerBound(index),
		buckets.DurationUpperBound(index),
		samples,
	)
}
