package tally

import (
	"fmt"
	"sync"
	"time"

	gferrors "github.com/vnykmshr/gotally/pkg/common/errors"
)

// CounterMode selects how buffered counters and histogram buckets are handed
// to a reporter on each report iteration.
type CounterMode int

const (
	// CounterModeCumulative drains the pending delta and, when it is non-zero,
	// reports the running total of every delta drained so far.
	CounterModeCumulative CounterMode = iota
	// CounterModeSnapshot reports the pending total on every iteration, zero
	// included, without draining it.
	CounterModeSnapshot
	// CounterModeDelta drains the pending delta and reports it when non-zero.
	CounterModeDelta
)

func (m CounterMode) String() string {
	switch m {
	case CounterModeCumulative:
		return "cumulative"
	case CounterModeSnapshot:
		return "snapshot"
	case CounterModeDelta:
		return "delta"
	default:
		return fmt.Sprintf("CounterMode(%d)", int(m))
	}
}

// Capabilities describes what a reporter does with the values it receives.
type Capabilities struct {
	// Reporting is true when reported values leave the process.
	Reporting bool
	// Tagging is true when tags are preserved by the backend.
	Tagging bool
	// CounterMode is the counter reporting policy the backend expects.
	CounterMode CounterMode
}

// NoCapabilities is returned by scopes without a reporter.
var NoCapabilities = Capabilities{}

//go:generate mockgen -package mocks -destination ../../mocks/reporter.go github.com/vnykmshr/gotally/pkg/tally StatsReporter

// StatsReporter receives fully aggregated samples from a scope tree. The
// reporter owns transport: buffering, batching and I/O happen behind Flush.
// Report methods are called from the reporting goroutine, except ReportTimer
// which is called on the recording goroutine and must be safe for concurrent use.
type StatsReporter interface {
	// Capabilities is queried once, when the root scope is built.
	Capabilities() Capabilities

	ReportCounter(name string, tags map[string]string, value int64)
	ReportGauge(name string, tags map[string]string, value float64)
	ReportTimer(name string, tags map[string]string, interval time.Duration)
	ReportHistogramValueSamples(
		name string,
		tags map[string]string,
		buckets Buckets,
		bucketLowerBound,
		bucketUpperBound float64,
		samples int64,
	)
	ReportHistogramDurationSamples(
		name string,
		tags map[string]string,
		buckets Buckets,
		bucketLowerBound,
		bucketUpperBound time.Duration,
		samples int64,
	)

	// Flush is called once per report iteration after every metric reported.
	Flush() error
	// Close releases the backend; it must flush first.
	Close() error
}

// SnapshotCapable is implemented by reporters that capture reported values
// into snapshots instead of transmitting them.
type SnapshotCapable interface {
	StatsReporter
	FlushedSnapshot() Snapshot
}

// maxSinkDurations bounds the durations retained by a TimerSink.
const maxSinkDurations = 4096

// TimerSink is the reporter used by timers of scopes without a reporter. It
// retains the most recent timer durations for inspection and rejects every
// other report with a panic wrapping errors.ErrCapabilityNotSupported.
type TimerSink struct {
	mu        sync.Mutex
	durations []time.Duration // ring buffer once full
	oldest    int
}

var _ StatsReporter = (*TimerSink)(nil)

// NewTimerSink creates an empty TimerSink.
func NewTimerSink() *TimerSink {
	return &TimerSink{}
}

// Durations returns the retained durations in record order.
func (s *TimerSink) Durations() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.durations))
	n := copy(out, s.durations[s.oldest:])
	copy(out[n:], s.durations[:s.oldest])
	return out
}

func (s *TimerSink) Capabilities() Capabilities {
	return NoCapabilities
}

func (s *TimerSink) ReportTimer(_ string, _ map[string]string, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.durations) < maxSinkDurations {
		s.durations = append(s.durations, interval)
		return
	}
	s.durations[s.oldest] = interval
	s.oldest = (s.oldest + 1) % maxSinkDurations
}

func (s *TimerSink) ReportCounter(string, map[string]string, int64) {
	panic(unsupported("ReportCounter"))
}

func (s *TimerSink) ReportGauge(string, map[string]string, float64) {
	panic(unsupported("ReportGauge"))
}

func (s *TimerSink) ReportHistogramValueSamples(string, map[string]string, Buckets, float64, float64, int64) {
	panic(unsupported("ReportHistogramValueSamples"))
}

func (s *TimerSink) ReportHistogramDurationSamples(string, map[string]string, Buckets, time.Duration, time.Duration, int64) {
	panic(unsupported("ReportHistogramDurationSamples"))
}

func (s *TimerSink) Flush() error {
	return unsupported("Flush")
}

func (s *TimerSink) Close() error {
	return unsupported("Close")
}

func unsupported(op string) error {
	return fmt.Errorf("tally: timer sink %s: %w", op, gferrors.ErrCapabilityNotSupported)
}
