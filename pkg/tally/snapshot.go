package tally

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

// CounterSnapshot is the captured value of one counter.
type CounterSnapshot struct {
	Name  string
	Tags  map[string]string
	Value int64
}

// GaugeSnapshot is the captured value of one gauge.
type GaugeSnapshot struct {
	Name  string
	Tags  map[string]string
	Value float64
}

// TimerSnapshot holds every duration recorded by one timer since the
// previous flush, in record order.
type TimerSnapshot struct {
	Name   string
	Tags   map[string]string
	Values []time.Duration
}

// HistogramSnapshot holds per-bucket counts keyed by bucket upper bound. Value
// histograms fill Values, with the overflow bucket keyed by +Inf; duration
// histograms fill Durations, with the overflow bucket keyed by MaxDuration.
type HistogramSnapshot struct {
	Name      string
	Tags      map[string]string
	Values    map[float64]int64
	Durations map[time.Duration]int64
}

// Snapshot is an immutable capture of reported metrics keyed by
// NewScopeKey(name, tags). Accessors return copies.
type Snapshot struct {
	counters   map[ScopeKey]*CounterSnapshot
	gauges     map[ScopeKey]*GaugeSnapshot
	timers     map[ScopeKey]*TimerSnapshot
	histograms map[ScopeKey]*HistogramSnapshot
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		counters:   make(map[ScopeKey]*CounterSnapshot),
		gauges:     make(map[ScopeKey]*GaugeSnapshot),
		timers:     make(map[ScopeKey]*TimerSnapshot),
		histograms: make(map[ScopeKey]*HistogramSnapshot),
	}
}

func (s Snapshot) Counters() map[ScopeKey]CounterSnapshot {
	out := make(map[ScopeKey]CounterSnapshot, len(s.counters))
	for k, v := range s.counters {
		out[k] = CounterSnapshot{Name: v.Name, Tags: copyTags(v.Tags), Value: v.Value}
	}
	return out
}

func (s Snapshot) Gauges() map[ScopeKey]GaugeSnapshot {
	out := make(map[ScopeKey]GaugeSnapshot, len(s.gauges))
	for k, v := range s.gauges {
		out[k] = GaugeSnapshot{Name: v.Name, Tags: copyTags(v.Tags), Value: v.Value}
	}
	return out
}

func (s Snapshot) Timers() map[ScopeKey]TimerSnapshot {
	out := make(map[ScopeKey]TimerSnapshot, len(s.timers))
	for k, v := range s.timers {
		values := make([]time.Duration, len(v.Values))
		copy(values, v.Values)
		out[k] = TimerSnapshot{Name: v.Name, Tags: copyTags(v.Tags), Values: values}
	}
	return out
}

func (s Snapshot) Histograms() map[ScopeKey]HistogramSnapshot {
	out := make(map[ScopeKey]HistogramSnapshot, len(s.histograms))
	for k, v := range s.histograms {
		hs := HistogramSnapshot{Name: v.Name, Tags: copyTags(v.Tags)}
		if v.Values != nil {
			hs.Values = make(map[float64]int64, len(v.Values))
			for b, n := range v.Values {
				hs.Values[b] = n
			}
		}
		if v.Durations != nil {
			hs.Durations = make(map[time.Duration]int64, len(v.Durations))
			for b, n := range v.Durations {
				hs.Durations[b] = n
			}
		}
		out[k] = hs
	}
	return out
}

// SnapshotReporter captures reported values in memory. Each Flush publishes
// the values reported since the previous Flush as the flushed snapshot.
type SnapshotReporter struct {
	mu      sync.Mutex
	current *Snapshot
	flushed atomic.Pointer[Snapshot]
}

var _ SnapshotCapable = (*SnapshotReporter)(nil)

// NewSnapshotReporter creates a SnapshotReporter with an empty flushed
// snapshot.
func NewSnapshotReporter() *SnapshotReporter {
	r := &SnapshotReporter{current: newSnapshot()}
	r.flushed.Store(newSnapshot())
	return r
}

func (r *SnapshotReporter) Capabilities() Capabilities {
	return Capabilities{CounterMode: CounterModeSnapshot}
}

func (r *SnapshotReporter) ReportCounter(name string, tags map[string]string, value int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current.counters[NewScopeKey(name, tags)] = &CounterSnapshot{Name: name, Tags: copyTags(tags), Value: value}
}

func (r *SnapshotReporter) ReportGauge(name string, tags map[string]string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current.gauges[NewScopeKey(name, tags)] = &GaugeSnapshot{Name: name, Tags: copyTags(tags), Value: value}
}

func (r *SnapshotReporter) ReportTimer(name string, tags map[string]string, interval time.Duration) {
	key := NewScopeKey(name, tags)

	r.mu.Lock()
	defer r.mu.Unlock()
	ts, ok := r.current.timers[key]
	if !ok {
		ts = &TimerSnapshot{Name: name, Tags: copyTags(tags)}
		r.current.timers[key] = ts
	}
	ts.Values = append(ts.Values, interval)
}

func (r *SnapshotReporter) ReportHistogramValueSamples(
	name string,
	tags map[string]string,
	buckets Buckets,
	_,
	bucketUpperBound float64,
	samples int64,
) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histogram(name, tags, buckets).Values[bucketUpperBound] = samples
}

func (r *SnapshotReporter) ReportHistogramDurationSamples(
	name string,
	tags map[string]string,
	buckets Buckets,
	_,
	bucketUpperBound time.Duration,
	samples int64,
) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histogram(name, tags, buckets).Durations[bucketUpperBound] = samples
}

// histogram returns the buffered entry for name and tags. A new entry starts
// with a zero count for every upper bound of buckets, overflow included.
// Callers hold r.mu.
func (r *SnapshotReporter) histogram(name string, tags map[string]string, buckets Buckets) *HistogramSnapshot {
	key := NewScopeKey(name, tags)
	if hs, ok := r.current.histograms[key]; ok {
		return hs
	}

	hs := &HistogramSnapshot{
		Name:      name,
		Tags:      copyTags(tags),
		Values:    make(map[float64]int64),
		Durations: make(map[time.Duration]int64),
	}
	for i := 0; i < buckets.Len(); i++ {
		if buckets.Kind() == DurationBucketKind {
			hs.Durations[buckets.DurationUpperBound(i)] = 0
		} else {
			hs.Values[buckets.ValueUpperBound(i)] = 0
		}
	}
	r.current.histograms[key] = hs
	return hs
}

// Flush publishes the buffered values and starts a new buffer.
func (r *SnapshotReporter) Flush() error {
	r.mu.Lock()
	snap := r.current
	r.current = newSnapshot()
	r.mu.Unlock()

	r.flushed.Store(snap)
	return nil
}

// FlushedSnapshot returns the snapshot published by the last Flush.
func (r *SnapshotReporter) FlushedSnapshot() Snapshot {
	return *r.flushed.Load()
}

// Close flushes once more.
func (r *SnapshotReporter) Close() error {
	return r.Flush()
}
