package tally

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotReporter_Capabilities(t *testing.T) {
	caps := NewSnapshotReporter().Capabilities()
	assert.False(t, caps.Reporting)
	assert.False(t, caps.Tagging)
	assert.Equal(t, CounterModeSnapshot, caps.CounterMode)
}

func TestSnapshotReporter_FlushPublishes(t *testing.T) {
	r := NewSnapshotReporter()
	tags := map[string]string{"k": "v"}

	assert.Empty(t, r.FlushedSnapshot().Counters(), "initial snapshot is empty")

	r.ReportCounter("c", tags, 3)
	r.ReportGauge("g", tags, 1.5)
	r.ReportTimer("t", tags, time.Second)
	r.ReportTimer("t", tags, 2*time.Second)

	assert.Empty(t, r.FlushedSnapshot().Counters(), "nothing is visible before Flush")
	require.NoError(t, r.Flush())

	snap := r.FlushedSnapshot()
	key := func(name string) ScopeKey { return NewScopeKey(name, tags) }

	assert.Equal(t, CounterSnapshot{Name: "c", Tags: tags, Value: 3}, snap.Counters()[key("c")])
	assert.Equal(t, GaugeSnapshot{Name: "g", Tags: tags, Value: 1.5}, snap.Gauges()[key("g")])
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, snap.Timers()[key("t")].Values)

	// The next buffer starts empty.
	require.NoError(t, r.Flush())
	assert.Empty(t, r.FlushedSnapshot().Counters())
	assert.Empty(t, r.FlushedSnapshot().Timers())
}

func TestSnapshotReporter_HistogramPrepopulated(t *testing.T) {
	r := NewSnapshotReporter()

	values := ValueBuckets{0, 10}
	r.ReportHistogramValueSamples("hv", nil, values, 0, 10, 4)

	durations := DurationBuckets{time.Millisecond}
	r.ReportHistogramDurationSamples("hd", nil, durations, 0, time.Millisecond, 2)
	require.NoError(t, r.Close())

	histograms := r.FlushedSnapshot().Histograms()
	require.Len(t, histograms, 2)

	hv := histograms[NewScopeKey("hv", nil)]
	assert.Equal(t, map[float64]int64{0: 0, 10: 4, math.Inf(1): 0}, hv.Values)
	assert.Empty(t, hv.Durations)

	hd := histograms[NewScopeKey("hd", nil)]
	assert.Equal(t, map[time.Duration]int64{time.Millisecond: 2, MaxDuration: 0}, hd.Durations)
	assert.Empty(t, hd.Values)
}

func TestSnapshot_AccessorsReturnCopies(t *testing.T) {
	r := NewSnapshotReporter()
	r.ReportCounter("c", map[string]string{"k": "v"}, 1)
	r.ReportTimer("t", nil, time.Second)
	r.ReportHistogramValueSamples("h", nil, ValueBuckets{1}, math.Inf(-1), 1, 1)
	require.NoError(t, r.Flush())

	snap := r.FlushedSnapshot()
	counters := snap.Counters()
	counters[NewScopeKey("c", map[string]string{"k": "v"})].Tags["k"] = "mutated"
	snap.Timers()[NewScopeKey("t", nil)].Values[0] = 0
	snap.Histograms()[NewScopeKey("h", nil)].Values[1] = 100

	again := r.FlushedSnapshot()
	assert.Equal(t, "v", again.Counters()[NewScopeKey("c", map[string]string{"k": "v"})].Tags["k"])
	assert.Equal(t, time.Second, again.Timers()[NewScopeKey("t", nil)].Values[0])
	assert.Equal(t, int64(1), again.Histograms()[NewScopeKey("h", nil)].Values[1])
}

func TestSnapshotReporter_CopiesReportedTags(t *testing.T) {
	r := NewSnapshotReporter()
	tags := map[string]string{"k": "v"}
	r.ReportGauge("g", tags, 1)
	tags["k"] = "changed"
	require.NoError(t, r.Flush())

	g := r.FlushedSnapshot().Gauges()[NewScopeKey("g", map[string]string{"k": "v"})]
	assert.Equal(t, "v", g.Tags["k"])
}
