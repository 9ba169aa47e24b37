/*
Package tally provides scoped application metrics: counters, gauges, timers
and histograms organized in a tree of named, tagged scopes, buffered in
memory and handed to a pluggable reporter on every report iteration.

Basic Usage:

	scope, err := tally.NewRootScope(tally.ScopeOptions{
		Prefix:         "checkout",
		Tags:           map[string]string{"env": "prod"},
		Reporter:       reporter,
		ReportInterval: time.Second,
	})
	if err != nil {
		return err
	}
	defer scope.Close()

	scope.Counter("requests").Inc(1)
	scope.Gauge("queue_depth").Update(12)

	sw := scope.Timer("latency").Start()
	handle()
	sw.Stop()

	scope.Tagged(map[string]string{"region": "eu"}).
		SubScope("db").
		Histogram("rows", tally.MustBuckets(tally.LinearValueBuckets(0, 10, 10))).
		RecordValue(42)

Scopes:

A scope is identified by its prefix and tag set. SubScope extends the prefix
with the separator (default "."), Tagged merges new tags over the current
ones. Asking twice for the same prefix and tags returns the same scope, and
asking a scope twice for the same metric name returns the same metric.

Reporting:

Counters, gauges and histograms buffer values between report iterations. An
iteration walks every scope of the tree, hands each buffered value to the
reporter and ends with one Flush. Timers are not buffered: every recorded
duration goes straight to the reporter. Without a reporter each timer keeps
its latest durations, readable through UnreportedTimer.

How counters are handed over depends on the reporter's CounterMode:

	CounterModeCumulative  running total, only when something changed
	CounterModeDelta       change since the previous iteration, only when non-zero
	CounterModeSnapshot    pending total on every iteration, without draining

Gauges report their last value and reset to zero. Histogram buckets follow
the counter rules, one count per bucket range.

Buckets:

N strictly increasing bounds define N+1 ranges. A sample equal to a bound
belongs to the range that starts at that bound:

	buckets: [0, 10, 20]
	ranges:  (-Inf, 0) [0, 10) [10, 20) [20, +Inf)

Testing:

NewTestScope backs a scope with a SnapshotReporter. Snapshot runs one report
iteration and returns what was reported, keyed by metric name and tags:

	scope := tally.NewTestScope("svc", nil)
	scope.Counter("hits").Inc(2)

	snap, _ := scope.Snapshot()
	key := tally.NewScopeKey("svc.hits", nil)
	fmt.Println(snap.Counters()[key].Value) // 2

Error Handling:

Recording never fails. Report iterations run on a scheduler; errors returned
by the reporter, and panics raised by it, are passed to ScopeOptions.OnError
or logged. Close reports a final time and returns the joined errors of that
iteration and of closing the reporter.
*/
package tally
