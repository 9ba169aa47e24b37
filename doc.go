/*
Package gotally is an in-process metrics library: counters, gauges, timers and
histograms organized in tagged scopes, buffered in memory and reported in
batches to pluggable backends.

Metrics (pkg/tally):
  - Scope: prefix and tag namespaces with get-or-create metric accessors
  - Counter, Gauge, Timer, Histogram: lock-free recording
  - SnapshotReporter: capture report iterations for tests

Reporters (pkg/reporter):
  - promreporter: Prometheus collector
  - redisreporter: batched writes to Redis for multi-instance aggregation

Supporting packages:
  - pkg/config: YAML configuration of scopes and reporters
  - pkg/scheduling/scheduler: interval and cron scheduling of report iterations
  - pkg/metrics: Prometheus self-instrumentation of reporters
  - pkg/clock: time source for stopwatches

Example usage:

	import (
		"github.com/vnykmshr/gotally/pkg/reporter/promreporter"
		"github.com/vnykmshr/gotally/pkg/tally"
	)

	reporter, _ := promreporter.New()
	scope, _ := tally.NewRootScope(tally.ScopeOptions{
		Prefix:         "checkout",
		Reporter:       reporter,
		ReportInterval: time.Second,
	})
	defer scope.Close()

	scope.Tagged(map[string]string{"region": "eu"}).Counter("orders").Inc(1)
*/
package gotally
