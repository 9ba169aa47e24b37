package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	gferrors "github.com/vnykmshr/gotally/pkg/common/errors"
	"github.com/vnykmshr/gotally/pkg/tally"
)

const fullDocument = `
prefix: service
separator: "."
tags:
  env: prod
reportInterval: 1s
defaultBuckets:
  kind: duration
  linear:
    start: 0s
    width: 10ms
    count: 10
reporter:
  kind: prometheus
  prometheus:
    namespace: svc
    timerBuckets: [0.005, 0.01]
  redis:
    addr: localhost:6379
    db: 2
    keyPrefix: gotally
    keyTTL: 1h
    timeout: 1s
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(fullDocument))
	require.NoError(t, err)

	assert.Equal(t, "service", cfg.Prefix)
	assert.Equal(t, ".", cfg.Separator)
	assert.Equal(t, map[string]string{"env": "prod"}, cfg.Tags)
	assert.Equal(t, time.Second, cfg.ReportInterval)
	assert.Equal(t, ReporterPrometheus, cfg.Reporter.Kind)
	assert.Equal(t, "svc", cfg.Reporter.Prometheus.Namespace)
	assert.Equal(t, []float64{0.005, 0.01}, cfg.Reporter.Prometheus.TimerBuckets)
	assert.Equal(t, "localhost:6379", cfg.Reporter.Redis.Addr)
	assert.Equal(t, 2, cfg.Reporter.Redis.DB)
	assert.Equal(t, time.Hour, cfg.Reporter.Redis.KeyTTL)
	assert.Equal(t, time.Second, cfg.Reporter.Redis.Timeout)

	buckets, err := cfg.DefaultBuckets.Build()
	require.NoError(t, err)
	want := tally.MustBuckets(tally.LinearDurationBuckets(0, 10*time.Millisecond, 10))
	assert.Equal(t, want, buckets)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name       string
		doc        string
		validation bool
	}{
		{"unknown field", "prefix: a\nreportEvery: 1s\n", false},
		{"malformed", "prefix: [\n", false},
		{"negative interval", "reportInterval: -1s\n", true},
		{"interval and cron", "reportInterval: 1s\nreportCron: \"@every 1s\"\n", true},
		{"unknown reporter", "reporter: {kind: statsd}\n", true},
		{"redis without addr", "reporter: {kind: redis}\n", true},
		{"unknown bucket kind", "defaultBuckets: {kind: linear, bounds: [1]}\n", true},
		{"two bucket layouts", "defaultBuckets: {kind: value, bounds: [1], linear: {start: 0, width: 1, count: 2}}\n", true},
		{"no bucket layout", "defaultBuckets: {kind: value}\n", true},
		{"unsorted bounds", "defaultBuckets: {kind: value, bounds: [2, 1]}\n", true},
		{"zero width", "defaultBuckets: {kind: duration, linear: {start: 0s, width: 0s, count: 3}}\n", true},
		{"bad duration", "defaultBuckets: {kind: duration, bounds: [fast]}\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			if tt.validation {
				assert.True(t, gferrors.IsValidationError(err), "expected a validation error, got %v", err)
			}
		})
	}
}

func TestBucketsConfiguration_Build(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want tally.Buckets
	}{
		{
			name: "value bounds",
			doc:  "defaultBuckets: {kind: value, bounds: [1, 2.5, 10]}\n",
			want: tally.MustBuckets(tally.NewValueBuckets(1, 2.5, 10)),
		},
		{
			name: "value linear",
			doc:  "defaultBuckets: {kind: value, linear: {start: 0, width: 5, count: 3}}\n",
			want: tally.MustBuckets(tally.LinearValueBuckets(0, 5, 3)),
		},
		{
			name: "value exponential",
			doc:  "defaultBuckets: {kind: value, exponential: {start: 1, factor: 2, count: 4}}\n",
			want: tally.MustBuckets(tally.ExponentialValueBuckets(1, 2, 4)),
		},
		{
			name: "duration bounds by default",
			doc:  "defaultBuckets: {bounds: [1ms, 1s]}\n",
			want: tally.MustBuckets(tally.NewDurationBuckets(time.Millisecond, time.Second)),
		},
		{
			name: "duration exponential",
			doc:  "defaultBuckets: {kind: duration, exponential: {start: 1ms, factor: 10, count: 3}}\n",
			want: tally.MustBuckets(tally.ExponentialDurationBuckets(time.Millisecond, 10, 3)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.doc))
			require.NoError(t, err)
			got, err := cfg.DefaultBuckets.Build()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	var none *BucketsConfiguration
	got, err := none.Build()
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gotally.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prefix: loaded\nreporter: {kind: snapshot}\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "loaded", cfg.Prefix)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewRootScope_Snapshot(t *testing.T) {
	cfg, err := Parse([]byte(`
prefix: app
separator: "_"
tags: {env: test}
reporter: {kind: snapshot}
`))
	require.NoError(t, err)

	scope, err := cfg.NewRootScope(zaptest.NewLogger(t))
	require.NoError(t, err)
	defer scope.Close()

	scope.Counter("hits").Inc(2)
	snap, err := scope.Snapshot()
	require.NoError(t, err)

	c, ok := snap.Counters()[tally.NewScopeKey("app_hits", map[string]string{"env": "test"})]
	require.True(t, ok)
	assert.Equal(t, int64(2), c.Value)
}

func TestNewRootScope_None(t *testing.T) {
	cfg, err := Parse([]byte("prefix: quiet\n"))
	require.NoError(t, err)

	scope, err := cfg.NewRootScope(nil)
	require.NoError(t, err)
	assert.Equal(t, tally.NoCapabilities, scope.Capabilities())
	assert.NoError(t, scope.Close())
}

func TestNewRootScope_Prometheus(t *testing.T) {
	cfg, err := Parse([]byte("prefix: web\nreporter: {kind: prometheus, prometheus: {namespace: svc}}\n"))
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	cfg.Reporter.Prometheus.Registerer = reg

	scope, err := cfg.NewRootScope(zaptest.NewLogger(t))
	require.NoError(t, err)

	scope.Gauge("inflight").Update(7)
	_, err = scope.Snapshot()
	assert.ErrorIs(t, err, gferrors.ErrSnapshotUnsupported)

	// Snapshot ran no iteration, so nothing is published yet.
	n, err := testutil.GatherAndCount(reg, "svc_web_inflight")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, scope.Close())
}

func TestNewRootScope_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg, err := Parse([]byte("prefix: worker\nreporter:\n  kind: redis\n  redis: {addr: \"" + mr.Addr() + "\", keyPrefix: stats, instanceID: w1}\n"))
	require.NoError(t, err)

	scope, err := cfg.NewRootScope(zaptest.NewLogger(t))
	require.NoError(t, err)

	scope.Counter("jobs").Inc(4)
	require.NoError(t, scope.Close())

	assert.Equal(t, "4", mr.HGet("stats:counters", "worker.jobs"))
	members, err := mr.Members("stats:instances")
	require.NoError(t, err)
	assert.Equal(t, []string{"w1"}, members)
}
