package redisreporter

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gferrors "github.com/vnykmshr/gotally/pkg/common/errors"
	"github.com/vnykmshr/gotally/pkg/metrics"
	"github.com/vnykmshr/gotally/pkg/tally"
)

func setup(t *testing.T, opts ...func(*Config)) (*Reporter, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := DefaultConfig()
	cfg.Client = client
	cfg.KeyPrefix = "test"
	for _, opt := range opts {
		opt(&cfg)
	}
	r, err := NewWithConfig(cfg)
	require.NoError(t, err)
	return r, mr, client
}

func TestNewWithConfig_Validation(t *testing.T) {
	_, err := NewWithConfig(DefaultConfig())
	require.Error(t, err)
	assert.True(t, gferrors.IsValidationError(err))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cfg := DefaultConfig()
	cfg.Client = client
	cfg.KeyTTL = -time.Second
	_, err = NewWithConfig(cfg)
	assert.True(t, gferrors.IsValidationError(err))

	cfg.KeyTTL = time.Hour
	cfg.MaxTimerSamples = -1
	_, err = NewWithConfig(cfg)
	assert.True(t, gferrors.IsValidationError(err))
}

func TestNew_Defaults(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	r, err := New(client)
	require.NoError(t, err)
	assert.Equal(t, "gotally", r.config.KeyPrefix)
	assert.Equal(t, time.Hour, r.config.KeyTTL)
	assert.Equal(t, 1000, r.config.MaxTimerSamples)

	_, err = uuid.Parse(r.InstanceID())
	assert.NoError(t, err, "default instance ID is a UUID")
	assert.Equal(t, tally.Capabilities{Reporting: true, Tagging: true, CounterMode: tally.CounterModeCumulative}, r.Capabilities())
}

func TestReporter_Flush(t *testing.T) {
	r, mr, _ := setup(t, func(c *Config) { c.InstanceID = "node-1" })

	tags := map[string]string{"region": "eu", "env": "prod"}
	r.ReportCounter("requests", tags, 3)
	r.ReportGauge("queue", nil, 4.5)
	r.ReportTimer("latency", nil, 2*time.Millisecond)
	r.ReportTimer("latency", nil, 3*time.Millisecond)
	buckets := tally.MustBuckets(tally.NewValueBuckets(1, 5))
	r.ReportHistogramValueSamples("sizes", nil, buckets, math.Inf(-1), 1, 2)
	r.ReportHistogramValueSamples("sizes", nil, buckets, 5, math.Inf(1), 1)

	assert.Empty(t, mr.Keys(), "nothing is written before Flush")
	require.NoError(t, r.Flush())

	assert.Equal(t, "3", mr.HGet("test:counters", "requests+env=prod,region=eu"))
	assert.Equal(t, "4.5", mr.HGet("test:gauges", "queue"))
	assert.Equal(t, "2", mr.HGet("test:histogram:sizes", "1"))
	assert.Equal(t, "1", mr.HGet("test:histogram:sizes", "+Inf"))

	samples, err := mr.List("test:timer:latency")
	require.NoError(t, err)
	assert.Equal(t, []string{"2000000", "3000000"}, samples)

	members, err := mr.Members("test:instances")
	require.NoError(t, err)
	assert.Equal(t, []string{"node-1"}, members)

	for _, key := range mr.Keys() {
		assert.Equal(t, time.Hour, mr.TTL(key), "ttl of %s", key)
	}
}

func TestReporter_DurationHistogramFields(t *testing.T) {
	r, mr, _ := setup(t)
	buckets := tally.MustBuckets(tally.NewDurationBuckets(100 * time.Millisecond))

	r.ReportHistogramDurationSamples("rtt", nil, buckets, 0, 100*time.Millisecond, 4)
	r.ReportHistogramDurationSamples("rtt", nil, buckets, 100*time.Millisecond, tally.MaxDuration, 1)
	require.NoError(t, r.Flush())

	assert.Equal(t, "4", mr.HGet("test:histogram:rtt", "100ms"))
	assert.Equal(t, "1", mr.HGet("test:histogram:rtt", "+Inf"))
}

func TestReporter_TimerTrim(t *testing.T) {
	r, mr, _ := setup(t, func(c *Config) { c.MaxTimerSamples = 3 })

	for i := 1; i <= 5; i++ {
		r.ReportTimer("t", nil, time.Duration(i))
	}
	require.NoError(t, r.Flush())

	samples, err := mr.List("test:timer:t")
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "4", "5"}, samples)
}

func TestReporter_FailedFlushDropsBatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	self := metrics.NewRegistry(reg)
	r, mr, _ := setup(t, func(c *Config) { c.Metrics = self })

	r.ReportCounter("lost", nil, 1)
	mr.SetError("LOADING redis is loading the dataset")

	err := r.Flush()
	require.Error(t, err)
	var opErr *gferrors.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "Flush", opErr.Operation)
	assert.Contains(t, err.Error(), "1 series dropped")

	mr.SetError("")
	r.ReportCounter("kept", nil, 2)
	require.NoError(t, r.Flush())

	assert.Empty(t, mr.HGet("test:counters", "lost"))
	assert.Equal(t, "2", mr.HGet("test:counters", "kept"))

	assert.Equal(t, 2.0, testutil.ToFloat64(self.ReporterFlushes.WithLabelValues(reporterName)))
	assert.Equal(t, 1.0, testutil.ToFloat64(self.ReporterFlushErrors.WithLabelValues(reporterName)))
	assert.Equal(t, 1.0, testutil.ToFloat64(self.ReporterDroppedSamples.WithLabelValues(reporterName, "flush_failed")))
}

func TestReporter_Close(t *testing.T) {
	t.Run("flushes and keeps the client", func(t *testing.T) {
		r, mr, client := setup(t)
		r.ReportGauge("g", nil, 1)

		require.NoError(t, r.Close())
		assert.Equal(t, "1", mr.HGet("test:gauges", "g"))
		assert.NoError(t, client.Ping(context.Background()).Err())
		assert.ErrorIs(t, r.Close(), gferrors.ErrClosed)
	})

	t.Run("closes the client when asked", func(t *testing.T) {
		r, _, client := setup(t, func(c *Config) { c.CloseClient = true })

		require.NoError(t, r.Close())
		assert.True(t, errors.Is(client.Ping(context.Background()).Err(), redis.ErrClosed))
	})
}

func TestReporter_WithRootScope(t *testing.T) {
	r, mr, _ := setup(t)

	scope, err := tally.NewRootScope(tally.ScopeOptions{
		Prefix:   "svc",
		Tags:     map[string]string{"env": "test"},
		Reporter: r,
	})
	require.NoError(t, err)

	scope.Counter("requests").Inc(1)
	scope.Counter("requests").Inc(1)
	scope.SubScope("db").Timer("query").Record(5 * time.Millisecond)
	require.NoError(t, scope.Close())

	assert.Equal(t, "2", mr.HGet("test:counters", "svc.requests+env=test"))
	samples, err := mr.List("test:timer:svc.db.query+env=test")
	require.NoError(t, err)
	assert.Equal(t, []string{"5000000"}, samples)
}
