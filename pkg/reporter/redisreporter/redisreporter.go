// Package redisreporter writes gotally metrics to Redis so several instances
// of a service can be aggregated from one place.
//
// Every flush writes, under a configurable key prefix:
//
//	<prefix>:counters          hash of metric id to cumulative count
//	<prefix>:gauges            hash of metric id to last value
//	<prefix>:histogram:<id>    hash of bucket upper bound to sample count
//	<prefix>:timer:<id>        list of recent timer samples in nanoseconds
//	<prefix>:instances         set of reporting instance IDs
//
// Metric ids are the canonical name+tag form of tally.ScopeKey.
package redisreporter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	gferrors "github.com/vnykmshr/gotally/pkg/common/errors"
	"github.com/vnykmshr/gotally/pkg/common/validation"
	"github.com/vnykmshr/gotally/pkg/metrics"
	"github.com/vnykmshr/gotally/pkg/tally"
)

const reporterName = "redis"

// Config holds configuration for the Redis reporter.
type Config struct {
	// Client is the Redis connection. Required.
	Client redis.UniversalClient

	// KeyPrefix namespaces every key written. Default: "gotally".
	KeyPrefix string

	// KeyTTL is applied to every key on each flush (defaults to 1 hour)
	KeyTTL time.Duration

	// Timeout bounds one flush pipeline (defaults to 1 second)
	Timeout time.Duration

	// MaxTimerSamples caps the length of each timer list (defaults to 1000)
	MaxTimerSamples int

	// InstanceID identifies this process in the instances set. Default: a random UUID.
	InstanceID string

	// CloseClient makes Close also close Client.
	CloseClient bool

	Logger  *zap.Logger
	Metrics *metrics.Registry
}

// DefaultConfig returns a default Redis reporter configuration.
func DefaultConfig() Config {
	return Config{
		KeyPrefix:       "gotally",
		KeyTTL:          time.Hour,
		Timeout:         time.Second,
		MaxTimerSamples: 1000,
	}
}

func validateConfig(cfg Config) error {
	if cfg.Client == nil {
		return gferrors.NewValidationError("redisreporter", "client", nil, "cannot be nil").
			WithHint("pass a redis.NewClient or redis.NewUniversalClient result")
	}
	if err := validation.ValidateNonNegativeDuration("redisreporter", "keyTTL", cfg.KeyTTL); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration("redisreporter", "timeout", cfg.Timeout); err != nil {
		return err
	}
	if cfg.MaxTimerSamples < 0 {
		return gferrors.NewValidationError("redisreporter", "maxTimerSamples", cfg.MaxTimerSamples, "cannot be negative")
	}
	return nil
}

func applyConfigDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaults.KeyPrefix
	}
	if cfg.KeyTTL == 0 {
		cfg.KeyTTL = defaults.KeyTTL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxTimerSamples == 0 {
		cfg.MaxTimerSamples = defaults.MaxTimerSamples
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg
}

// batch is everything reported since the last flush.
type batch struct {
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string]map[string]int64
	timers     map[string][]int64
}

func newBatch() *batch {
	return &batch{
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string]map[string]int64),
		timers:     make(map[string][]int64),
	}
}

func (b *batch) series() int {
	return len(b.counters) + len(b.gauges) + len(b.histograms) + len(b.timers)
}

// Reporter is a tally.StatsReporter that buffers reports in memory and writes
// them to Redis on Flush.
type Reporter struct {
	config Config

	mu      sync.Mutex
	pending *batch

	closed atomic.Bool
}

var _ tally.StatsReporter = (*Reporter)(nil)

// New creates a Redis reporter on client with default configuration.
func New(client redis.UniversalClient) (*Reporter, error) {
	cfg := DefaultConfig()
	cfg.Client = client
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Redis reporter.
func NewWithConfig(cfg Config) (*Reporter, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return &Reporter{
		config:  applyConfigDefaults(cfg),
		pending: newBatch(),
	}, nil
}

// InstanceID returns the ID this reporter registers in the instances set.
func (r *Reporter) InstanceID() string {
	return r.config.InstanceID
}

func (r *Reporter) Capabilities() tally.Capabilities {
	return tally.Capabilities{
		Reporting:   true,
		Tagging:     true,
		CounterMode: tally.CounterModeCumulative,
	}
}

func (r *Reporter) ReportCounter(name string, tags map[string]string, value int64) {
	id := metricID(name, tags)
	r.mu.Lock()
	r.pending.counters[id] = value
	r.mu.Unlock()
}

func (r *Reporter) ReportGauge(name string, tags map[string]string, value float64) {
	id := metricID(name, tags)
	r.mu.Lock()
	r.pending.gauges[id] = value
	r.mu.Unlock()
}

func (r *Reporter) ReportTimer(name string, tags map[string]string, interval time.Duration) {
	id := metricID(name, tags)
	r.mu.Lock()
	r.pending.timers[id] = append(r.pending.timers[id], interval.Nanoseconds())
	r.mu.Unlock()
}

func (r *Reporter) ReportHistogramValueSamples(
	name string,
	tags map[string]string,
	_ tally.Buckets,
	_,
	bucketUpperBound float64,
	samples int64,
) {
	r.reportBucket(metricID(name, tags), strconv.FormatFloat(bucketUpperBound, 'g', -1, 64), samples)
}

func (r *Reporter) ReportHistogramDurationSamples(
	name string,
	tags map[string]string,
	_ tally.Buckets,
	_,
	bucketUpperBound time.Duration,
	samples int64,
) {
	field := bucketUpperBound.String()
	if bucketUpperBound == tally.MaxDuration {
		field = strconv.FormatFloat(math.Inf(1), 'g', -1, 64)
	}
	r.reportBucket(metricID(name, tags), field, samples)
}

func (r *Reporter) reportBucket(id, field string, samples int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	buckets, ok := r.pending.histograms[id]
	if !ok {
		buckets = make(map[string]int64)
		r.pending.histograms[id] = buckets
	}
	buckets[field] = samples
}

// Flush writes the pending batch in one pipeline. A batch that fails to
// write is dropped.
func (r *Reporter) Flush() error {
	return r.FlushContext(context.Background())
}

// FlushContext is Flush bounded by ctx as well as the configured timeout.
func (r *Reporter) FlushContext(ctx context.Context) error {
	start := time.Now()

	r.mu.Lock()
	b := r.pending
	r.pending = newBatch()
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	pipe := r.config.Client.Pipeline()
	r.write(ctx, pipe, b)

	if _, err := pipe.Exec(ctx); err != nil {
		cause := err
		if errors.Is(err, context.DeadlineExceeded) {
			cause = fmt.Errorf("%w: %w", gferrors.ErrTimeout, err)
		}
		ferr := gferrors.NewOperationError("redisreporter", "Flush", cause).
			WithContext(fmt.Sprintf("%d series dropped", b.series()))

		r.config.Logger.Warn("redis flush failed",
			zap.String("instance", r.config.InstanceID),
			zap.Int("series", b.series()),
			zap.Error(err))
		r.config.Metrics.ObserveDropped(reporterName, "flush_failed", b.series())
		r.config.Metrics.ObserveFlush(reporterName, start, 0, ferr)
		return ferr
	}

	r.config.Metrics.ObserveFlush(reporterName, start, b.series(), nil)
	return nil
}

func (r *Reporter) write(ctx context.Context, pipe redis.Pipeliner, b *batch) {
	ttl := r.config.KeyTTL

	if len(b.counters) > 0 {
		key := r.key("counters")
		fields := make(map[string]interface{}, len(b.counters))
		for id, v := range b.counters {
			fields[id] = v
		}
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, ttl)
	}

	if len(b.gauges) > 0 {
		key := r.key("gauges")
		fields := make(map[string]interface{}, len(b.gauges))
		for id, v := range b.gauges {
			fields[id] = v
		}
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, ttl)
	}

	for id, buckets := range b.histograms {
		key := r.key("histogram", id)
		fields := make(map[string]interface{}, len(buckets))
		for bound, n := range buckets {
			fields[bound] = n
		}
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, ttl)
	}

	for id, samples := range b.timers {
		key := r.key("timer", id)
		values := make([]interface{}, len(samples))
		for i, ns := range samples {
			values[i] = ns
		}
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, int64(-r.config.MaxTimerSamples), -1)
		pipe.Expire(ctx, key, ttl)
	}

	instances := r.key("instances")
	pipe.SAdd(ctx, instances, r.config.InstanceID)
	pipe.Expire(ctx, instances, ttl)
}

// Close flushes pending reports and closes the client if CloseClient is set.
func (r *Reporter) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return gferrors.ErrClosed
	}

	err := r.Flush()
	if r.config.CloseClient {
		if cerr := r.config.Client.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("redisreporter: close client: %w", cerr))
		}
	}
	return err
}

func (r *Reporter) key(parts ...string) string {
	key := r.config.KeyPrefix
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

func metricID(name string, tags map[string]string) string {
	return tally.NewScopeKey(name, tags).String()
}
