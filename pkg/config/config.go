// Package config builds gotally root scopes from YAML documents.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	gferrors "github.com/vnykmshr/gotally/pkg/common/errors"
	"github.com/vnykmshr/gotally/pkg/metrics"
	"github.com/vnykmshr/gotally/pkg/reporter/promreporter"
	"github.com/vnykmshr/gotally/pkg/reporter/redisreporter"
	"github.com/vnykmshr/gotally/pkg/tally"
)

// Reporter kinds.
const (
	ReporterNone       = "none"
	ReporterSnapshot   = "snapshot"
	ReporterPrometheus = "prometheus"
	ReporterRedis      = "redis"
)

// Bucket kinds.
const (
	BucketsValue    = "value"
	BucketsDuration = "duration"
)

// Configuration describes a root scope and its reporter.
type Configuration struct {
	Prefix    string            `yaml:"prefix"`
	Separator string            `yaml:"separator"`
	Tags      map[string]string `yaml:"tags"`

	// ReportInterval and ReportCron are mutually exclusive.
	ReportInterval time.Duration `yaml:"reportInterval"`
	ReportCron     string        `yaml:"reportCron"`

	DefaultBuckets *BucketsConfiguration `yaml:"defaultBuckets"`
	Reporter       ReporterConfiguration `yaml:"reporter"`
}

// BucketsConfiguration describes histogram buckets. Exactly one of Bounds,
// Linear and Exponential is set. Bound values are numbers for value buckets
// and duration strings for duration buckets.
type BucketsConfiguration struct {
	Kind        string                    `yaml:"kind"`
	Bounds      []Bound                   `yaml:"bounds"`
	Linear      *LinearConfiguration      `yaml:"linear"`
	Exponential *ExponentialConfiguration `yaml:"exponential"`
}

type LinearConfiguration struct {
	Start Bound `yaml:"start"`
	Width Bound `yaml:"width"`
	Count int   `yaml:"count"`
}

type ExponentialConfiguration struct {
	Start  Bound   `yaml:"start"`
	Factor float64 `yaml:"factor"`
	Count  int     `yaml:"count"`
}

// Bound is a bucket bound as written in the document.
type Bound string

// UnmarshalYAML accepts both numbers and strings.
func (b *Bound) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		*b = Bound(v)
	case int, int64, uint64, float64:
		*b = Bound(fmt.Sprint(v))
	default:
		return fmt.Errorf("bucket bound must be a number or a duration, got %T", raw)
	}
	return nil
}

func (b Bound) float() (float64, error) {
	return strconv.ParseFloat(string(b), 64)
}

func (b Bound) duration() (time.Duration, error) {
	return time.ParseDuration(string(b))
}

// ReporterConfiguration selects and configures the reporter.
type ReporterConfiguration struct {
	Kind string `yaml:"kind"`

	// Metrics enables self-instrumentation on the default Prometheus registry.
	Metrics bool `yaml:"metrics"`

	Prometheus PrometheusConfiguration `yaml:"prometheus"`
	Redis      RedisConfiguration      `yaml:"redis"`
}

type PrometheusConfiguration struct {
	Namespace    string            `yaml:"namespace"`
	ConstLabels  map[string]string `yaml:"constLabels"`
	TimerBuckets []float64         `yaml:"timerBuckets"`

	// Registerer overrides prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer `yaml:"-"`
}

type RedisConfiguration struct {
	Addrs           []string      `yaml:"addrs"`
	Addr            string        `yaml:"addr"`
	Password        string        `yaml:"password"`
	DB              int           `yaml:"db"`
	KeyPrefix       string        `yaml:"keyPrefix"`
	KeyTTL          time.Duration `yaml:"keyTTL"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxTimerSamples int           `yaml:"maxTimerSamples"`
	InstanceID      string        `yaml:"instanceID"`
}

func (c RedisConfiguration) addrs() []string {
	if len(c.Addrs) > 0 {
		return c.Addrs
	}
	if c.Addr != "" {
		return []string{c.Addr}
	}
	return nil
}

// Load reads and validates the configuration at path.
func Load(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a YAML document. Unknown fields are rejected.
func Parse(data []byte) (*Configuration, error) {
	var cfg Configuration
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration without connecting to anything.
func (c *Configuration) Validate() error {
	if c.ReportInterval < 0 {
		return gferrors.NewValidationError("config", "reportInterval", c.ReportInterval, "cannot be negative").
			WithHint("use 0 to disable periodic reporting")
	}
	if c.ReportInterval > 0 && c.ReportCron != "" {
		return gferrors.NewValidationError("config", "reportCron", c.ReportCron, "cannot be combined with reportInterval")
	}
	if _, err := c.DefaultBuckets.Build(); err != nil {
		return err
	}

	switch c.Reporter.Kind {
	case "", ReporterNone, ReporterSnapshot, ReporterPrometheus:
	case ReporterRedis:
		if len(c.Reporter.Redis.addrs()) == 0 {
			return gferrors.NewValidationError("config", "reporter.redis.addr", "", "cannot be empty")
		}
	default:
		return gferrors.NewValidationError("config", "reporter.kind", c.Reporter.Kind, "unknown reporter").
			WithHint("use one of none, snapshot, prometheus, redis")
	}
	return nil
}

// Build returns the configured buckets, or nil when b is nil.
func (b *BucketsConfiguration) Build() (tally.Buckets, error) {
	if b == nil {
		return nil, nil
	}

	set := 0
	if len(b.Bounds) > 0 {
		set++
	}
	if b.Linear != nil {
		set++
	}
	if b.Exponential != nil {
		set++
	}
	if set != 1 {
		return nil, gferrors.NewValidationError("config", "defaultBuckets", set, "exactly one of bounds, linear, exponential must be set")
	}

	var (
		buckets tally.Buckets
		err     error
	)
	switch b.Kind {
	case BucketsValue:
		buckets, err = b.valueBuckets()
	case BucketsDuration, "":
		buckets, err = b.durationBuckets()
	default:
		return nil, gferrors.NewValidationError("config", "defaultBuckets.kind", b.Kind, "unknown bucket kind").
			WithHint("use value or duration")
	}
	if err != nil {
		return nil, fmt.Errorf("defaultBuckets: %w", err)
	}
	return buckets, nil
}

func (b *BucketsConfiguration) valueBuckets() (tally.Buckets, error) {
	switch {
	case b.Linear != nil:
		start, err := b.Linear.Start.float()
		if err != nil {
			return nil, err
		}
		width, err := b.Linear.Width.float()
		if err != nil {
			return nil, err
		}
		return tally.LinearValueBuckets(start, width, b.Linear.Count)
	case b.Exponential != nil:
		start, err := b.Exponential.Start.float()
		if err != nil {
			return nil, err
		}
		return tally.ExponentialValueBuckets(start, b.Exponential.Factor, b.Exponential.Count)
	default:
		bounds := make([]float64, len(b.Bounds))
		for i, raw := range b.Bounds {
			v, err := raw.float()
			if err != nil {
				return nil, err
			}
			bounds[i] = v
		}
		return tally.NewValueBuckets(bounds...)
	}
}

func (b *BucketsConfiguration) durationBuckets() (tally.Buckets, error) {
	switch {
	case b.Linear != nil:
		start, err := b.Linear.Start.duration()
		if err != nil {
			return nil, err
		}
		width, err := b.Linear.Width.duration()
		if err != nil {
			return nil, err
		}
		return tally.LinearDurationBuckets(start, width, b.Linear.Count)
	case b.Exponential != nil:
		start, err := b.Exponential.Start.duration()
		if err != nil {
			return nil, err
		}
		return tally.ExponentialDurationBuckets(start, b.Exponential.Factor, b.Exponential.Count)
	default:
		bounds := make([]time.Duration, len(b.Bounds))
		for i, raw := range b.Bounds {
			d, err := raw.duration()
			if err != nil {
				return nil, err
			}
			bounds[i] = d
		}
		return tally.NewDurationBuckets(bounds...)
	}
}

// NewReporter builds the configured reporter. It returns nil for the none kind.
func (c *Configuration) NewReporter(logger *zap.Logger) (tally.StatsReporter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var self *metrics.Registry
	if c.Reporter.Metrics {
		self = metrics.Default()
	}

	switch c.Reporter.Kind {
	case "", ReporterNone:
		return nil, nil
	case ReporterSnapshot:
		return tally.NewSnapshotReporter(), nil
	case ReporterPrometheus:
		pc := c.Reporter.Prometheus
		cfg := promreporter.DefaultConfig()
		if pc.Registerer != nil {
			cfg.Registerer = pc.Registerer
		}
		cfg.Namespace = pc.Namespace
		cfg.ConstLabels = pc.ConstLabels
		if len(pc.TimerBuckets) > 0 {
			cfg.TimerBuckets = pc.TimerBuckets
		}
		cfg.Logger = logger.Named("promreporter")
		cfg.Metrics = self
		return promreporter.NewWithConfig(cfg)
	case ReporterRedis:
		rc := c.Reporter.Redis
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    rc.addrs(),
			Password: rc.Password,
			DB:       rc.DB,
		})
		cfg := redisreporter.DefaultConfig()
		cfg.Client = client
		cfg.CloseClient = true
		if rc.KeyPrefix != "" {
			cfg.KeyPrefix = rc.KeyPrefix
		}
		cfg.KeyTTL = rc.KeyTTL
		cfg.Timeout = rc.Timeout
		cfg.MaxTimerSamples = rc.MaxTimerSamples
		cfg.InstanceID = rc.InstanceID
		cfg.Logger = logger.Named("redisreporter")
		cfg.Metrics = self
		r, err := redisreporter.NewWithConfig(cfg)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return r, nil
	default:
		return nil, gferrors.NewValidationError("config", "reporter.kind", c.Reporter.Kind, "unknown reporter")
	}
}

// NewRootScope builds the reporter and a root scope reporting to it.
func (c *Configuration) NewRootScope(logger *zap.Logger) (tally.RootScope, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	buckets, err := c.DefaultBuckets.Build()
	if err != nil {
		return nil, err
	}
	reporter, err := c.NewReporter(logger)
	if err != nil {
		return nil, err
	}

	scope, err := tally.NewRootScope(tally.ScopeOptions{
		Prefix:         c.Prefix,
		Tags:           c.Tags,
		Separator:      c.Separator,
		Reporter:       reporter,
		DefaultBuckets: buckets,
		ReportInterval: c.ReportInterval,
		ReportCron:     c.ReportCron,
		Logger:         logger,
	})
	if err != nil {
		if reporter != nil {
			_ = reporter.Close()
		}
		return nil, err
	}

	logger.Info("gotally root scope created",
		zap.String("prefix", c.Prefix),
		zap.String("reporter", c.Reporter.Kind),
		zap.Duration("reportInterval", c.ReportInterval),
		zap.String("reportCron", c.ReportCron))
	return scope, nil
}
