// Package promreporter exposes gotally metrics to Prometheus.
package promreporter

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	gferrors "github.com/vnykmshr/gotally/pkg/common/errors"
	"github.com/vnykmshr/gotally/pkg/metrics"
	"github.com/vnykmshr/gotally/pkg/tally"
)

const reporterName = "prometheus"

// Config holds reporter configuration.
type Config struct {
	// Registerer receives the reporter's collectors. Default: prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	// Namespace prefixes every metric name.
	Namespace string
	// ConstLabels are added to every metric.
	ConstLabels prometheus.Labels
	// TimerBuckets are the histogram buckets of timers, in seconds.
	// Default: prometheus.DefBuckets.
	TimerBuckets []float64

	Logger  *zap.Logger
	Metrics *metrics.Registry
}

// DefaultConfig returns a default reporter configuration.
func DefaultConfig() Config {
	return Config{
		Registerer:   prometheus.DefaultRegisterer,
		TimerBuckets: prometheus.DefBuckets,
	}
}

type metricKind int

const (
	counterKind metricKind = iota
	gaugeKind
	histogramKind
	timerKind
)

func (k metricKind) String() string {
	switch k {
	case counterKind:
		return "counter"
	case gaugeKind:
		return "gauge"
	case histogramKind:
		return "histogram"
	default:
		return "timer"
	}
}

// family is every series sharing one metric name. Label names are fixed by
// the first report of the name.
type family struct {
	kind    metricKind
	name    string
	tagKeys []string
	desc    *prometheus.Desc
	timers  *prometheus.HistogramVec
	warned  bool
}

type series struct {
	family      *family
	labelValues []string
	value       float64

	buckets tally.Buckets
	counts  map[float64]uint64 // by range upper bound, +Inf for overflow
}

// Reporter is a tally.StatsReporter exposing metrics through two collectors:
// a checked one for the published-series gauge, and an unchecked one for the
// reported series, whose descriptors are not known in advance. Counters,
// gauges and histograms become visible to scrapes on Flush; timers are
// observed into live histograms as they are recorded.
type Reporter struct {
	registerer   prometheus.Registerer
	namespace    string
	constLabels  prometheus.Labels
	timerBuckets []float64
	logger       *zap.Logger
	metrics      *metrics.Registry

	publishedDesc *prometheus.Desc
	self          *selfCollector
	data          *seriesCollector

	mu       sync.Mutex
	families map[string]*family
	series   map[string]*series
	errs     []error
	dropped  int

	published atomic.Pointer[[]prometheus.Metric]
	closed    atomic.Bool
}

var (
	_ tally.StatsReporter  = (*Reporter)(nil)
	_ prometheus.Collector = (*selfCollector)(nil)
	_ prometheus.Collector = (*seriesCollector)(nil)
)

// New creates a reporter with default configuration.
func New() (*Reporter, error) {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a reporter and registers its collectors on
// cfg.Registerer.
func NewWithConfig(cfg Config) (*Reporter, error) {
	registerer := cfg.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	timerBuckets := cfg.TimerBuckets
	if len(timerBuckets) == 0 {
		timerBuckets = prometheus.DefBuckets
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	namespace := ""
	if cfg.Namespace != "" {
		namespace = sanitizeName(cfg.Namespace)
	}

	r := &Reporter{
		registerer:   registerer,
		namespace:    namespace,
		constLabels:  cfg.ConstLabels,
		timerBuckets: timerBuckets,
		logger:       logger,
		metrics:      cfg.Metrics,
		publishedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "gotally_published_series"),
			"Number of series published by the last gotally flush.",
			nil,
			cfg.ConstLabels,
		),
		families: make(map[string]*family),
		series:   make(map[string]*series),
	}
	empty := make([]prometheus.Metric, 0)
	r.published.Store(&empty)

	r.self = &selfCollector{r: r}
	r.data = &seriesCollector{r: r}

	if err := registerer.Register(r.self); err != nil {
		return nil, fmt.Errorf("promreporter: register collector: %w", err)
	}
	if err := registerer.Register(r.data); err != nil {
		registerer.Unregister(r.self)
		return nil, fmt.Errorf("promreporter: register series collector: %w", err)
	}
	return r, nil
}

func (r *Reporter) Capabilities() tally.Capabilities {
	return tally.Capabilities{
		Reporting:   true,
		Tagging:     true,
		CounterMode: tally.CounterModeCumulative,
	}
}

func (r *Reporter) ReportCounter(name string, tags map[string]string, value int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.seriesFor(counterKind, name, tags); s != nil {
		s.value = float64(value)
	}
}

func (r *Reporter) ReportGauge(name string, tags map[string]string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.seriesFor(gaugeKind, name, tags); s != nil {
		s.value = value
	}
}

func (r *Reporter) ReportTimer(name string, tags map[string]string, interval time.Duration) {
	r.mu.Lock()
	f, values, ok := r.familyFor(timerKind, name, tags)
	r.mu.Unlock()
	if !ok {
		return
	}

	obs, err := f.timers.GetMetricWithLabelValues(values...)
	if err != nil {
		r.recordError(err)
		return
	}
	obs.Observe(interval.Seconds())
}

func (r *Reporter) ReportHistogramValueSamples(
	name string,
	tags map[string]string,
	buckets tally.Buckets,
	_,
	bucketUpperBound float64,
	samples int64,
) {
	r.reportHistogram(name, tags, buckets, bucketUpperBound, samples)
}

func (r *Reporter) ReportHistogramDurationSamples(
	name string,
	tags map[string]string,
	buckets tally.Buckets,
	_,
	bucketUpperBound time.Duration,
	samples int64,
) {
	upper := math.Inf(1)
	if bucketUpperBound != tally.MaxDuration {
		upper = bucketUpperBound.Seconds()
	}
	r.reportHistogram(name, tags, buckets, upper, samples)
}

func (r *Reporter) reportHistogram(name string, tags map[string]string, buckets tally.Buckets, upper float64, samples int64) {
	if samples < 0 {
		samples = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.seriesFor(histogramKind, name, tags)
	if s == nil {
		return
	}
	if s.counts == nil {
		s.buckets = buckets
		s.counts = make(map[float64]uint64, buckets.Len())
	}
	s.counts[upper] = uint64(samples)
}

// seriesFor returns the series of name and tags, or nil when the sample has
// to be dropped. Callers hold r.mu.
func (r *Reporter) seriesFor(kind metricKind, name string, tags map[string]string) *series {
	f, values, ok := r.familyFor(kind, name, tags)
	if !ok {
		return nil
	}

	key := f.name + "\xff" + strings.Join(values, "\xff")
	s, exists := r.series[key]
	if !exists {
		s = &series{family: f, labelValues: values}
		r.series[key] = s
	}
	return s
}

// familyFor resolves the family of name and projects tags onto its label
// names. Callers hold r.mu.
func (r *Reporter) familyFor(kind metricKind, name string, tags map[string]string) (*family, []string, bool) {
	fqName := prometheus.BuildFQName(r.namespace, "", sanitizeName(name))

	f, ok := r.families[fqName]
	if !ok {
		f = r.newFamily(kind, fqName, name, tags)
		r.families[fqName] = f
	}
	if f.kind != kind {
		r.errs = append(r.errs, fmt.Errorf("%s reported as %s, already known as %s", fqName, kind, f.kind))
		r.dropped++
		return nil, nil, false
	}

	values := make([]string, len(f.tagKeys))
	for i, k := range f.tagKeys {
		values[i] = tags[k]
	}
	if len(tags) > len(f.tagKeys) || !hasKeys(tags, f.tagKeys) {
		if !f.warned {
			f.warned = true
			r.logger.Warn("tag keys differ from the first report of the metric; extra tags are dropped",
				zap.String("metric", fqName),
				zap.Strings("labels", f.tagKeys))
		}
	}
	return f, values, true
}

func (r *Reporter) newFamily(kind metricKind, fqName, name string, tags map[string]string) *family {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	labels := labelNames(keys, kind == histogramKind || kind == timerKind)
	help := fmt.Sprintf("gotally %s %s", kind, name)

	f := &family{
		kind:    kind,
		name:    fqName,
		tagKeys: keys,
		desc:    prometheus.NewDesc(fqName, help, labels, r.constLabels),
	}
	if kind == timerKind {
		f.timers = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        fqName,
			Help:        help,
			ConstLabels: r.constLabels,
			Buckets:     r.timerBuckets,
		}, labels)
	}
	return f
}

func (r *Reporter) recordError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
	r.dropped++
}

func hasKeys(tags map[string]string, keys []string) bool {
	for _, k := range keys {
		if _, ok := tags[k]; !ok {
			return false
		}
	}
	return true
}

func (s *series) metric() (prometheus.Metric, error) {
	f := s.family
	switch f.kind {
	case counterKind:
		return prometheus.NewConstMetric(f.desc, prometheus.CounterValue, s.value, s.labelValues...)
	case gaugeKind:
		return prometheus.NewConstMetric(f.desc, prometheus.GaugeValue, s.value, s.labelValues...)
	default:
		count, sum, cumulative := s.histogram()
		return prometheus.NewConstHistogram(f.desc, count, sum, cumulative, s.labelValues...)
	}
}

// histogram converts per-range counts into cumulative bucket counts. The sum
// is estimated by placing every sample at its range's upper bound, and
// overflow samples at the last bound.
func (s *series) histogram() (count uint64, sum float64, cumulative map[float64]uint64) {
	bounds := s.buckets.AsValues()
	cumulative = make(map[float64]uint64, len(bounds))
	for _, b := range bounds {
		n := s.counts[b]
		count += n
		sum += float64(n) * b
		cumulative[b] = count
	}
	overflow := s.counts[math.Inf(1)]
	count += overflow
	if len(bounds) > 0 {
		sum += float64(overflow) * bounds[len(bounds)-1]
	}
	return count, sum, cumulative
}

// Flush publishes everything reported so far to scrapes.
func (r *Reporter) Flush() error {
	start := time.Now()

	r.mu.Lock()
	out := make([]prometheus.Metric, 0, len(r.series))
	errs := r.errs
	dropped := r.dropped
	r.errs, r.dropped = nil, 0
	for _, s := range r.series {
		m, err := s.metric()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, m)
	}
	r.mu.Unlock()

	r.published.Store(&out)

	var err error
	if len(errs) > 0 {
		err = gferrors.NewOperationError("promreporter", "Flush", errors.Join(errs...)).
			WithContext(fmt.Sprintf("%d samples dropped", dropped))
	}
	r.metrics.ObserveDropped(reporterName, "rejected", dropped)
	r.metrics.ObserveFlush(reporterName, start, len(out), err)
	return err
}

// Close flushes, unregisters the published-series gauge and retires the
// series collector. Unchecked collectors cannot be unregistered, so the
// series collector stays registered and collects nothing after Close.
func (r *Reporter) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := r.Flush()
	if !r.registerer.Unregister(r.self) {
		r.logger.Debug("prometheus collector was not registered")
	}
	return err
}

type selfCollector struct {
	r *Reporter
}

func (c *selfCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.r.publishedDesc
}

func (c *selfCollector) Collect(ch chan<- prometheus.Metric) {
	published := *c.r.published.Load()
	ch <- prometheus.MustNewConstMetric(c.r.publishedDesc, prometheus.GaugeValue, float64(len(published)))
}

type seriesCollector struct {
	r *Reporter
}

// Describe sends nothing, which registers the collector as unchecked.
func (c *seriesCollector) Describe(chan<- *prometheus.Desc) {}

func (c *seriesCollector) Collect(ch chan<- prometheus.Metric) {
	r := c.r
	if r.closed.Load() {
		return
	}

	for _, m := range *r.published.Load() {
		ch <- m
	}

	r.mu.Lock()
	timers := make([]*prometheus.HistogramVec, 0)
	for _, f := range r.families {
		if f.timers != nil {
			timers = append(timers, f.timers)
		}
	}
	r.mu.Unlock()

	for _, t := range timers {
		t.Collect(ch)
	}
}

// sanitizeName maps s onto the Prometheus metric name charset.
func sanitizeName(s string) string {
	var b strings.Builder
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_', c == ':':
			b.WriteRune(c)
		case c >= '0' && c <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// labelNames sanitizes tag keys into unique, non-reserved label names.
func labelNames(keys []string, histogram bool) []string {
	out := make([]string, len(keys))
	used := make(map[string]bool, len(keys))
	for i, k := range keys {
		name := strings.ReplaceAll(sanitizeName(k), ":", "_")
		if strings.HasPrefix(name, "__") || (histogram && name == "le") {
			name = "tag_" + name
		}
		candidate := name
		for n := 2; used[candidate]; n++ {
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}
