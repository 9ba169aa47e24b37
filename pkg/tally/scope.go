package tally

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/vnykmshr/gotally/pkg/clock"
	gferrors "github.com/vnykmshr/gotally/pkg/common/errors"
	"github.com/vnykmshr/gotally/pkg/common/validation"
	"github.com/vnykmshr/gotally/pkg/scheduling/scheduler"
)

// Scope is a namespace of metrics sharing a name prefix and a tag set.
// Metric accessors return the same instance for the same name for the life
// of the scope. All methods are safe for concurrent use.
type Scope interface {
	Counter(name string) Counter
	Gauge(name string) Gauge
	Timer(name string) Timer
	// Histogram returns the named histogram. A nil buckets selects the scope
	// default buckets; buckets are ignored when the histogram already exists.
	Histogram(name string, buckets Buckets) Histogram

	// Tagged returns the scope with tags merged over this scope's tags.
	Tagged(tags map[string]string) Scope
	// SubScope returns the scope whose prefix extends this one with name.
	SubScope(name string) Scope

	// Prefix returns the scope's name prefix.
	Prefix() string
	// Tags returns a copy of the scope's tags.
	Tags() map[string]string

	// Capabilities returns the reporter capabilities, or NoCapabilities
	// when no reporter is configured.
	Capabilities() Capabilities
}

// TestScope is a Scope that can produce snapshots of its metrics.
type TestScope interface {
	Scope
	// Snapshot runs one report iteration and returns the values it
	// captured. It fails with errors.ErrSnapshotUnsupported unless the
	// reporter is SnapshotCapable.
	Snapshot() (Snapshot, error)
}

// RootScope is the scope returned by NewRootScope. Closing it stops periodic
// reporting, reports one final time and closes the reporter.
type RootScope interface {
	TestScope
	io.Closer
}

// ScopeOptions configures a root scope.
type ScopeOptions struct {
	Prefix    string
	Tags      map[string]string
	Separator string // default "."

	// Reporter receives every report; nil disables reporting.
	Reporter StatsReporter
	// DefaultBuckets are used by Histogram(name, nil). Default: DefaultBuckets.
	DefaultBuckets Buckets
	// Clock measures stopwatch intervals. Default: clock.System().
	Clock clock.Clock

	// ReportInterval schedules a report iteration every interval; zero
	// disables periodic reporting.
	ReportInterval time.Duration
	// ReportCron schedules report iterations on a cron expression with a
	// seconds field. Mutually exclusive with ReportInterval.
	ReportCron string
	// Scheduler runs the report task. When nil and reporting is scheduled,
	// the scope starts and owns a scheduler of its own.
	Scheduler scheduler.Scheduler

	// OnError receives report iteration failures. Default: log through Logger.
	OnError func(error)
	Logger  *zap.Logger
}

const defaultSeparator = "."

// reportable is a metric buffered between report iterations.
type reportable interface {
	report(name string, tags map[string]string, r StatsReporter, mode CounterMode)
}

type reportableMetric struct {
	name   string
	metric reportable
}

// registry holds every scope of one root scope tree, and the settings they
// share.
type registry struct {
	separator      string
	reporter       StatsReporter
	snapshotter    SnapshotCapable
	caps           Capabilities
	clock          clock.Clock
	defaultBuckets Buckets

	scopes sync.Map // ScopeKey -> *scope

	// reportMu serializes report iterations.
	reportMu sync.Mutex
}

func (r *registry) subscope(prefix string, tags map[string]string) *scope {
	key := NewScopeKey(prefix, tags)
	if s, ok := r.scopes.Load(key); ok {
		return s.(*scope)
	}
	s, _ := r.scopes.LoadOrStore(key, newScope(r, prefix, tags))
	return s.(*scope)
}

// report runs one report iteration. Panics raised by the reporter end the
// iteration and are returned as errors.
func (r *registry) report() error {
	r.reportMu.Lock()
	defer r.reportMu.Unlock()
	return r.reportLocked()
}

func (r *registry) reportLocked() (err error) {
	if r.reporter == nil {
		return nil
	}

	defer func() {
		if p := recover(); p != nil {
			if perr, ok := p.(error); ok {
				err = fmt.Errorf("tally: reporter panicked: %w", perr)
			} else {
				err = fmt.Errorf("tally: reporter panicked: %v", p)
			}
		}
	}()

	r.scopes.Range(func(_, s any) bool {
		s.(*scope).report(r.reporter, r.caps.CounterMode)
		return true
	})

	if err := r.reporter.Flush(); err != nil {
		return fmt.Errorf("tally: flush: %w", err)
	}
	return nil
}

type scope struct {
	registry *registry
	prefix   string
	tags     map[string]string

	counters   sync.Map
	gauges     sync.Map
	timers     sync.Map
	histograms sync.Map

	mu          sync.Mutex
	reportables []reportableMetric
}

func newScope(r *registry, prefix string, tags map[string]string) *scope {
	return &scope{
		registry: r,
		prefix:   prefix,
		tags:     tags,
	}
}

// getOrCreate returns the metric stored under name in m, creating it on
// first use. Only the instance that wins the race is registered for reporting.
func getOrCreate[T any](s *scope, m *sync.Map, name string, create func(fullName string) T, register func(T) reportable) T {
	if v, ok := m.Load(name); ok {
		return v.(T)
	}

	fullName := s.fullyQualifiedName(name)
	v, loaded := m.LoadOrStore(name, create(fullName))
	if !loaded && register != nil {
		s.addReportable(fullName, register(v.(T)))
	}
	return v.(T)
}

func (s *scope) addReportable(name string, metric reportable) {
	s.mu.Lock()
	s.reportables = append(s.reportables, reportableMetric{name: name, metric: metric})
	s.mu.Unlock()
}

func (s *scope) Counter(name string) Counter {
	return getOrCreate(s, &s.counters, name,
		func(string) *counter { return newCounter() },
		func(c *counter) reportable { return c })
}

func (s *scope) Gauge(name string) Gauge {
	return getOrCreate(s, &s.gauges, name,
		func(string) *gauge { return newGauge() },
		func(g *gauge) reportable { return g })
}

func (s *scope) Timer(name string) Timer {
	return getOrCreate(s, &s.timers, name,
		func(fullName string) Timer {
			return newTimer(fullName, s.tags, s.registry.reporter, s.registry.clock).exported()
		},
		nil)
}

func (s *scope) Histogram(name string, buckets Buckets) Histogram {
	if buckets == nil {
		buckets = s.registry.defaultBuckets
	}
	return getOrCreate(s, &s.histograms, name,
		func(string) *histogram { return newHistogram(buckets, s.registry.clock) },
		func(h *histogram) reportable { return h })
}

func (s *scope) Tagged(tags map[string]string) Scope {
	return s.registry.subscope(s.prefix, mergeTags(s.tags, tags))
}

func (s *scope) SubScope(name string) Scope {
	return s.registry.subscope(s.fullyQualifiedName(name), s.tags)
}

func (s *scope) Prefix() string {
	return s.prefix
}

func (s *scope) Tags() map[string]string {
	return copyTags(s.tags)
}

func (s *scope) Capabilities() Capabilities {
	return s.registry.caps
}

func (s *scope) fullyQualifiedName(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + s.registry.separator + name
}

func (s *scope) report(r StatsReporter, mode CounterMode) {
	s.mu.Lock()
	metrics := s.reportables
	s.mu.Unlock()

	for _, m := range metrics {
		m.metric.report(m.name, s.tags, r, mode)
	}
}

type rootScope struct {
	*scope

	sched    scheduler.Scheduler
	ownSched bool
	taskID   string

	onError func(error)
	logger  *zap.Logger

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ RootScope = (*rootScope)(nil)

// NewRootScope creates the root of a new scope tree and, when a reporter and
// a report interval or cron expression are configured, schedules periodic
// report iterations.
func NewRootScope(opts ScopeOptions) (RootScope, error) {
	if err := validation.ValidateNonNegativeDuration("scope", "reportInterval", opts.ReportInterval); err != nil {
		return nil, err
	}
	if opts.ReportInterval > 0 && opts.ReportCron != "" {
		return nil, gferrors.NewValidationError("scope", "reportCron", opts.ReportCron, "conflicts with reportInterval").
			WithHint("set either reportInterval or reportCron")
	}

	separator := opts.Separator
	if separator == "" {
		separator = defaultSeparator
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.System()
	}
	buckets := opts.DefaultBuckets
	if buckets == nil {
		buckets = DefaultBuckets
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := &registry{
		separator:      separator,
		reporter:       opts.Reporter,
		caps:           NoCapabilities,
		clock:          clk,
		defaultBuckets: buckets,
	}
	if opts.Reporter != nil {
		reg.caps = opts.Reporter.Capabilities()
		reg.snapshotter, _ = opts.Reporter.(SnapshotCapable)
	}

	root := &rootScope{
		scope:   reg.subscope(opts.Prefix, mergeTags(nil, opts.Tags)),
		onError: opts.OnError,
		logger:  logger,
	}

	if opts.Reporter != nil && (opts.ReportInterval > 0 || opts.ReportCron != "") {
		if err := root.schedule(opts); err != nil {
			return nil, err
		}
	}
	return root, nil
}

func (r *rootScope) schedule(opts ScopeOptions) error {
	r.sched = opts.Scheduler
	if r.sched == nil {
		r.sched = scheduler.NewWithConfig(scheduler.Config{
			TickInterval: tickInterval(opts.ReportInterval),
			Logger:       r.logger,
		})
		r.ownSched = true
	}
	r.taskID = "tally-report-" + uuid.NewString()

	task := scheduler.TaskFunc(func(context.Context) error {
		if err := r.scheduledReport(); err != nil {
			r.handleError(err)
		}
		return nil
	})

	var err error
	if opts.ReportCron != "" {
		err = r.sched.ScheduleCron(r.taskID, opts.ReportCron, task)
	} else {
		err = r.sched.ScheduleRepeating(r.taskID, task, opts.ReportInterval)
	}
	if err != nil {
		return fmt.Errorf("tally: schedule reporting: %w", err)
	}

	if r.ownSched {
		if err := r.sched.Start(); err != nil {
			return fmt.Errorf("tally: start scheduler: %w", err)
		}
	}

	r.logger.Debug("scheduled tally reporting",
		zap.String("task", r.taskID),
		zap.Duration("interval", opts.ReportInterval),
		zap.String("cron", opts.ReportCron))
	return nil
}

// scheduledReport runs a report iteration unless the scope is closed. An
// iteration already queued when Close runs must not follow its final report.
func (r *rootScope) scheduledReport() error {
	r.registry.reportMu.Lock()
	defer r.registry.reportMu.Unlock()
	if r.closed.Load() {
		return nil
	}
	return r.registry.reportLocked()
}

// tickInterval picks a scheduler resolution fine enough for interval.
func tickInterval(interval time.Duration) time.Duration {
	const maxTick = 50 * time.Millisecond
	if interval <= 0 || interval >= 2*maxTick {
		return maxTick
	}
	if tick := interval / 2; tick > time.Millisecond {
		return tick
	}
	return time.Millisecond
}

func (r *rootScope) handleError(err error) {
	if r.onError == nil {
		r.logger.Error("tally report iteration failed", zap.Error(err))
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tally error handler panicked",
				zap.Any("panic", p), zap.NamedError("cause", err))
		}
	}()
	r.onError(err)
}

func (r *rootScope) Snapshot() (Snapshot, error) {
	if r.registry.snapshotter == nil {
		return Snapshot{}, gferrors.ErrSnapshotUnsupported
	}
	if r.closed.Load() {
		return Snapshot{}, gferrors.ErrClosed
	}

	r.registry.reportMu.Lock()
	defer r.registry.reportMu.Unlock()

	if err := r.registry.reportLocked(); err != nil {
		return Snapshot{}, err
	}
	return r.registry.snapshotter.FlushedSnapshot(), nil
}

// Close stops scheduled reporting, runs a final report iteration so no
// recorded value is lost and closes the reporter. Only the first call has an
// effect; later calls return its result.
func (r *rootScope) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)

		if r.sched != nil {
			r.sched.Cancel(r.taskID)
			if r.ownSched {
				<-r.sched.Stop()
			}
		}

		var errs []error
		if err := r.registry.report(); err != nil {
			errs = append(errs, err)
		}
		if r.registry.reporter != nil {
			if err := r.registry.reporter.Close(); err != nil {
				errs = append(errs, fmt.Errorf("tally: close reporter: %w", err))
			}
		}
		r.closeErr = errors.Join(errs...)
	})
	return r.closeErr
}

// TestScopeOption customizes NewTestScope.
type TestScopeOption func(*ScopeOptions)

// WithTestClock sets the clock used by stopwatches.
func WithTestClock(c clock.Clock) TestScopeOption {
	return func(o *ScopeOptions) {
		o.Clock = c
	}
}

// WithTestDefaultBuckets sets the scope default buckets.
func WithTestDefaultBuckets(b Buckets) TestScopeOption {
	return func(o *ScopeOptions) {
		o.DefaultBuckets = b
	}
}

// NewTestScope creates a root scope backed by a new SnapshotReporter, without
// periodic reporting. Use Snapshot to read recorded values.
func NewTestScope(prefix string, tags map[string]string, opts ...TestScopeOption) TestScope {
	o := ScopeOptions{
		Prefix:   prefix,
		Tags:     tags,
		Reporter: NewSnapshotReporter(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	s, err := NewRootScope(o)
	if err != nil {
		panic(err)
	}
	return s
}
