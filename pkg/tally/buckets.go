package tally

import (
	"math"
	"sort"
	"time"

	"github.com/vnykmshr/gotally/pkg/common/validation"
)

// BucketKind distinguishes value-typed from duration-typed bucket specifications.
type BucketKind int

const (
	// ValueBucketKind bounds are plain float64 values.
	ValueBucketKind BucketKind = iota
	// DurationBucketKind bounds are time.Duration values.
	DurationBucketKind
)

func (k BucketKind) String() string {
	switch k {
	case ValueBucketKind:
		return "value"
	case DurationBucketKind:
		return "duration"
	default:
		return "unknown"
	}
}

// Buckets is an ordered, strictly increasing sequence of upper bounds. N bounds
// define N+1 half-open ranges: (-Inf, b0), [b0, b1), ..., [bN-1, +Inf).
// Implementations are immutable and may be shared between histograms.
type Buckets interface {
	// Kind reports whether the bounds are values or durations.
	Kind() BucketKind
	// Len returns the number of ranges, which is the number of bounds plus one.
	Len() int
	// AsValues returns the bounds as float64; durations convert to seconds.
	AsValues() []float64
	// AsDurations returns the bounds as durations; values are read as seconds.
	AsDurations() []time.Duration

	ValueLowerBound(index int) float64
	ValueUpperBound(index int) float64
	DurationLowerBound(index int) time.Duration
	DurationUpperBound(index int) time.Duration
}

// MaxDuration is the upper bound of the overflow bucket of duration buckets.
const MaxDuration = time.Duration(math.MaxInt64)

// DefaultBuckets is used by scopes that are not configured with default buckets.
var DefaultBuckets Buckets = DurationBuckets{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	2500 * time.Millisecond,
	5 * time.Second,
	10 * time.Second,
}

// ValueBuckets is a value-typed bucket specification.
type ValueBuckets []float64

var _ Buckets = ValueBuckets(nil)

// NewValueBuckets validates bounds and returns them as ValueBuckets.
func NewValueBuckets(bounds ...float64) (ValueBuckets, error) {
	if err := validation.ValidateStrictlyIncreasing("buckets", "bounds", bounds); err != nil {
		return nil, err
	}
	out := make(ValueBuckets, len(bounds))
	copy(out, bounds)
	return out, nil
}

// LinearValueBuckets returns count bounds starting at start, width apart.
func LinearValueBuckets(start, width float64, count int) (ValueBuckets, error) {
	if err := validation.ValidatePositive("buckets", "count", count); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositiveFloat("buckets", "width", width); err != nil {
		return nil, err
	}
	out := make([]float64, count)
	for i := range out {
		out[i] = start + float64(i)*width
	}
	return NewValueBuckets(out...)
}

// ExponentialValueBuckets returns count bounds starting at start, each factor
// times the previous one.
func ExponentialValueBuckets(start, factor float64, count int) (ValueBuckets, error) {
	if err := validation.ValidatePositive("buckets", "count", count); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositiveFloat("buckets", "start", start); err != nil {
		return nil, err
	}
	if err := validation.ValidateGreaterThan("buckets", "factor", factor, 1); err != nil {
		return nil, err
	}
	out := make([]float64, count)
	cur := start
	for i := range out {
		out[i] = cur
		cur *= factor
	}
	// Large factors or counts overflow to +Inf.
	return NewValueBuckets(out...)
}

func (v ValueBuckets) Kind() BucketKind { return ValueBucketKind }

func (v ValueBuckets) Len() int { return len(v) + 1 }

func (v ValueBuckets) AsValues() []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

func (v ValueBuckets) AsDurations() []time.Duration {
	out := make([]time.Duration, len(v))
	for i, b := range v {
		out[i] = time.Duration(b * float64(time.Second))
	}
	return out
}

func (v ValueBuckets) ValueLowerBound(index int) float64 {
	if index <= 0 {
		return math.Inf(-1)
	}
	return v[index-1]
}

func (v ValueBuckets) ValueUpperBound(index int) float64 {
	if index >= len(v) {
		return math.Inf(1)
	}
	return v[index]
}

func (v ValueBuckets) DurationLowerBound(index int) time.Duration {
	if index <= 0 {
		return 0
	}
	return time.Duration(v[index-1] * float64(time.Second))
}

func (v ValueBuckets) DurationUpperBound(index int) time.Duration {
	if index >= len(v) {
		return MaxDuration
	}
	return time.Duration(v[index] * float64(time.Second))
}

// DurationBuckets is a duration-typed bucket specification.
type DurationBuckets []time.Duration

var _ Buckets = DurationBuckets(nil)

// NewDurationBuckets validates bounds and returns them as DurationBuckets.
func NewDurationBuckets(bounds ...time.Duration) (DurationBuckets, error) {
	if err := validation.ValidateStrictlyIncreasing("buckets", "bounds", bounds); err != nil {
		return nil, err
	}
	out := make(DurationBuckets, len(bounds))
	copy(out, bounds)
	return out, nil
}

// LinearDurationBuckets returns count bounds starting at start, width apart.
func LinearDurationBuckets(start, width time.Duration, count int) (DurationBuckets, error) {
	if err := validation.ValidatePositive("buckets", "count", count); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositiveFloat("buckets", "width", float64(width)); err != nil {
		return nil, err
	}
	out := make([]time.Duration, count)
	for i := range out {
		out[i] = start + time.Duration(i)*width
	}
	return NewDurationBuckets(out...)
}

// ExponentialDurationBuckets returns count bounds starting at start, each
// factor times the previous one.
func ExponentialDurationBuckets(start time.Duration, factor float64, count int) (DurationBuckets, error) {
	values, err := ExponentialValueBuckets(float64(start), factor, count)
	if err != nil {
		return nil, err
	}
	// Truncating to whole nanoseconds can collapse neighbouring bounds.
	out := make([]time.Duration, count)
	for i, v := range values {
		out[i] = time.Duration(v)
	}
	return NewDurationBuckets(out...)
}

func (d DurationBuckets) Kind() BucketKind { return DurationBucketKind }

func (d DurationBuckets) Len() int { return len(d) + 1 }

func (d DurationBuckets) AsValues() []float64 {
	out := make([]float64, len(d))
	for i, b := range d {
		out[i] = b.Seconds()
	}
	return out
}

func (d DurationBuckets) AsDurations() []time.Duration {
	out := make([]time.Duration, len(d))
	copy(out, d)
	return out
}

func (d DurationBuckets) ValueLowerBound(index int) float64 {
	if index <= 0 {
		return math.Inf(-1)
	}
	return d[index-1].Seconds()
}

func (d DurationBuckets) ValueUpperBound(index int) float64 {
	if index >= len(d) {
		return math.Inf(1)
	}
	return d[index].Seconds()
}

func (d DurationBuckets) DurationLowerBound(index int) time.Duration {
	if index <= 0 {
		return 0
	}
	return d[index-1]
}

func (d DurationBuckets) DurationUpperBound(index int) time.Duration {
	if index >= len(d) {
		return MaxDuration
	}
	return d[index]
}

// MustBuckets panics if err is not nil. It is meant for package-level bucket
// definitions built from constants.
func MustBuckets[T Buckets](b T, err error) T {
	if err != nil {
		panic(err)
	}
	return b
}

// bucketIndex returns the range index of v given ascending upper bounds: an
// exact match on bounds[i] belongs to range i+1, otherwise v belongs to the
// range of the first bound greater than v. Both cases reduce to the count of
// bounds less than or equal to v.
func bucketIndex[T float64 | time.Duration](bounds []T, v T) int {
	return sort.Search(len(bounds), func(i int) bool { return bounds[i] > v })
}
