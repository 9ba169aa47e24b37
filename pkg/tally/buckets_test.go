package tally

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gferrors "github.com/vnykmshr/gotally/pkg/common/errors"
)

func TestLinearValueBuckets(t *testing.T) {
	b, err := LinearValueBuckets(0, 10, 10)
	require.NoError(t, err)

	assert.Equal(t, ValueBuckets{0, 10, 20, 30, 40, 50, 60, 70, 80, 90}, b)
	assert.Equal(t, 11, b.Len())
	assert.Equal(t, ValueBucketKind, b.Kind())
}

func TestExponentialValueBuckets(t *testing.T) {
	b, err := ExponentialValueBuckets(1, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, ValueBuckets{1, 2, 4, 8, 16}, b)
}

func TestLinearDurationBuckets(t *testing.T) {
	b, err := LinearDurationBuckets(0, 10*time.Millisecond, 5)
	require.NoError(t, err)

	assert.Equal(t, DurationBuckets{0, 10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond, 40 * time.Millisecond}, b)
	assert.Equal(t, DurationBucketKind, b.Kind())
	assert.Equal(t, []float64{0, 0.01, 0.02, 0.03, 0.04}, b.AsValues())
}

func TestExponentialDurationBuckets(t *testing.T) {
	b, err := ExponentialDurationBuckets(time.Millisecond, 10, 3)
	require.NoError(t, err)
	assert.Equal(t, DurationBuckets{time.Millisecond, 10 * time.Millisecond, 100 * time.Millisecond}, b)
}

func TestBucketConstructors_Invalid(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
	}{
		{"no custom bounds", func() error { _, err := NewValueBuckets(); return err }},
		{"unsorted values", func() error { _, err := NewValueBuckets(5, 1); return err }},
		{"duplicate values", func() error { _, err := NewValueBuckets(1, 1); return err }},
		{"unsorted durations", func() error { _, err := NewDurationBuckets(time.Second, time.Millisecond); return err }},
		{"zero count", func() error { _, err := LinearValueBuckets(0, 1, 0); return err }},
		{"zero width", func() error { _, err := LinearValueBuckets(0, 0, 3); return err }},
		{"zero duration width", func() error { _, err := LinearDurationBuckets(0, 0, 3); return err }},
		{"zero exponential start", func() error { _, err := ExponentialValueBuckets(0, 2, 3); return err }},
		{"factor of one", func() error { _, err := ExponentialValueBuckets(1, 1, 3); return err }},
		{"negative duration start", func() error { _, err := ExponentialDurationBuckets(-time.Second, 2, 3); return err }},
		{"collapsed duration bounds", func() error { _, err := ExponentialDurationBuckets(time.Nanosecond, 1.1, 4); return err }},
		{"exponential overflow", func() error { _, err := ExponentialValueBuckets(1e300, 1e10, 3); return err }},
		{"width lost to precision", func() error { _, err := LinearValueBuckets(1e20, 1, 3); return err }},
		{"duration overflow", func() error { _, err := LinearDurationBuckets(MaxDuration-time.Second, time.Hour, 2); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			require.Error(t, err)
			assert.True(t, gferrors.IsValidationError(err), "got %T", err)
			assert.ErrorIs(t, err, gferrors.ErrInvalidConfiguration)
		})
	}
}

func TestMustBuckets(t *testing.T) {
	assert.Equal(t, ValueBuckets{1, 2}, MustBuckets(NewValueBuckets(1, 2)))
	assert.Panics(t, func() { MustBuckets(NewValueBuckets(2, 1)) })
}

func TestValueBuckets_Bounds(t *testing.T) {
	b := ValueBuckets{0, 10, 20}

	assert.True(t, math.IsInf(b.ValueLowerBound(0), -1))
	assert.Equal(t, 0.0, b.ValueUpperBound(0))
	assert.Equal(t, 10.0, b.ValueLowerBound(2))
	assert.Equal(t, 20.0, b.ValueUpperBound(2))
	assert.Equal(t, 20.0, b.ValueLowerBound(3))
	assert.True(t, math.IsInf(b.ValueUpperBound(3), 1))

	assert.Equal(t, time.Duration(0), b.DurationLowerBound(0))
	assert.Equal(t, 10*time.Second, b.DurationUpperBound(1))
	assert.Equal(t, MaxDuration, b.DurationUpperBound(3))
}

func TestDurationBuckets_Bounds(t *testing.T) {
	b := DurationBuckets{10 * time.Millisecond, 20 * time.Millisecond}

	assert.Equal(t, time.Duration(0), b.DurationLowerBound(0))
	assert.Equal(t, 10*time.Millisecond, b.DurationUpperBound(0))
	assert.Equal(t, 20*time.Millisecond, b.DurationLowerBound(2))
	assert.Equal(t, MaxDuration, b.DurationUpperBound(2))

	assert.True(t, math.IsInf(b.ValueLowerBound(0), -1))
	assert.InDelta(t, 0.02, b.ValueUpperBound(1), 1e-12)
	assert.True(t, math.IsInf(b.ValueUpperBound(2), 1))
}

func TestBuckets_AccessorsReturnCopies(t *testing.T) {
	b := ValueBuckets{1, 2, 3}
	values := b.AsValues()
	values[0] = 100
	assert.Equal(t, 1.0, b[0])

	d := DurationBuckets{time.Second}
	durations := d.AsDurations()
	durations[0] = 0
	assert.Equal(t, time.Second, d[0])
}

func TestBucketIndex(t *testing.T) {
	bounds := []float64{0, 10, 20}

	tests := []struct {
		value float64
		want  int
	}{
		{-5, 0},
		{0, 1}, // exact match belongs to the range starting at the bound
		{5, 1},
		{10, 2},
		{19.999, 2},
		{20, 3},
		{1e9, 3},
		{math.Inf(1), 3},
		{math.Inf(-1), 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, bucketIndex(bounds, tt.value), "value %v", tt.value)
	}

	assert.Equal(t, 0, bucketIndex([]float64{}, 1.0))
}

func TestBucketIndex_MatchesLinearScan(t *testing.T) {
	bounds := []float64{1, 5, 10, 15, 20, 25, 30, 40, 50, 100}
	for v := -2.0; v <= 105; v += 0.5 {
		want := 0
		for _, b := range bounds {
			if b <= v {
				want++
			}
		}
		require.Equal(t, want, bucketIndex(bounds, v), "value %v", v)
	}
}

func TestDefaultBuckets(t *testing.T) {
	require.Equal(t, DurationBucketKind, DefaultBuckets.Kind())
	bounds := DefaultBuckets.AsDurations()
	for i := 1; i < len(bounds); i++ {
		assert.Less(t, bounds[i-1], bounds[i])
	}
}
