package tally

import "go.uber.org/atomic"

// Gauge holds the last value written to it.
type Gauge interface {
	Update(value float64)
}

type gauge struct {
	curr atomic.Float64
}

func newGauge() *gauge {
	return &gauge{}
}

func (g *gauge) Update(value float64) {
	g.curr.Store(value)
}

// value returns the last written value and resets the register to zero.
func (g *gauge) value() float64 {
	return g.curr.Swap(0)
}

func (g *gauge) report(name string, tags map[string]string, r StatsReporter, _ CounterMode) {
	r.ReportGauge(name, tags, g.value())
}
