package tally

import "go.uber.org/atomic"

// Counter is a monotonically accumulating integer metric.
type Counter interface {
	// Inc adds delta to the counter. Negative deltas are accepted and
	// subtract.
	Inc(delta int64)
}

type counter struct {
	curr       atomic.Int64 // pending, not yet drained
	cumulative atomic.Int64 // sum of every drained delta
}

func newCounter() *counter {
	return &counter{}
}

func (c *counter) Inc(delta int64) {
	c.curr.Add(delta)
}

// value drains the pending delta and folds it into the cumulative total.
func (c *counter) value() int64 {
	delta := c.curr.Swap(0)
	if delta != 0 {
		c.cumulative.Add(delta)
	}
	return delta
}

// pending reads the accumulated value without draining it.
func (c *counter) pending() int64 {
	return c.curr.Load()
}

// reportValue applies mode and returns the value to hand to a reporter, or
// false when nothing should be reported this iteration.
func (c *counter) reportValue(mode CounterMode) (int64, bool) {
	switch mode {
	case CounterModeSnapshot:
		return c.pending(), true
	case CounterModeDelta:
		delta := c.value()
		return delta, delta != 0
	default:
		delta := c.value()
		if delta == 0 {
			return 0, false
		}
		return c.cumulative.Load(), true
	}
}

func (c *counter) report(name string, tags map[string]string, r StatsReporter, mode CounterMode) {
	if v, ok := c.reportValue(mode); ok {
		r.ReportCounter(name, tags, v)
	}
}
