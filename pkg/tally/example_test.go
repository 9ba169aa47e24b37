package tally_test

import (
	"fmt"
	"time"

	"github.com/vnykmshr/gotally/pkg/clock"
	"github.com/vnykmshr/gotally/pkg/tally"
)

func ExampleNewTestScope() {
	scope := tally.NewTestScope("checkout", map[string]string{"env": "test"})

	scope.Counter("orders").Inc(3)
	scope.Tagged(map[string]string{"method": "card"}).Gauge("basket_size").Update(4)

	snap, err := scope.Snapshot()
	if err != nil {
		fmt.Println(err)
		return
	}

	orders := snap.Counters()[tally.NewScopeKey("checkout.orders", map[string]string{"env": "test"})]
	fmt.Println(orders.Name, orders.Value)

	for key, g := range snap.Gauges() {
		fmt.Println(key, g.Value)
	}

	// Output:
	// checkout.orders 3
	// checkout.basket_size+env=test,method=card 4
}

func ExampleStopwatch() {
	clk := clock.NewFake()
	scope := tally.NewTestScope("", nil, tally.WithTestClock(clk))

	sw := scope.Timer("render").Start()
	clk.AddDuration(120 * time.Millisecond)
	sw.Stop()

	snap, _ := scope.Snapshot()
	fmt.Println(snap.Timers()[tally.NewScopeKey("render", nil)].Values)

	// Output:
	// [120ms]
}

func ExampleLinearValueBuckets() {
	buckets, err := tally.LinearValueBuckets(0, 10, 3)
	if err != nil {
		fmt.Println(err)
		return
	}

	scope := tally.NewTestScope("", nil)
	h := scope.Histogram("latency", buckets)
	h.RecordValue(10) // a sample equal to a bound goes to the range starting there
	h.RecordValue(25)

	snap, _ := scope.Snapshot()
	values := snap.Histograms()[tally.NewScopeKey("latency", nil)].Values
	fmt.Println(values[0], values[10], values[20], len(values))

	// Output:
	// 0 0 1 4
}

func ExampleUnreportedTimer() {
	clk := clock.NewFake()
	scope, err := tally.NewRootScope(tally.ScopeOptions{Clock: clk})
	if err != nil {
		fmt.Println(err)
		return
	}
	defer scope.Close()

	timer := scope.Timer("startup")
	sw := timer.Start()
	clk.AddDuration(250 * time.Millisecond)
	sw.Stop()

	if ut, ok := timer.(tally.UnreportedTimer); ok {
		fmt.Println(ut.UnreportedValues())
	}

	// Output:
	// [250ms]
}
