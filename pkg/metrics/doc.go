// Package metrics provides Prometheus instrumentation for gotally reporters.
//
// Reporters accept an optional *Registry and record every flush through it:
// how many flushes ran, how long they took, how many failed and how many
// series the last successful flush wrote. A nil *Registry disables recording,
// so reporters call it unconditionally.
//
// # Quick Start
//
//	reg := prometheus.NewRegistry()
//	self := metrics.NewRegistry(reg)
//
//	reporter, err := redisreporter.NewWithConfig(redisreporter.Config{
//		Client:  client,
//		Metrics: self,
//	})
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// # Custom Namespace
//
//	self := metrics.NewRegistryWithConfig(metrics.Config{
//		Enabled:   true,
//		Registry:  reg,
//		Namespace: "checkout",
//		Labels:    prometheus.Labels{"service": "checkout"},
//	})
//
// # Available Metrics
//
//   - gotally_reporter_flushes_total{reporter}: Total number of reporter flushes
//   - gotally_reporter_flush_errors_total{reporter}: Total number of failed flushes
//   - gotally_reporter_flush_duration_seconds{reporter}: Flush latency
//   - gotally_reporter_series{reporter}: Series written by the last successful flush
//   - gotally_reporter_dropped_samples_total{reporter,reason}: Samples a backend rejected
package metrics
