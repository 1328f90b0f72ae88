// Package metrics provides the proxy's metrics sink.
//
// Relays report through three narrow calls that never block or fail:
//
//	collector.RecordCompletion()
//	collector.RecordOutcome(200)
//	collector.RecordLatency(0.042)
//
// Events travel over a buffered channel to a single goroutine that applies
// them to Prometheus collectors (total_requests, http_status_codes,
// request_latency). When the buffer is full events are dropped rather than
// stalling the relay, and each drop increments dropped_events. A Collector
// also accepts a whole connection Result as a single event, and updates the
// backend_connections gauge synchronously. On shutdown the pending events
// are drained.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//	mux.Handle("/metrics", collector.Handler())
package metrics
