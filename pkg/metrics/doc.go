/*
Package metrics provides Prometheus metrics collection and exposition for
the storage broker.

It defines and registers all broker metrics using the Prometheus client
library: disk/volume inventory gauges, per-handler call counters and
latencies, and image-operation throughput and duration. Metrics are
exposed over HTTP for scraping by a Prometheus server, alongside
/health, /ready, and /live.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                  │          │
	│  │                                              │          │
	│  │  Inventory: disks, volumes, mounted, unlocked│          │
	│  │  Handlers: call count, call duration         │          │
	│  │  Image ops: active, total, duration, bytes   │          │
	│  │  Auth: denials by action                     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint               │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Collector polls the block daemon every 15 seconds for disk and volume
counts, since those don't otherwise generate an event the broker could
hook a gauge update onto. Handler call counts, operation metrics, and
auth denials are updated directly at the call site instead, the same
way the rest of this package's counters are incremented.

Health tracks named components ("bus", "handlers", ...) the daemon
registers at startup and reports unhealthy status to /health if any
one goes unhealthy, and not_ready to /ready if "bus", "handlers" or
"adapter" is unhealthy or not yet registered.

# Usage

	metrics.RegisterComponent("bus", true, "ready")
	timer := metrics.NewTimer()
	// ... call a handler method ...
	timer.ObserveDurationVec(metrics.HandlerCallDuration, "disks", "Format")

	http.Handle("/metrics", metrics.Handler())
	http.Handle("/health", metrics.HealthHandler())
	http.Handle("/ready", metrics.ReadyHandler())
	http.Handle("/live", metrics.LivenessHandler())
*/
package metrics
