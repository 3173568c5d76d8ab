// Package metrics exposes reconciliation and API counters in the Prometheus
// format. A nil *Metrics is valid and records nothing.
package metrics
